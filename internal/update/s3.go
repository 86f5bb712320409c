package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/depsentry/depsentry/internal/vulndb"
)

// S3Config describes a bucket mirroring feed files.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether enough is configured to build a source.
func (c S3Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.Bucket) != ""
}

// S3Source downloads every *.feed.json object under a prefix into
// <data_dir>/s3.
type S3Source struct {
	client  *minio.Client
	bucket  string
	prefix  string
	dir     string
	offline bool
}

// NewS3Source validates cfg and returns the source.
func NewS3Source(cfg S3Config, env Env) (*S3Source, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if env.DataDir == "" {
		return nil, errors.New("data directory is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	prefix := strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Source{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		dir:     filepath.Join(env.DataDir, "s3"),
		offline: env.Offline,
	}, nil
}

// S3 returns a Factory for cfg.
func S3(cfg S3Config) Factory {
	return func(env Env) (DataSource, error) { return NewS3Source(cfg, env) }
}

func (s *S3Source) Name() string { return "s3:" + s.bucket }

// Update mirrors the feed objects. Objects that are not valid feeds are
// skipped with an error; the others are still written.
func (s *S3Source) Update(ctx context.Context) error {
	if s.offline {
		return nil
	}
	var errs []error
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return &UpdateError{Source: s.Name(), Err: obj.Err}
		}
		if !strings.HasSuffix(obj.Key, ".feed.json") {
			continue
		}
		if err := s.fetch(ctx, obj.Key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", obj.Key, err))
		}
	}
	if len(errs) > 0 {
		return &UpdateError{Source: s.Name(), Err: errors.Join(errs...)}
	}
	return nil
}

func (s *S3Source) fetch(ctx context.Context, key string) error {
	rel := path.Clean(strings.TrimPrefix(key, s.prefix))
	if rel == "." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return fmt.Errorf("refusing object key outside prefix")
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()
	data, err := readFeed(obj)
	if err != nil {
		return err
	}
	var feed vulndb.Feed
	if err := json.Unmarshal(data, &feed); err != nil {
		return fmt.Errorf("invalid feed: %w", err)
	}
	return writeAtomic(filepath.Join(s.dir, filepath.FromSlash(rel)), data)
}
