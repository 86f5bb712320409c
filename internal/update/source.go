// Package update refreshes the local vulnerability reference data from
// remote sources (HTTP feeds, git repositories and S3 buckets) and checks
// for newer releases of the tool itself.
package update

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/depsentry/depsentry/internal/factory"
)

// DataSource refreshes part of the local data directory.
type DataSource interface {
	Name() string
	Update(ctx context.Context) error
}

// UpdateError reports a failed refresh of one source.
type UpdateError struct {
	Source string
	Err    error
}

func (e *UpdateError) Error() string { return fmt.Sprintf("update %s: %v", e.Source, e.Err) }

func (e *UpdateError) Unwrap() error { return e.Err }

// Env is handed to every source factory.
type Env struct {
	DataDir string
	Client  *http.Client
	// Offline makes network sources keep their local copy.
	Offline bool
	Logger  logrus.FieldLogger
}

func (e Env) client() *http.Client {
	if e.Client != nil {
		return e.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (e Env) logger() logrus.FieldLogger {
	if e.Logger != nil {
		return e.Logger
	}
	return logrus.StandardLogger()
}

// Factory builds one data source.
type Factory func(Env) (DataSource, error)

// Service holds the discovered data sources.
type Service struct {
	sources []DataSource
}

// Discover builds every source from factories, in order. A factory that
// fails, panics or returns nil is logged and skipped.
func Discover(factories []Factory, env Env, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if env.Logger == nil {
		env.Logger = log
	}
	svc := &Service{}
	for i, f := range factories {
		if f == nil {
			continue
		}
		src, err := factory.Build[Env, DataSource](f, env, "data source")
		if err != nil {
			log.WithError(err).WithField("factory", i).Error("unable to load data source")
			continue
		}
		svc.sources = append(svc.sources, src)
	}
	return svc
}

// Sources returns the discovered sources in registration order.
func (s *Service) Sources() []DataSource {
	if s == nil {
		return nil
	}
	return append([]DataSource(nil), s.sources...)
}

// Static wraps an already built source as a Factory.
func Static(src DataSource) Factory {
	return func(Env) (DataSource, error) { return src, nil }
}
