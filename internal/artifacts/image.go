package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
)

// ExtractImage writes the files of image ref accepted by accept below dst,
// one directory per layer. ref is either a path to a tarball written by
// "docker save" or a registry reference such as "alpine:3.19"; registry
// credentials come from the local Docker configuration.
func ExtractImage(ctx context.Context, ref, dst string, accept AcceptFunc, limits Limits) (Result, error) {
	var res Result
	img, err := openImage(ctx, ref)
	if err != nil {
		return res, err
	}
	layers, err := img.Layers()
	if err != nil {
		return res, fmt.Errorf("failed to get layers for %q: %w", ref, err)
	}
	b := newBudget(limits)
	for _, layer := range layers {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if reason := b.exceeded(); reason != "" {
			res.Truncated = reason
			return res, nil
		}
		digest, err := layer.Digest()
		if err != nil {
			return res, fmt.Errorf("layer digest: %w", err)
		}
		rc, err := layer.Uncompressed()
		if err != nil {
			return res, fmt.Errorf("failed to read layer %s: %w", digest, err)
		}
		err = extractTar(rc, filepath.Join(dst, layerDir(digest)), accept, b, &res)
		_ = rc.Close()
		if err != nil {
			return res, fmt.Errorf("layer %s: %w", digest, err)
		}
		if res.Truncated != "" {
			return res, nil
		}
	}
	return res, nil
}

func openImage(ctx context.Context, ref string) (v1.Image, error) {
	if st, err := os.Stat(ref); err == nil && !st.IsDir() {
		img, err := tarball.ImageFromPath(ref, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid image tarball %q: %w", ref, err)
		}
		return img, nil
	}
	r, err := name.ParseReference(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid image reference %q: %w", ref, err)
	}
	img, err := remote.Image(r, remote.WithContext(ctx), remote.WithAuthFromKeychain(authn.DefaultKeychain))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image metadata for %q: %w", ref, err)
	}
	return img, nil
}

// layerDir is a short, filesystem-safe name for a layer.
func layerDir(d v1.Hash) string {
	hex := d.Hex
	if len(hex) > 12 {
		hex = hex[:12]
	}
	return d.Algorithm + "-" + hex
}
