// Package derivative turns one uploaded image into its resized derivatives
// and publishes them to the destination bucket.
package derivative

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path"
	"path/filepath"

	"thumbnails/internal/raster"
	"thumbnails/internal/types"
)

// ObjectStore fetches source objects and publishes derivatives.
type ObjectStore interface {
	Fetch(ctx context.Context, bucket, key string, dst io.WriterAt) (int64, error)
	Publish(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
}

// Config describes where derivatives go and which sizes are produced.
type Config struct {
	Bucket         string
	Folder         string
	FolderTemplate string
	Sizes          []types.DerivativeSpec

	// ScratchRoot is the parent of per-item scratch directories. Empty means
	// os.TempDir().
	ScratchRoot string
}

// Generator produces and publishes the configured derivatives of one work
// item. It holds no per-item state and is safe for concurrent use.
type Generator struct {
	store ObjectStore
	cfg   Config
}

// NewGenerator creates a Generator.
func NewGenerator(store ObjectStore, cfg Config) *Generator {
	return &Generator{store: store, cfg: cfg}
}

type rendered struct {
	spec types.DerivativeSpec
	file string
}

// Generate fetches the item's source image into a private scratch directory,
// writes one resized file per configured size, and publishes each of them.
// It returns the destination keys published, in size order. On error the
// keys published so far are returned; nothing is rolled back. The scratch
// directory is removed on every return path.
func (g *Generator) Generate(ctx context.Context, item types.WorkItem) ([]string, error) {
	scratch, err := os.MkdirTemp(g.cfg.ScratchRoot, "thumbnail-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	base := path.Base(item.SourceKey)
	local := filepath.Join(scratch, base)

	if err := g.fetch(ctx, item, local); err != nil {
		return nil, err
	}

	img, detected, err := decodeFile(local)
	if err != nil {
		return nil, types.NewImageDecodeError(item.SourceKey, err)
	}

	format, err := raster.FormatForFile(base, detected)
	if err != nil {
		return nil, types.NewEncodeError(base, err)
	}
	ext := Extension(base, format)

	outputs := make([]rendered, 0, len(g.cfg.Sizes))
	for _, spec := range g.cfg.Sizes {
		name := spec.String() + ext
		file := filepath.Join(scratch, name)
		if err := encodeFile(file, raster.ResizeToFit(img, spec.Width, spec.Height), format); err != nil {
			return nil, types.NewEncodeError(name, err)
		}
		outputs = append(outputs, rendered{spec: spec, file: file})
	}

	published := make([]string, 0, len(outputs))
	for _, out := range outputs {
		key := Path(g.cfg.Folder, g.cfg.FolderTemplate, item.SourceKey, out.spec, ext)
		if err := g.publish(ctx, out.file, key, raster.ContentType(format)); err != nil {
			return published, err
		}
		published = append(published, key)
	}
	return published, nil
}

func (g *Generator) fetch(ctx context.Context, item types.WorkItem, local string) error {
	f, err := os.Create(local)
	if err != nil {
		return types.NewFetchError(item.SourceBucket, item.SourceKey, false, err)
	}
	defer f.Close()

	if _, err := g.store.Fetch(ctx, item.SourceBucket, item.SourceKey, f); err != nil {
		if types.KindOf(err) == types.ErrKindFetch {
			return err
		}
		return types.NewFetchError(item.SourceBucket, item.SourceKey, false, err)
	}
	return nil
}

func (g *Generator) publish(ctx context.Context, file, key, contentType string) error {
	f, err := os.Open(file)
	if err != nil {
		return types.NewPublishError(g.cfg.Bucket, key, err)
	}
	defer f.Close()

	if err := g.store.Publish(ctx, g.cfg.Bucket, key, f, contentType); err != nil {
		if types.KindOf(err) == types.ErrKindPublish {
			return err
		}
		return types.NewPublishError(g.cfg.Bucket, key, err)
	}
	return nil
}

func decodeFile(name string) (image.Image, string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	return raster.Decode(f)
}

func encodeFile(name string, img image.Image, format raster.Format) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := raster.Encode(f, img, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
