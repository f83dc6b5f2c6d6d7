package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/JKristilere/smart-summarizer/internal/pkg/ctxutil"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
)

// Stager uploads audio to a bucket so long recordings can be transcribed
// by URI instead of inline content.
type Stager interface {
	Stage(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
	Close() error
}

type StagingConfig struct {
	Bucket      string
	Prefix      string
	Credentials string
}

type bucketStager struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
	prefix string
}

func NewStager(ctx context.Context, log *logger.Logger, cfg StagingConfig) (Stager, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	name := strings.TrimSpace(cfg.Bucket)
	if name == "" {
		return nil, fmt.Errorf("missing GCS_AUDIO_BUCKET")
	}
	opts := ClientOptions(cfg.Credentials)
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	c, err := storage.NewClient(ctxutil.Default(ctx), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &bucketStager{
		log:    log.With("service", "gcp.Stager", "bucket", name),
		client: c,
		bucket: name,
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}, nil
}

func (b *bucketStager) objectKey(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if b.prefix == "" {
		return key
	}
	return b.prefix + "/" + key
}

func (b *bucketStager) Stage(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), 5*time.Minute)
	defer cancel()

	obj := b.objectKey(key)
	w := b.client.Bucket(b.bucket).Object(obj).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	b.log.Debug("Staged audio", "object", obj)
	return GCSURI(b.bucket, obj), nil
}

func (b *bucketStager) Remove(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), 30*time.Second)
	defer cancel()
	err := b.client.Bucket(b.bucket).Object(b.objectKey(key)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete staged object: %w", err)
	}
	return nil
}

func (b *bucketStager) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

func GCSURI(bucket, object string) string {
	return "gs://" + bucket + "/" + strings.TrimLeft(object, "/")
}
