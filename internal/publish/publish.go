// Package publish uploads pipeline outputs to an S3-compatible bucket.
package publish

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rkm/sentinel-pipeline/internal/stac"
)

// Config holds the bucket connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// ObjectStore is the subset of *minio.Client used by the publisher.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Publisher mirrors a local directory tree into a bucket.
type Publisher struct {
	store  ObjectStore
	bucket string
	prefix string
	region string
	logger *slog.Logger
}

// New creates a publisher backed by a minio client.
func New(cfg Config) (*Publisher, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	endpoint, secure := cfg.Endpoint, cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return NewWithStore(client, cfg), nil
}

// NewWithStore creates a publisher on top of an existing store.
func NewWithStore(store ObjectStore, cfg Config) *Publisher {
	return &Publisher{
		store:  store,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		region: cfg.Region,
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the publisher.
func (p *Publisher) WithLogger(logger *slog.Logger) *Publisher {
	p.logger = logger
	return p
}

// Key returns the object key of rel, a slash separated path below the
// published directory.
func (p *Publisher) Key(rel string) string {
	if p.prefix == "" {
		return rel
	}
	return path.Join(p.prefix, rel)
}

// Publish uploads every regular file below root and returns the number
// of uploaded objects. The bucket is created when missing.
func (p *Publisher) Publish(ctx context.Context, root string) (int, error) {
	exists, err := p.store.BucketExists(ctx, p.bucket)
	if err != nil {
		return 0, fmt.Errorf("failed to check bucket %s: %w", p.bucket, err)
	}
	if !exists {
		if err := p.store.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region}); err != nil {
			return 0, fmt.Errorf("failed to create bucket %s: %w", p.bucket, err)
		}
		p.logger.InfoContext(ctx, "created bucket", slog.String("bucket", p.bucket))
	}

	uploaded := 0
	err = filepath.WalkDir(root, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, file)
		if err != nil {
			return err
		}
		key := p.Key(filepath.ToSlash(rel))

		info, err := p.store.FPutObject(ctx, p.bucket, key, file, minio.PutObjectOptions{
			ContentType: stac.MediaType(file),
		})
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}

		p.logger.DebugContext(ctx, "uploaded object",
			slog.String("bucket", p.bucket),
			slog.String("key", key),
			slog.Int64("size", info.Size),
		)
		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, err
	}

	p.logger.InfoContext(ctx, "published outputs",
		slog.String("bucket", p.bucket),
		slog.String("prefix", p.prefix),
		slog.Int("objects", uploaded),
	)
	return uploaded, nil
}
