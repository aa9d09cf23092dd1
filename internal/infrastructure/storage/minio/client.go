// Package minio holds the raw uploaded documents. A single bucket stores
// every PDF under the key the document aggregate assigns; everything else
// about a document lives in Postgres.
package minio

import (
	"context"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/loanlens/loanlens/internal/config"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/pkg/errors"
)

var (
	// ErrClientClosed is returned for operations on a closed client.
	ErrClientClosed = errors.New(errors.ErrCodeInternal, "minio client is closed")
	// ErrConnectionFailed wraps a failed connection probe at construction.
	ErrConnectionFailed = errors.New(errors.ErrCodeServiceUnavailable, "failed to connect to minio")
)

const connectTimeout = 10 * time.Second

// MinIOAPI is the slice of the minio-go client the store uses. GetObject
// returns io.ReadCloser rather than *minio.Object so tests can fake reads.
type MinIOAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucket, key string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

// minioAPI adapts *minio.Client to MinIOAPI. Only GetObject needs a shim;
// the embedded client provides the rest with matching signatures.
type minioAPI struct {
	*minio.Client
}

func (a minioAPI) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return a.Client.GetObject(ctx, bucket, key, opts)
}

// Client owns the connection and the bucket. Object reads and writes go
// through ObjectStore.
type Client struct {
	api    MinIOAPI
	cfg    config.MinIOConfig
	logger logging.Logger

	mu     sync.RWMutex
	closed bool
}

// NewClient connects, verifies reachability, and ensures the bucket exists.
func NewClient(cfg config.MinIOConfig, log logging.Logger) (*Client, error) {
	applyDefaults(&cfg)

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "create minio client")
	}

	c := &Client{api: minioAPI{mc}, cfg: cfg, logger: log}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	log.Info("minio connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewClientWithAPI injects the API, for tests.
func NewClientWithAPI(api MinIOAPI, cfg config.MinIOConfig, log logging.Logger) *Client {
	applyDefaults(&cfg)
	return &Client{api: api, cfg: cfg, logger: log}
}

func applyDefaults(cfg *config.MinIOConfig) {
	if cfg.Bucket == "" {
		cfg.Bucket = "loanlens-documents"
	}
	if cfg.PresignExpiry == 0 {
		cfg.PresignExpiry = time.Hour
	}
}

// EnsureBucket creates the bucket when missing. The existence probe doubles
// as the connection check at construction.
func (c *Client) EnsureBucket(ctx context.Context) error {
	api, err := c.guarded()
	if err != nil {
		return err
	}

	exists, err := api.BucketExists(ctx, c.cfg.Bucket)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeServiceUnavailable, "check bucket %q", c.cfg.Bucket)
	}
	if exists {
		return nil
	}

	if err := api.MakeBucket(ctx, c.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "create bucket %q", c.cfg.Bucket)
	}
	c.logger.Info("bucket created", logging.String("bucket", c.cfg.Bucket))
	return nil
}

// HealthCheck probes the bucket.
func (c *Client) HealthCheck(ctx context.Context) error {
	api, err := c.guarded()
	if err != nil {
		return err
	}

	exists, err := api.BucketExists(ctx, c.cfg.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "minio unreachable")
	}
	if !exists {
		return errors.Newf(errors.ErrCodeStorageError, "bucket %q missing", c.cfg.Bucket)
	}
	return nil
}

// Bucket names the document bucket.
func (c *Client) Bucket() string {
	return c.cfg.Bucket
}

// Close marks the client closed. Safe to call twice.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Client) guarded() (MinIOAPI, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	return c.api, nil
}
