package minio

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/pkg/errors"
)

// ErrObjectNotFound is returned when the requested key does not exist.
var ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")

// ObjectStore reads and writes raw document bytes. Keys come from the
// document aggregate; the bucket is fixed by configuration.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (*PutResult, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	PresignGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// PutResult reports a stored object.
type PutResult struct {
	Bucket string
	Key    string
	ETag   string
	Size   int64
}

type objectStore struct {
	client *Client
	logger logging.Logger
}

// NewObjectStore builds the store over client's bucket.
func NewObjectStore(client *Client, log logging.Logger) ObjectStore {
	return &objectStore{client: client, logger: log}
}

func (s *objectStore) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (*PutResult, error) {
	if key == "" {
		return nil, errors.New(errors.ErrCodeValidation, "object key required")
	}
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "object data required")
	}

	api, err := s.client.guarded()
	if err != nil {
		return nil, err
	}

	if contentType == "" {
		contentType = http.DetectContentType(data[:min(len(data), 512)])
	}

	info, err := api.PutObject(ctx, s.client.Bucket(), key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "put object %q", key)
	}

	s.logger.Debug("object stored",
		logging.String("key", key),
		logging.Int64("size_bytes", info.Size))
	return &PutResult{
		Bucket: info.Bucket,
		Key:    info.Key,
		ETag:   info.ETag,
		Size:   info.Size,
	}, nil
}

func (s *objectStore) Get(ctx context.Context, key string) ([]byte, error) {
	api, err := s.client.guarded()
	if err != nil {
		return nil, err
	}

	obj, err := api.GetObject(ctx, s.client.Bucket(), key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "get object %q", key)
	}
	defer obj.Close() //nolint:errcheck

	// minio-go defers missing-key errors until the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "read object %q", key)
	}
	return data, nil
}

func (s *objectStore) Delete(ctx context.Context, key string) error {
	api, err := s.client.guarded()
	if err != nil {
		return err
	}

	if err := api.RemoveObject(ctx, s.client.Bucket(), key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "remove object %q", key)
	}
	return nil
}

func (s *objectStore) PresignGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	api, err := s.client.guarded()
	if err != nil {
		return "", err
	}

	if expiry == 0 {
		expiry = s.client.cfg.PresignExpiry
	}
	u, err := api.PresignedGetObject(ctx, s.client.Bucket(), key, expiry, nil)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeStorageError, "presign object %q", key)
	}
	return u.String(), nil
}
