package minio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loanlens/loanlens/internal/config"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/pkg/errors"
)

func newTestClient(api *MockMinIOAPI) *Client {
	return NewClientWithAPI(api, config.MinIOConfig{
		Endpoint: "localhost:9000",
		Bucket:   "loanlens-test",
	}, logging.NewNopLogger())
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.MinIOConfig{}
	applyDefaults(&cfg)
	assert.Equal(t, "loanlens-documents", cfg.Bucket)
	assert.Equal(t, time.Hour, cfg.PresignExpiry)

	tuned := config.MinIOConfig{Bucket: "custom", PresignExpiry: 5 * time.Minute}
	applyDefaults(&tuned)
	assert.Equal(t, "custom", tuned.Bucket)
	assert.Equal(t, 5*time.Minute, tuned.PresignExpiry)
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	api := new(MockMinIOAPI)
	api.On("BucketExists", mock.Anything, "loanlens-test").Return(false, nil)
	api.On("MakeBucket", mock.Anything, "loanlens-test", mock.Anything).Return(nil)

	c := newTestClient(api)
	require.NoError(t, c.EnsureBucket(context.Background()))
	api.AssertCalled(t, "MakeBucket", mock.Anything, "loanlens-test", mock.Anything)
}

func TestEnsureBucketSkipsExisting(t *testing.T) {
	api := new(MockMinIOAPI)
	api.On("BucketExists", mock.Anything, "loanlens-test").Return(true, nil)

	c := newTestClient(api)
	require.NoError(t, c.EnsureBucket(context.Background()))
	api.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsureBucketProbeFailure(t *testing.T) {
	api := new(MockMinIOAPI)
	api.On("BucketExists", mock.Anything, "loanlens-test").Return(false, assert.AnError)

	c := newTestClient(api)
	err := c.EnsureBucket(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name     string
		exists   bool
		err      error
		wantCode errors.ErrorCode
	}{
		{"healthy", true, nil, ""},
		{"bucket missing", false, nil, errors.ErrCodeStorageError},
		{"unreachable", false, assert.AnError, errors.ErrCodeServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := new(MockMinIOAPI)
			api.On("BucketExists", mock.Anything, "loanlens-test").Return(tt.exists, tt.err)

			err := newTestClient(api).HealthCheck(context.Background())
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.wantCode))
		})
	}
}

func TestClientCloseGuards(t *testing.T) {
	c := newTestClient(new(MockMinIOAPI))
	require.NoError(t, c.Close())
	assert.NoError(t, c.Close(), "second close is a no-op")

	assert.ErrorIs(t, c.EnsureBucket(context.Background()), ErrClientClosed)
	assert.ErrorIs(t, c.HealthCheck(context.Background()), ErrClientClosed)
}

func TestBucketAccessor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "loanlens-test", newTestClient(new(MockMinIOAPI)).Bucket())
}
