//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loanlens/loanlens/internal/config"
	domainanalysis "github.com/loanlens/loanlens/internal/domain/analysis"
	"github.com/loanlens/loanlens/internal/infrastructure/database/redis"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/internal/infrastructure/storage/minio"
)

// startRedis launches a Redis container and returns a connected client.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := redis.NewClient(config.RedisConfig{
		Addr:      host + ":" + port.Port(),
		KeyPrefix: "loanlens",
	}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// startMinIO launches a MinIO container and returns a client with the
// bucket already ensured.
func startMinIO(t *testing.T) *minio.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Cmd:          []string{"server", "/data"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	client, err := minio.NewClient(config.MinIOConfig{
		Endpoint:  host + ":" + port.Port(),
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "loanlens-test",
	}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCacheAgainstRealRedis(t *testing.T) {
	client := startRedis(t)
	cache := redis.NewCache(client, logging.NewNopLogger(),
		redis.WithPrefix("loanlens"),
		redis.WithDefaultTTL(time.Minute))
	ctx := context.Background()

	summary := domainanalysis.Summary{
		DocumentType: "Auto Loan Agreement",
		Overview:     "A five-year auto loan at a fixed rate.",
	}
	require.NoError(t, cache.Set(ctx, "doc:doc_abc:summary", summary, time.Minute))

	var got domainanalysis.Summary
	require.NoError(t, cache.Get(ctx, "doc:doc_abc:summary", &got))
	assert.Equal(t, summary, got)

	exists, err := cache.Exists(ctx, "doc:doc_abc:summary")
	require.NoError(t, err)
	assert.True(t, exists)

	deleted, err := cache.DeleteByPrefix(ctx, "doc:doc_abc")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	err = cache.Get(ctx, "doc:doc_abc:summary", &got)
	assert.ErrorIs(t, err, redis.ErrCacheMiss)
}

func TestDistributedLockAgainstRealRedis(t *testing.T) {
	client := startRedis(t)
	locks := redis.NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	a := locks.NewMutex("analysis:doc_abc", redis.WithLockTTL(5*time.Second))
	b := locks.NewMutex("analysis:doc_abc", redis.WithLockTTL(5*time.Second))

	require.NoError(t, a.Lock(ctx))

	held, err := b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, held, "second claimant must not acquire a held lock")

	require.NoError(t, a.Unlock(ctx))
	held, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, held)
	require.NoError(t, b.Unlock(ctx))
}

func TestObjectStoreRoundTrip(t *testing.T) {
	client := startMinIO(t)
	store := minio.NewObjectStore(client, logging.NewNopLogger())
	ctx := context.Background()

	payload := []byte("%PDF-1.7 test document bytes")
	put, err := store.Put(ctx, "documents/doc_abc/loan.pdf", payload, "application/pdf", map[string]string{
		"original-filename": "loan.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), put.Size)

	got, err := store.Get(ctx, "documents/doc_abc/loan.pdf")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	url, err := store.PresignGetURL(ctx, "documents/doc_abc/loan.pdf", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "documents/doc_abc/loan.pdf")

	require.NoError(t, store.Delete(ctx, "documents/doc_abc/loan.pdf"))
	_, err = store.Get(ctx, "documents/doc_abc/loan.pdf")
	require.Error(t, err)
}
