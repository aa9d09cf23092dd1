package highlighting

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanlens/loanlens/internal/highlight"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/prometheus"
	"github.com/loanlens/loanlens/pkg/types/common"
)

func testSessionBuilder() func(common.ID) *session {
	return func(docID common.ID) *session {
		surface := newPageSurface(nil, docID)
		return &session{
			coordinator: highlight.NewCoordinator(surface),
			surface:     surface,
		}
	}
}

func sessionDocID(n int) common.ID {
	return common.ID(fmt.Sprintf("doc_%012x", n))
}

func TestSessionManager_AcquireReuses(t *testing.T) {
	m := newSessionManager(4, testSessionBuilder(), prometheus.NewNopAppMetrics())

	first := m.acquire(context.Background(), sessionDocID(1))
	second := m.acquire(context.Background(), sessionDocID(1))
	assert.Same(t, first, second)
	assert.Equal(t, 1, m.size())
}

func TestSessionManager_GetDoesNotCreate(t *testing.T) {
	m := newSessionManager(4, testSessionBuilder(), prometheus.NewNopAppMetrics())

	_, ok := m.get(sessionDocID(1))
	assert.False(t, ok)
	assert.Equal(t, 0, m.size())

	created := m.acquire(context.Background(), sessionDocID(1))
	got, ok := m.get(sessionDocID(1))
	require.True(t, ok)
	assert.Same(t, created, got)
}

func TestSessionManager_EvictsStalest(t *testing.T) {
	m := newSessionManager(2, testSessionBuilder(), prometheus.NewNopAppMetrics())

	a := m.acquire(context.Background(), sessionDocID(1))
	m.acquire(context.Background(), sessionDocID(2))
	// Touch the first session so the second becomes the eviction victim.
	m.acquire(context.Background(), sessionDocID(1))

	m.acquire(context.Background(), sessionDocID(3))
	assert.Equal(t, 2, m.size())

	_, ok := m.get(sessionDocID(2))
	assert.False(t, ok, "stalest session should have been evicted")
	got, ok := m.get(sessionDocID(1))
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestSessionManager_ZeroLimitFallsBackToDefault(t *testing.T) {
	m := newSessionManager(0, testSessionBuilder(), prometheus.NewNopAppMetrics())
	for i := 0; i < 10; i++ {
		m.acquire(context.Background(), sessionDocID(i))
	}
	assert.Equal(t, 10, m.size())
}
