package highlighting

import (
	"context"
	"sync"

	"github.com/loanlens/loanlens/internal/highlight"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/prometheus"
	"github.com/loanlens/loanlens/pkg/types/common"
)

const defaultSessionLimit = 128

// session binds one document's coordinator to its recording surface.
type session struct {
	coordinator *highlight.Coordinator
	surface     *pageSurface
	touched     uint64
}

// sessionManager hands out per-document sessions and caps how many are live
// at once. When the cap is hit the least recently used session is evicted and
// its marks cleared, so an evicted document never keeps stale visuals.
type sessionManager struct {
	build   func(docID common.ID) *session
	metrics *prometheus.AppMetrics

	mu       sync.Mutex
	limit    int
	clock    uint64
	sessions map[common.ID]*session
}

func newSessionManager(limit int, build func(common.ID) *session, metrics *prometheus.AppMetrics) *sessionManager {
	if limit <= 0 {
		limit = defaultSessionLimit
	}
	return &sessionManager{
		build:    build,
		metrics:  metrics,
		limit:    limit,
		sessions: make(map[common.ID]*session),
	}
}

// acquire returns the document's session, creating it when absent. Creating
// past the cap evicts the stalest session first.
func (m *sessionManager) acquire(ctx context.Context, docID common.ID) *session {
	m.mu.Lock()
	m.clock++
	if s, ok := m.sessions[docID]; ok {
		s.touched = m.clock
		m.mu.Unlock()
		return s
	}

	var victim *session
	if len(m.sessions) >= m.limit {
		victim = m.evictStalestLocked()
	}
	s := m.build(docID)
	s.touched = m.clock
	m.sessions[docID] = s
	m.mu.Unlock()

	if victim != nil {
		victim.coordinator.Clear(ctx)
		m.metrics.HighlightSessionsActive.WithLabelValues().Dec()
	}
	m.metrics.HighlightSessionsActive.WithLabelValues().Inc()
	return s
}

// get returns the document's session without creating one.
func (m *sessionManager) get(docID common.ID) (*session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[docID]
	if ok {
		m.clock++
		s.touched = m.clock
	}
	return s, ok
}

// size reports how many sessions are live.
func (m *sessionManager) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *sessionManager) evictStalestLocked() *session {
	var victimID common.ID
	var victim *session
	for id, s := range m.sessions {
		if victim == nil || s.touched < victim.touched {
			victimID, victim = id, s
		}
	}
	if victim != nil {
		delete(m.sessions, victimID)
	}
	return victim
}
