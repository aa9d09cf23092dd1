package highlight

import "sync"

// Applier owns the set of currently marked leaves across every page and
// enforces the one-active-highlight invariant: callers clear before they
// apply, and both operations are idempotent.
type Applier struct {
	mu     sync.Mutex
	active []ElementHandle
	member map[ElementHandle]struct{}
}

// NewApplier returns an Applier with nothing marked.
func NewApplier() *Applier {
	return &Applier{member: make(map[ElementHandle]struct{})}
}

// ClearAll unmarks every currently marked leaf. Clearing an already
// unmarked leaf, or clearing twice, is a no-op.
func (a *Applier) ClearAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, h := range a.active {
		if h.Highlighted() {
			h.Unmark()
		}
	}
	a.active = a.active[:0]
	a.member = make(map[ElementHandle]struct{})
}

// ApplyTo marks each given handle and returns the first one as the scroll
// anchor, or nil when the list is empty. Handles already marked, or given
// twice, are marked once; nil handles are skipped.
func (a *Applier) ApplyTo(handles []ElementHandle) ElementHandle {
	a.mu.Lock()
	defer a.mu.Unlock()

	var anchor ElementHandle
	for _, h := range handles {
		if h == nil {
			continue
		}
		if anchor == nil {
			anchor = h
		}
		if _, seen := a.member[h]; seen {
			continue
		}
		if !h.Highlighted() {
			h.Mark()
		}
		a.member[h] = struct{}{}
		a.active = append(a.active, h)
	}
	return anchor
}

// ActiveCount reports how many leaves are currently marked.
func (a *Applier) ActiveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active)
}
