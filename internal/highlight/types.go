// Package highlight locates a text snippet inside a rendered document page
// and drives the mark/scroll lifecycle for it. The pipeline is: normalize the
// snippet and the page's text leaves, build a joined index over the leaves,
// match at decreasing fidelity (full, prefix, token), then apply marks to the
// matched leaves through the Surface.
package highlight

import (
	"context"
	"time"
)

// Tier is the fidelity level at which a snippet matched the page text.
type Tier string

const (
	// TierFull means the whole normalized snippet was found contiguously.
	TierFull Tier = "full"
	// TierPartial means a word prefix of a long snippet was found contiguously.
	TierPartial Tier = "partial"
	// TierToken means no contiguous run was found and individual key tokens
	// were matched per leaf instead.
	TierToken Tier = "token"
	// TierNone means nothing usable matched; callers fall back to marking the
	// page as a whole.
	TierNone Tier = "none"
)

// Target identifies what should be highlighted and where.
type Target struct {
	// Page is the 1-based page number to navigate to.
	Page int `json:"page"`
	// Section is a human-readable label for the region, carried through to
	// results but never matched against.
	Section string `json:"section,omitempty"`
	// Snippet is the text to locate on the page. Empty means "no snippet":
	// navigation still happens but matching is skipped.
	Snippet string `json:"snippet,omitempty"`
	// Nonce distinguishes repeated activations of the same target. Two
	// targets with equal Page/Section/Snippet but different nonces are
	// distinct requests and each runs the full pipeline.
	Nonce string `json:"nonce,omitempty"`
}

// HasSnippet reports whether the target carries text to match.
func (t Target) HasSnippet() bool { return t.Snippet != "" }

// Leaf is one text-bearing element of a rendered page, in reading order.
type Leaf struct {
	// RawText is the leaf's text exactly as rendered.
	RawText string
	// OrderIndex is the leaf's position in reading order, starting at 0.
	OrderIndex int
	// Handle is the surface-level object marks are applied to.
	Handle ElementHandle
}

// ElementHandle is the surface's hook for one markable element. Highlight
// keeps no state inside handles; Highlighted is owned by the surface.
type ElementHandle interface {
	// Mark turns the highlight on.
	Mark()
	// Unmark turns the highlight off.
	Unmark()
	// Highlighted reports the current mark state.
	Highlighted() bool
}

// LeafRange is the half-open interval [Start, End) a leaf's normalized text
// occupies inside the page's joined text. End excludes the single separator
// space that follows the leaf.
type LeafRange struct {
	Start int
	End   int
}

// Overlaps reports whether the range intersects [matchStart, matchEnd).
func (r LeafRange) Overlaps(matchStart, matchEnd int) bool {
	return r.End > matchStart && r.Start < matchEnd
}

// PageIndex is the searchable form of one page's text leaves. Build it with
// BuildIndex; it is immutable afterwards and must be rebuilt whenever the
// page's leaves change.
type PageIndex struct {
	// Page is the 1-based page number the index covers.
	Page int
	// Leaves are the indexed leaves in reading order.
	Leaves []Leaf
	// Normalized holds each leaf's normalized text, parallel to Leaves.
	Normalized []string
	// Concat is all normalized leaf texts joined by single spaces.
	Concat string
	// Ranges maps each leaf to its interval in Concat, parallel to Leaves.
	Ranges []LeafRange
}

// Empty reports whether the index covers no leaves.
func (idx *PageIndex) Empty() bool { return idx == nil || len(idx.Leaves) == 0 }

// MatchResult describes which leaves a snippet matched and at what fidelity.
type MatchResult struct {
	// Tier is the fidelity the match was found at; TierNone means no leaves.
	Tier Tier
	// LeafIndices are positions into PageIndex.Leaves, ascending. Empty
	// exactly when Tier is TierNone.
	LeafIndices []int
}

// AnchorLeaf returns the first matched leaf index in reading order, which is
// where the viewport should scroll. ok is false when nothing matched.
func (m MatchResult) AnchorLeaf() (int, bool) {
	if len(m.LeafIndices) == 0 {
		return 0, false
	}
	return m.LeafIndices[0], true
}

// State is a navigation run's position in its lifecycle.
type State string

const (
	// StateIdle means no navigation is active.
	StateIdle State = "idle"
	// StateScrolling means the viewport is moving to the target page.
	StateScrolling State = "scrolling"
	// StateAwaitingText means the run is waiting, bounded, for the page's
	// text layer to materialize.
	StateAwaitingText State = "awaiting_text"
	// StateMatching means the snippet is being located in the page index.
	StateMatching State = "matching"
	// StateMarked is terminal: leaf-level highlights were applied.
	StateMarked State = "marked"
	// StatePageFallback is terminal: nothing matched, the page as a whole is
	// marked instead.
	StatePageFallback State = "page_fallback"
	// StateCancelled is terminal: a newer target superseded this run or the
	// caller cleared it.
	StateCancelled State = "cancelled"
)

// Terminal reports whether a run in this state is finished.
func (s State) Terminal() bool {
	switch s {
	case StateMarked, StatePageFallback, StateCancelled, StateIdle:
		return true
	}
	return false
}

// allowedTransitions whitelists every legal state change of a navigation run.
var allowedTransitions = map[State][]State{
	StateIdle:         {StateScrolling},
	StateScrolling:    {StateAwaitingText, StateCancelled},
	StateAwaitingText: {StateMatching, StateCancelled},
	StateMatching:     {StateMarked, StatePageFallback, StateCancelled},
	StateMarked:       {StateIdle},
	StatePageFallback: {StateIdle},
	StateCancelled:    {StateIdle},
}

// CanTransition reports whether a run may move from one state to another.
func CanTransition(from, to State) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Surface is the rendered-document side the coordinator drives. An HTTP
// session backs it with stored page text; the CLI backs it with text pulled
// straight from the PDF.
type Surface interface {
	// ScrollToPage moves the viewport to the 1-based page.
	ScrollToPage(ctx context.Context, page int) error
	// Leaves returns the page's text leaves in reading order. An empty slice
	// with a nil error means the text layer has not materialized (or the
	// page is scanned); the coordinator treats that as no text, not failure.
	Leaves(ctx context.Context, page int) ([]Leaf, error)
	// ScrollToLeaf brings the anchor leaf into view.
	ScrollToLeaf(ctx context.Context, leaf Leaf) error
	// SetPageRing toggles the page-level fallback indicator.
	SetPageRing(ctx context.Context, page int, on bool) error
}

// Outcome is what a finished navigation run reports back.
type Outcome struct {
	// State is the terminal state the run reached.
	State State
	// Tier is the match fidelity; TierNone for page fallback and for runs
	// without a snippet.
	Tier Tier
	// Page is the target page.
	Page int
	// MatchedLeaves holds the OrderIndex of every marked leaf, ascending.
	MatchedLeaves []int
	// AnchorLeaf is the OrderIndex scrolled to; -1 when nothing was marked.
	AnchorLeaf int
	// Elapsed is how long the run took, for logging and metrics.
	Elapsed time.Duration
}
