package highlight

import (
	"context"
	"sync"
	"time"

	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
)

// defaultTextLayerWait bounds how long a run waits for the target page's
// text layer before matching. Pages render asynchronously, so the leaves may
// not exist yet at the moment the scroll lands.
const defaultTextLayerWait = 400 * time.Millisecond

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWait overrides the bounded text-layer wait.
func WithWait(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.wait = d
		}
	}
}

// WithLogger sets the coordinator's logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithThresholds tunes the match engine.
func WithThresholds(th Thresholds) Option {
	return func(c *Coordinator) { c.matcher = NewMatcher(th) }
}

// WithTransitionHook registers a callback invoked on every state change,
// with the coordinator lock held. Used by tests and metrics.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(c *Coordinator) { c.onTransition = fn }
}

// Coordinator owns the current highlight request and drives it through the
// lifecycle: clear old marks, scroll, wait for the text layer, match, then
// mark leaves or fall back to a page ring.
//
// Every Activate call is a new request even when the target's fields equal
// the previous one's; the nonce exists so callers can tell runs apart, the
// coordinator itself never deduplicates. When a new target arrives while a
// run is in flight the old run is cancelled at its next checkpoint and its
// pending timer is stopped, so a stale run can never mark leaves on a page
// the user has navigated away from.
type Coordinator struct {
	surface Surface
	applier *Applier
	matcher *Matcher
	wait    time.Duration
	logger  logging.Logger

	onTransition func(from, to State)

	mu       sync.Mutex
	seq      uint64
	cancel   context.CancelFunc
	state    State
	ringOn   bool
	ringPage int
}

// NewCoordinator builds a Coordinator over the given surface.
func NewCoordinator(surface Surface, opts ...Option) *Coordinator {
	c := &Coordinator{
		surface: surface,
		applier: NewApplier(),
		matcher: NewMatcher(DefaultThresholds()),
		wait:    defaultTextLayerWait,
		logger:  logging.NewNopLogger(),
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("highlight")
	return c
}

// State returns the lifecycle state of the most recent request.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Activate runs the full highlight sequence for target and blocks until it
// reaches a terminal state. It never panics and never returns an error:
// absence of a match is the page-fallback outcome, supersession is the
// cancelled outcome, and anything unexpected is logged and degraded to
// fallback.
func (c *Coordinator) Activate(ctx context.Context, target Target) (out Outcome) {
	start := time.Now()
	out = Outcome{State: StateCancelled, Tier: TierNone, Page: target.Page, AnchorLeaf: -1}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("highlight run panicked, degrading to page fallback",
				logging.Int("page", target.Page),
				logging.String("nonce", target.Nonce),
				logging.Any("panic", r))
			out = Outcome{State: StatePageFallback, Tier: TierNone, Page: target.Page, AnchorLeaf: -1}
		}
		out.Elapsed = time.Since(start)
	}()

	runCtx, seq := c.begin(ctx)
	defer c.release(seq)

	c.logger.Debug("highlight run started",
		logging.Int("page", target.Page),
		logging.String("section", target.Section),
		logging.String("nonce", target.Nonce),
		logging.Bool("has_snippet", target.HasSnippet()))

	// Scroll the target page into view. A scroll failure is a renderer
	// concern; the run keeps going and lets matching decide the outcome.
	if err := c.surface.ScrollToPage(runCtx, target.Page); err != nil {
		c.logger.Warn("scroll to page failed",
			logging.Int("page", target.Page), logging.Err(err))
	}
	if !c.isCurrent(seq) || runCtx.Err() != nil {
		return c.cancelled(seq, target.Page)
	}

	// Bounded wait for the text layer. Skipped when there is no snippet:
	// nothing will be matched, so there is nothing to wait for.
	c.transition(seq, StateAwaitingText)
	if target.HasSnippet() {
		timer := time.NewTimer(c.wait)
		select {
		case <-runCtx.Done():
			timer.Stop()
			return c.cancelled(seq, target.Page)
		case <-timer.C:
		}
	}
	if !c.isCurrent(seq) {
		return c.cancelled(seq, target.Page)
	}

	c.transition(seq, StateMatching)
	res, leaves := c.runMatch(runCtx, target)
	if !c.isCurrent(seq) || runCtx.Err() != nil {
		return c.cancelled(seq, target.Page)
	}

	return c.applyOutcome(runCtx, seq, target, res, leaves)
}

// Clear drops the active highlight, removes any fallback ring, and cancels
// whatever run is in flight. Safe to call at any time, any number of times.
func (c *Coordinator) Clear(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("highlight clear panicked", logging.Any("panic", r))
		}
	}()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
	if c.state != StateIdle {
		if !c.state.Terminal() {
			c.setStateLocked(StateCancelled)
		}
		c.setStateLocked(StateIdle)
	}
	ringOn, ringPage := c.ringOn, c.ringPage
	c.ringOn = false
	c.mu.Unlock()

	c.applier.ClearAll()
	if ringOn {
		if err := c.surface.SetPageRing(ctx, ringPage, false); err != nil {
			c.logger.Warn("clearing page ring failed",
				logging.Int("page", ringPage), logging.Err(err))
		}
	}
}

// begin registers a new run: it cancels the in-flight one, resets the state
// machine to Scrolling, and clears all previous visuals.
func (c *Coordinator) begin(ctx context.Context) (context.Context, uint64) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	seq := c.seq
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if c.state != StateIdle {
		if !c.state.Terminal() {
			c.setStateLocked(StateCancelled)
		}
		c.setStateLocked(StateIdle)
	}
	c.setStateLocked(StateScrolling)
	ringOn, ringPage := c.ringOn, c.ringPage
	c.ringOn = false
	c.mu.Unlock()

	c.applier.ClearAll()
	if ringOn {
		if err := c.surface.SetPageRing(runCtx, ringPage, false); err != nil {
			c.logger.Warn("clearing page ring failed",
				logging.Int("page", ringPage), logging.Err(err))
		}
	}
	return runCtx, seq
}

// release drops the cancel func of the run that owns seq. Later runs keep
// theirs.
func (c *Coordinator) release(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq == seq && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// runMatch loads the page's leaves, builds the index, and runs the match
// engine. Any internal failure is logged and reported as no match. The
// indexed leaves travel back to the caller so mark application works on
// exactly the leaf set that was matched.
func (c *Coordinator) runMatch(ctx context.Context, target Target) (res MatchResult, leaves []Leaf) {
	res = MatchResult{Tier: TierNone}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("match phase panicked, treating as no match",
				logging.Int("page", target.Page), logging.Any("panic", r))
			res = MatchResult{Tier: TierNone}
		}
	}()

	if !target.HasSnippet() {
		return res, nil
	}

	pageLeaves, err := c.surface.Leaves(ctx, target.Page)
	if err != nil {
		c.logger.Warn("loading page leaves failed, treating as no text layer",
			logging.Int("page", target.Page), logging.Err(err))
		return res, nil
	}
	idx := BuildIndex(target.Page, pageLeaves)
	res = c.matcher.Match(idx, target.Snippet)

	// A result whose indices point outside the leaf slice is malformed;
	// demote it to no match rather than propagate.
	for _, li := range res.LeafIndices {
		if li < 0 || li >= len(pageLeaves) {
			c.logger.Error("match produced out-of-range leaf index, treating as no match",
				logging.Int("page", target.Page),
				logging.Int("leaf_index", li),
				logging.Int("leaf_count", len(pageLeaves)))
			return MatchResult{Tier: TierNone}, nil
		}
	}
	return res, pageLeaves
}

// applyOutcome performs the terminal visual mutation under the coordinator
// lock so a superseding run can never interleave with it.
func (c *Coordinator) applyOutcome(ctx context.Context, seq uint64, target Target, res MatchResult, leaves []Leaf) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != seq {
		return Outcome{State: StateCancelled, Tier: TierNone, Page: target.Page, AnchorLeaf: -1}
	}

	if res.Tier != TierNone {
		handles := make([]ElementHandle, 0, len(res.LeafIndices))
		matched := make([]int, 0, len(res.LeafIndices))
		for _, li := range res.LeafIndices {
			handles = append(handles, leaves[li].Handle)
			matched = append(matched, leaves[li].OrderIndex)
		}
		c.applier.ApplyTo(handles)

		anchorIdx := res.LeafIndices[0]
		if err := c.surface.ScrollToLeaf(ctx, leaves[anchorIdx]); err != nil {
			c.logger.Warn("scroll to anchor leaf failed",
				logging.Int("page", target.Page),
				logging.Int("leaf", leaves[anchorIdx].OrderIndex),
				logging.Err(err))
		}
		c.setStateLocked(StateMarked)
		c.logger.Info("highlight marked",
			logging.Int("page", target.Page),
			logging.String("tier", string(res.Tier)),
			logging.Int("leaves", len(matched)))
		return Outcome{
			State:         StateMarked,
			Tier:          res.Tier,
			Page:          target.Page,
			MatchedLeaves: matched,
			AnchorLeaf:    leaves[anchorIdx].OrderIndex,
		}
	}

	if err := c.surface.SetPageRing(ctx, target.Page, true); err != nil {
		c.logger.Warn("setting page ring failed",
			logging.Int("page", target.Page), logging.Err(err))
	} else {
		c.ringOn = true
		c.ringPage = target.Page
	}
	c.setStateLocked(StatePageFallback)
	c.logger.Info("highlight fell back to page ring",
		logging.Int("page", target.Page),
		logging.Bool("had_snippet", target.HasSnippet()))
	return Outcome{State: StatePageFallback, Tier: TierNone, Page: target.Page, AnchorLeaf: -1}
}

func (c *Coordinator) cancelled(seq uint64, page int) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Only a run that is still current may move the shared state; a
	// superseded run's state was already rewritten by its successor.
	if c.seq == seq && !c.state.Terminal() {
		c.setStateLocked(StateCancelled)
	}
	c.logger.Debug("highlight run cancelled", logging.Int("page", page))
	return Outcome{State: StateCancelled, Tier: TierNone, Page: page, AnchorLeaf: -1}
}

func (c *Coordinator) isCurrent(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq == seq
}

// transition moves the state machine if the run still owns it.
func (c *Coordinator) transition(seq uint64, to State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != seq {
		return
	}
	c.setStateLocked(to)
}

// setStateLocked validates and performs a state change. Illegal transitions
// indicate a coordinator bug; they are logged and forced so the machine
// cannot wedge.
func (c *Coordinator) setStateLocked(to State) {
	from := c.state
	if from == to {
		return
	}
	if !CanTransition(from, to) {
		c.logger.Error("illegal highlight state transition forced",
			logging.String("from", string(from)),
			logging.String("to", string(to)))
	}
	c.state = to
	if c.onTransition != nil {
		c.onTransition(from, to)
	}
}
