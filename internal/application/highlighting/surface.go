package highlighting

import (
	"context"
	"sync"

	domaindoc "github.com/loanlens/loanlens/internal/domain/document"
	"github.com/loanlens/loanlens/internal/highlight"
	"github.com/loanlens/loanlens/pkg/errors"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// leafHandle records the mark state of one text leaf. It stands in for the
// rendered element a browser viewer would own.
type leafHandle struct {
	mu sync.Mutex
	on bool
}

func (h *leafHandle) Mark() {
	h.mu.Lock()
	h.on = true
	h.mu.Unlock()
}

func (h *leafHandle) Unmark() {
	h.mu.Lock()
	h.on = false
	h.mu.Unlock()
}

func (h *leafHandle) Highlighted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.on
}

// pageSurface adapts a document's stored page text to the highlight Surface.
// There is no real viewport on the server, so scroll positions and page rings
// are recorded instead of rendered; the recorded state is what makes
// re-trigger and clear semantics observable through the API.
//
// Handles are kept per page across runs. A repeated activation therefore
// unmarks and re-marks the same handle objects, exactly like a viewer that
// keeps its DOM between requests.
type pageSurface struct {
	docs  domaindoc.Repository
	docID common.ID

	mu          sync.Mutex
	handles     map[int][]*leafHandle
	rings       map[int]bool
	currentPage int
	anchorLeaf  int
}

func newPageSurface(docs domaindoc.Repository, docID common.ID) *pageSurface {
	return &pageSurface{
		docs:       docs,
		docID:      docID,
		handles:    make(map[int][]*leafHandle),
		rings:      make(map[int]bool),
		anchorLeaf: -1,
	}
}

func (s *pageSurface) ScrollToPage(ctx context.Context, page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPage = page
	s.anchorLeaf = -1
	return nil
}

// Leaves serves the page's stored text. A page with no stored row reads as an
// empty text layer, which the coordinator resolves to the page fallback.
func (s *pageSurface) Leaves(ctx context.Context, page int) ([]highlight.Leaf, error) {
	pt, err := s.docs.GetPageText(ctx, s.docID, page)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodePageOutOfRange) {
			return nil, nil
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	hs := s.handles[page]
	if len(hs) != len(pt.Leaves) {
		hs = make([]*leafHandle, len(pt.Leaves))
		for i := range hs {
			hs[i] = &leafHandle{}
		}
		s.handles[page] = hs
	}
	leaves := make([]highlight.Leaf, len(pt.Leaves))
	for i, raw := range pt.Leaves {
		leaves[i] = highlight.Leaf{RawText: raw, OrderIndex: i, Handle: hs[i]}
	}
	return leaves, nil
}

func (s *pageSurface) ScrollToLeaf(ctx context.Context, leaf highlight.Leaf) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchorLeaf = leaf.OrderIndex
	return nil
}

func (s *pageSurface) SetPageRing(ctx context.Context, page int, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.rings[page] = true
	} else {
		delete(s.rings, page)
	}
	return nil
}

// MarkedLeaves returns the order indices currently marked on page, ascending.
func (s *pageSurface) MarkedLeaves(page int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var marked []int
	for i, h := range s.handles[page] {
		if h.Highlighted() {
			marked = append(marked, i)
		}
	}
	return marked
}

// RingOn reports whether the page-level fallback ring is showing on page.
func (s *pageSurface) RingOn(page int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rings[page]
}

// CurrentPage returns the page the surface last scrolled to.
func (s *pageSurface) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPage
}

// AnchorLeaf returns the order index last scrolled to, -1 when none.
func (s *pageSurface) AnchorLeaf() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anchorLeaf
}
