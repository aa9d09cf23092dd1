package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loanlens/loanlens/internal/config"
	"github.com/loanlens/loanlens/internal/highlight"
	"github.com/loanlens/loanlens/internal/intelligence/docparse"
	"github.com/loanlens/loanlens/pkg/types/common"
)

type highlightOptions struct {
	page    int
	section string
	snippet string
	pretty  bool
}

// newHighlightCommand runs the snippet locator against a local PDF: extract
// the page's text leaves, match the snippet through the three tiers, and
// print the outcome. Useful for tuning thresholds against real documents.
func newHighlightCommand(opts *rootOptions) *cobra.Command {
	h := &highlightOptions{}
	cmd := &cobra.Command{
		Use:   "highlight <file.pdf>",
		Short: "Locate a snippet on a page of a local document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHighlight(cmd, opts, h, args[0])
		},
	}
	cmd.Flags().IntVar(&h.page, "page", 1, "1-based page number")
	cmd.Flags().StringVar(&h.snippet, "snippet", "", "snippet text to locate (empty: page navigation only)")
	cmd.Flags().StringVar(&h.section, "section", "", "section label carried through to the result")
	cmd.Flags().BoolVar(&h.pretty, "pretty", false, "indent the JSON output")
	return cmd
}

// highlightReport is the command's JSON output shape.
type highlightReport struct {
	State         string   `json:"state"`
	Tier          string   `json:"tier"`
	Page          int      `json:"page"`
	MatchedLeaves []int    `json:"matched_leaves"`
	AnchorLeaf    *int     `json:"anchor_leaf,omitempty"`
	LeafTexts     []string `json:"leaf_texts,omitempty"`
	ElapsedMS     int64    `json:"elapsed_ms"`
}

func runHighlight(cmd *cobra.Command, opts *rootOptions, h *highlightOptions, path string) error {
	log := offlineLogger(opts)

	ex, err := extractFile(cmd, path)
	if err != nil {
		return err
	}
	if h.page < 1 || h.page > ex.PageCount {
		return fmt.Errorf("page %d is out of range; the document has %d pages", h.page, ex.PageCount)
	}

	surface := newExtractionSurface(ex)
	hcfg := config.DefaultHighlight()
	coord := highlight.NewCoordinator(surface,
		highlight.WithThresholds(highlight.Thresholds{
			PartialMinWords:    hcfg.PartialMinWords,
			PartialPrefixWords: hcfg.PartialPrefixWords,
			TokenMinLength:     hcfg.TokenMinLength,
			TokenMaxCount:      hcfg.TokenMaxCount,
		}),
		highlight.WithWait(hcfg.TextLayerWait),
		highlight.WithLogger(log),
	)

	outcome := coord.Activate(cmd.Context(), highlight.Target{
		Page:    h.page,
		Section: h.section,
		Snippet: h.snippet,
		Nonce:   common.NewNonce(),
	})

	report := highlightReport{
		State:         string(outcome.State),
		Tier:          string(outcome.Tier),
		Page:          outcome.Page,
		MatchedLeaves: outcome.MatchedLeaves,
		LeafTexts:     surface.leafTexts(outcome.Page, outcome.MatchedLeaves),
		ElapsedMS:     outcome.Elapsed.Milliseconds(),
	}
	if report.MatchedLeaves == nil {
		report.MatchedLeaves = []int{}
	}
	if outcome.AnchorLeaf >= 0 {
		anchor := outcome.AnchorLeaf
		report.AnchorLeaf = &anchor
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if h.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(report)
}

// offlineHandle is the mark target for the offline surface; there is no
// viewport, so marks are just remembered.
type offlineHandle struct {
	marked bool
}

func (o *offlineHandle) Mark()             { o.marked = true }
func (o *offlineHandle) Unmark()           { o.marked = false }
func (o *offlineHandle) Highlighted() bool { return o.marked }

// extractionSurface adapts a local extraction to the highlight surface. The
// text layer is already in memory, so leaves are always available.
type extractionSurface struct {
	ex      *docparse.Extraction
	handles map[int][]*offlineHandle
}

func newExtractionSurface(ex *docparse.Extraction) *extractionSurface {
	return &extractionSurface{ex: ex, handles: make(map[int][]*offlineHandle)}
}

func (s *extractionSurface) ScrollToPage(ctx context.Context, page int) error { return nil }

func (s *extractionSurface) Leaves(ctx context.Context, page int) ([]highlight.Leaf, error) {
	pt, ok := s.ex.Page(page)
	if !ok || pt.Scanned {
		return nil, nil
	}
	handles, ok := s.handles[page]
	if !ok {
		handles = make([]*offlineHandle, len(pt.Leaves))
		for i := range handles {
			handles[i] = &offlineHandle{}
		}
		s.handles[page] = handles
	}
	leaves := make([]highlight.Leaf, len(pt.Leaves))
	for i, raw := range pt.Leaves {
		leaves[i] = highlight.Leaf{RawText: raw, OrderIndex: i, Handle: handles[i]}
	}
	return leaves, nil
}

func (s *extractionSurface) ScrollToLeaf(ctx context.Context, leaf highlight.Leaf) error { return nil }

func (s *extractionSurface) SetPageRing(ctx context.Context, page int, on bool) error { return nil }

// leafTexts returns the raw text of the matched leaves, for the report.
func (s *extractionSurface) leafTexts(page int, indices []int) []string {
	pt, ok := s.ex.Page(page)
	if !ok {
		return nil
	}
	var texts []string
	for _, i := range indices {
		if i >= 0 && i < len(pt.Leaves) {
			texts = append(texts, pt.Leaves[i])
		}
	}
	return texts
}
