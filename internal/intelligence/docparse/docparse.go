// Package docparse extracts the text layer of an uploaded loan document. It
// reads the PDF with pdfcpu, walks each page's content stream for shown text,
// and returns per-page leaves in reading order together with a scanned
// verdict and the numeric candidates later analysis stages disambiguate.
package docparse

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/loanlens/loanlens/internal/domain/document"
	"github.com/loanlens/loanlens/pkg/errors"
)

// defaultScannedThreshold is the rune count below which a whole document is
// treated as scanned. Image-based loan agreements that slip past upload
// yield almost no extractable text.
const defaultScannedThreshold = 100

// truncationMarker is appended when AnalysisText cuts the document.
const truncationMarker = "\n\n[... document truncated ...]"

// ---------------------------------------------------------------------------
// Extraction result
// ---------------------------------------------------------------------------

// Extraction is the text layer pulled from one document.
type Extraction struct {
	// PageCount is the page total, including pages that yielded no text.
	PageCount int

	// Pages holds one entry per page in order; Pages[i].Page is i+1.
	Pages []document.PageText

	// Scanned is the document-level verdict: too little text to analyze.
	Scanned bool

	// TotalChars counts the extracted runes across all pages.
	TotalChars int
}

// Page returns the text layer for a 1-based page number.
func (x *Extraction) Page(n int) (document.PageText, bool) {
	if n < 1 || n > len(x.Pages) {
		return document.PageText{}, false
	}
	return x.Pages[n-1], true
}

// FullText renders the whole document with page markers, the layout the
// analysis prompt is built from.
func (x *Extraction) FullText() string {
	var sb strings.Builder
	for i, p := range x.Pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- PAGE %d ---\n%s", p.Page, p.Text())
	}
	return sb.String()
}

// AnalysisText returns FullText capped at maxChars runes, with a truncation
// marker when the cap applies. maxChars <= 0 means no cap.
func (x *Extraction) AnalysisText(maxChars int) string {
	full := x.FullText()
	if maxChars <= 0 || utf8.RuneCountInString(full) <= maxChars {
		return full
	}
	runes := []rune(full)
	return string(runes[:maxChars]) + truncationMarker
}

// ---------------------------------------------------------------------------
// Extractor
// ---------------------------------------------------------------------------

// Extractor turns raw PDF bytes into an Extraction. The zero configuration
// is production-ready; options exist for tests and tuning.
type Extractor struct {
	scannedThreshold int
	conf             *model.Configuration
}

// Option adjusts an Extractor.
type Option func(*Extractor)

// WithScannedThreshold overrides the rune count below which the document
// counts as scanned.
func WithScannedThreshold(chars int) Option {
	return func(e *Extractor) {
		if chars > 0 {
			e.scannedThreshold = chars
		}
	}
}

// NewExtractor builds an Extractor with the given options applied.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		scannedThreshold: defaultScannedThreshold,
		conf:             model.NewDefaultConfiguration(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads a complete PDF and returns its text layer. The reader must
// carry the whole file; pdfcpu needs random access.
func (e *Extractor) Extract(ctx context.Context, rs io.ReadSeeker) (*Extraction, error) {
	pdfCtx, err := api.ReadValidateAndOptimize(rs, e.conf)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExtractionFailed, "reading pdf")
	}

	out := &Extraction{
		PageCount: pdfCtx.PageCount,
		Pages:     make([]document.PageText, 0, pdfCtx.PageCount),
	}
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeExtractionFailed,
				fmt.Sprintf("extraction cancelled at page %d", pageNr))
		}

		leaves := pageLeaves(pdfCtx, pageNr)
		for _, l := range leaves {
			out.TotalChars += utf8.RuneCountInString(l)
		}
		out.Pages = append(out.Pages, document.PageText{
			Page:    pageNr,
			Leaves:  leaves,
			Scanned: len(leaves) == 0 && pageHasImages(pdfCtx, pageNr),
		})
	}

	out.Scanned = out.TotalChars < e.scannedThreshold
	return out, nil
}

// pageLeaves extracts one page's text leaves via its content stream. Pages
// whose content cannot be read simply yield no leaves; a broken page is not
// a broken document.
func pageLeaves(pdfCtx *model.Context, pageNr int) []string {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil {
		return nil
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return nil
	}
	return leavesFromContent(data)
}

// pageHasImages reports whether the page references image XObjects, the
// signature of a scanned page.
func pageHasImages(pdfCtx *model.Context, pageNr int) bool {
	if pdfCtx.Optimize == nil {
		return false
	}
	return len(pdfcpu.ImageObjNrs(pdfCtx, pageNr)) > 0
}
