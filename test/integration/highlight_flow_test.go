//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanlens/loanlens/internal/application/highlighting"
	"github.com/loanlens/loanlens/internal/config"
	domaindoc "github.com/loanlens/loanlens/internal/domain/document"
)

// highlightTestPages mirror a real contract's text layer: a page of prose
// split into leaves plus a scanned page with nothing extractable.
func highlightTestPages() []domaindoc.PageText {
	return []domaindoc.PageText{
		{Page: 1, Leaves: []string{"Loan Agreement", "Between Borrower and Lender"}},
		{Page: 2, Leaves: []string{
			"Section 4. Prepayment.",
			"The borrower shall pay a penalty equal to",
			"six months of interest if the loan is repaid",
			"within the first three years of the term.",
		}},
		{Page: 3, Scanned: true},
	}
}

func TestHighlightAgainstStoredPages(t *testing.T) {
	conn := startPostgres(t)
	docs, results := newRepos(conn)
	docID := seedAnalyzedDocument(t, docs, results, highlightTestPages())

	cfg := config.DefaultHighlight()
	cfg.TextLayerWait = 5 * time.Millisecond
	svc := highlighting.NewService(docs, cfg, nil, nil)
	ctx := context.Background()

	t.Run("full match spans leaves", func(t *testing.T) {
		result, err := svc.Activate(ctx, &highlighting.ActivateInput{
			DocumentID: docID,
			Page:       2,
			Section:    "Section 4",
			Snippet:    "penalty equal to six months of interest",
		})
		require.NoError(t, err)
		assert.Equal(t, "marked", result.State)
		assert.Equal(t, "full", result.Tier)
		assert.Equal(t, []int{1, 2}, result.MatchedLeaves)
		require.NotNil(t, result.AnchorLeaf)
		assert.Equal(t, 1, *result.AnchorLeaf)
	})

	t.Run("token tier survives paraphrase", func(t *testing.T) {
		result, err := svc.Activate(ctx, &highlighting.ActivateInput{
			DocumentID: docID,
			Page:       2,
			Snippet:    "a prepayment penalty of interest may be charged when repaid early",
		})
		require.NoError(t, err)
		assert.Equal(t, "marked", result.State)
		assert.NotEqual(t, "none", result.Tier)
		assert.NotEmpty(t, result.MatchedLeaves)
	})

	t.Run("scanned page falls back", func(t *testing.T) {
		result, err := svc.Activate(ctx, &highlighting.ActivateInput{
			DocumentID: docID,
			Page:       3,
			Snippet:    "anything",
		})
		require.NoError(t, err)
		assert.Equal(t, "page_fallback", result.State)
		assert.Equal(t, "none", result.Tier)
	})

	t.Run("clear returns to idle", func(t *testing.T) {
		_, err := svc.Activate(ctx, &highlighting.ActivateInput{
			DocumentID: docID,
			Page:       2,
			Snippet:    "penalty equal to six months of interest",
		})
		require.NoError(t, err)

		cleared, err := svc.Clear(ctx, docID)
		require.NoError(t, err)
		assert.Equal(t, "idle", cleared.State)
	})
}
