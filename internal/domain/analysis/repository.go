package analysis

import (
	"context"

	"github.com/loanlens/loanlens/pkg/types/common"
)

// Repository is the persistence contract for analysis results. A bundle is
// written once per processing run and replaces whatever a previous run left
// behind. Implementations return code ANA_005 (analysis not found) when no
// bundle exists for the document.
type Repository interface {
	SaveBundle(ctx context.Context, b *Bundle) error
	GetBundle(ctx context.Context, docID common.ID) (*Bundle, error)

	GetSummary(ctx context.Context, docID common.ID) (*Summary, error)
	GetRedFlags(ctx context.Context, docID common.ID) ([]RedFlag, error)
	GetHiddenClauses(ctx context.Context, docID common.ID) ([]HiddenClause, error)
	GetFinancialTerms(ctx context.Context, docID common.ID) ([]FinancialTerm, error)
}
