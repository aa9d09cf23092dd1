package document

import (
	"context"

	"github.com/loanlens/loanlens/pkg/types/common"
)

// Repository is the persistence contract for the Document context.
// Implementations must return an error with code DOC_001 (document not
// found) when the id is unknown.
type Repository interface {
	Create(ctx context.Context, d *Document) error
	GetByID(ctx context.Context, id common.ID) (*Document, error)
	List(ctx context.Context, p common.Pagination) ([]*Document, int, error)

	// Update persists lifecycle fields: status, failure note, page count,
	// scanned flag, processed-at.
	Update(ctx context.Context, d *Document) error

	// SavePageTexts replaces the document's extracted page text wholesale.
	SavePageTexts(ctx context.Context, id common.ID, pages []PageText) error
	GetPageTexts(ctx context.Context, id common.ID) ([]PageText, error)
	GetPageText(ctx context.Context, id common.ID, page int) (*PageText, error)
}
