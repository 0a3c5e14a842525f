package extract

import (
	"context"

	"github.com/joseph-ayodele/invoice-reader/internal/entity"
)

// DocumentLoader is Stage 1: file -> page fragments.
type DocumentLoader interface {
	Load(ctx context.Context, path string) ([]entity.Fragment, error)
}

// DocumentSummarizer is Stage 2: fragments -> summary text.
type DocumentSummarizer interface {
	Summarize(ctx context.Context, fragments []entity.Fragment) (string, error)
}

// RecordExtractor is Stage 3: summary -> validated record plus the raw model output.
type RecordExtractor interface {
	Extract(ctx context.Context, summary string) (*entity.InvoiceRecord, []byte, error)
}
