package workflow

import (
	"context"
	"time"

	"paperling/internal/attempts"
	"paperling/internal/services/paperless"
)

// PaperlessAPI is the subset of the Paperless client the workflow uses.
type PaperlessAPI interface {
	ListTags(ctx context.Context) ([]paperless.Tag, error)
	ListDocumentsWithTag(ctx context.Context, tagID int64) ([]paperless.Document, error)
	GetDocument(ctx context.Context, id int64) (paperless.Document, error)
	PatchDocument(ctx context.Context, id int64, patch paperless.DocumentPatch) error
	DownloadURL(id int64) string
}

// Ledger records conversion outcomes per document.
type Ledger interface {
	RecordFailure(ctx context.Context, f attempts.Failure) (attempts.Record, error)
	RecordSuccess(ctx context.Context, documentID int64) error
	Get(ctx context.Context, documentID int64) (attempts.Record, bool, error)
}

// Clock returns the current time.
type Clock func() time.Time
