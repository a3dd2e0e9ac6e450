package workflow

import (
	"context"
	"fmt"

	"paperling/internal/services"
	"paperling/internal/services/paperless"
)

const convertedMimeType = "application/pdf"

// Updater writes conversion results back to Paperless.
type Updater struct {
	client PaperlessAPI
}

// NewUpdater constructs an Updater.
func NewUpdater(client PaperlessAPI) *Updater {
	return &Updater{client: client}
}

// Commit replaces the document content with text, then removes tagID from the
// document. When the second step fails the content stays written; a retry
// converts and writes it again.
func (u *Updater) Commit(ctx context.Context, documentID, tagID int64, text string) error {
	if err := u.client.PatchDocument(ctx, documentID, paperless.DocumentPatch{
		Content:  &text,
		MimeType: convertedMimeType,
	}); err != nil {
		return services.Wrap(services.ErrUpdate, "paperless", "write content", fmt.Sprintf("document %d", documentID), err)
	}
	if err := u.RemoveTag(ctx, documentID, tagID); err != nil {
		return err
	}
	return nil
}

// RemoveTag re-reads the document and patches its tag list without tagID.
func (u *Updater) RemoveTag(ctx context.Context, documentID, tagID int64) error {
	doc, err := u.client.GetDocument(ctx, documentID)
	if err != nil {
		return services.Wrap(services.ErrUpdate, "paperless", "read tags", fmt.Sprintf("document %d", documentID), err)
	}
	remaining := make([]int64, 0, len(doc.Tags))
	for _, id := range doc.Tags {
		if id != tagID {
			remaining = append(remaining, id)
		}
	}
	if err := u.client.PatchDocument(ctx, documentID, paperless.DocumentPatch{Tags: &remaining}); err != nil {
		return services.Wrap(services.ErrUpdate, "paperless", "remove tag", fmt.Sprintf("document %d", documentID), err)
	}
	return nil
}
