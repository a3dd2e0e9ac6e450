package workflow

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/text/unicode/norm"

	"paperling/internal/logging"
	"paperling/internal/services"
	"paperling/internal/services/paperless"
)

// TagResolver finds the target tag ID by name and caches it for the process
// lifetime. Until the first success every call hits the API again.
type TagResolver struct {
	client PaperlessAPI
	name   string
	logger *slog.Logger

	// lookupMu serialises API lookups; mu guards only the cached result so
	// readers never wait on the network.
	lookupMu sync.Mutex
	mu       sync.Mutex
	id       int64
	resolved bool
}

// NewTagResolver constructs a resolver for name.
func NewTagResolver(client PaperlessAPI, name string, logger *slog.Logger) *TagResolver {
	return &TagResolver{
		client: client,
		name:   name,
		logger: logging.NewComponentLogger(logger, "tags"),
	}
}

// Name returns the configured tag name.
func (r *TagResolver) Name() string {
	return r.name
}

// ID returns the cached tag ID, if resolved.
func (r *TagResolver) ID() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id, r.resolved
}

// Resolve returns the tag ID, looking it up when not cached yet. It returns
// false when the lookup failed or no tag has the configured name.
func (r *TagResolver) Resolve(ctx context.Context) (int64, bool) {
	if id, ok := r.ID(); ok {
		return id, true
	}
	r.lookupMu.Lock()
	defer r.lookupMu.Unlock()
	if id, ok := r.ID(); ok {
		return id, true
	}

	tags, err := r.client.ListTags(ctx)
	if err != nil {
		wrapped := services.Wrap(services.ErrResolution, "tags", "list", "could not list tags", err)
		logging.WarnWithContext(r.logger, "tag resolution failed", "tag_resolution_failed",
			logging.String("tag_name", r.name),
			logging.String(logging.FieldErrorKind, services.Classify(wrapped)),
			logging.String(logging.FieldErrorHint, services.Hint(wrapped)),
			logging.String(logging.FieldImpact, "no documents are discovered until the tag resolves"),
			logging.Error(wrapped),
		)
		return 0, false
	}

	if tag, ok := FindTag(tags, r.name); ok {
		r.mu.Lock()
		r.id = tag.ID
		r.resolved = true
		r.mu.Unlock()
		r.logger.Info("tag resolved",
			logging.String(logging.FieldEventType, "tag_resolved"),
			logging.String("tag_name", r.name),
			logging.Int64(logging.FieldTagID, tag.ID),
		)
		return tag.ID, true
	}

	logging.WarnWithContext(r.logger, "tag not found", "tag_not_found",
		logging.String("tag_name", r.name),
		logging.Int("tags_seen", len(tags)),
		logging.String(logging.FieldErrorHint, "create the tag in Paperless or set TAG_NAME"),
		logging.String(logging.FieldImpact, "no documents are discovered until the tag exists"),
	)
	return 0, false
}

// FindTag returns the first tag whose name equals name after NFC
// normalization. The comparison is case-sensitive.
func FindTag(tags []paperless.Tag, name string) (paperless.Tag, bool) {
	want := norm.NFC.String(name)
	for _, tag := range tags {
		if norm.NFC.String(tag.Name) == want {
			return tag, true
		}
	}
	return paperless.Tag{}, false
}
