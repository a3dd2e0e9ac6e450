package api

import (
	"time"

	"paperling/internal/attempts"
	"paperling/internal/config"
	"paperling/internal/queue"
	"paperling/internal/workflow"
)

// FromQueueEntry converts a queue entry to its API representation.
func FromQueueEntry(entry queue.Entry) DocumentRef {
	return DocumentRef{ID: entry.ID, Title: entry.Title}
}

// FromQueueEntries converts pending entries, always returning a non-nil slice.
func FromQueueEntries(entries []queue.Entry) []DocumentRef {
	refs := make([]DocumentRef, 0, len(entries))
	for _, entry := range entries {
		refs = append(refs, FromQueueEntry(entry))
	}
	return refs
}

// FromConfig extracts the configuration block reported by /status.
func FromConfig(cfg *config.Config) Configuration {
	if cfg == nil {
		return Configuration{}
	}
	return Configuration{
		TagName:             cfg.Paperless.TagName,
		CheckInterval:       cfg.Workflow.PollIntervalMS,
		DoclingPipeline:     cfg.Docling.Pipeline,
		DoclingModel:        cfg.Docling.Model,
		DoclingDevice:       cfg.Docling.Device,
		DoclingThreads:      cfg.Docling.Threads,
		DoclingPDFBackend:   cfg.Docling.PDFBackend,
		DoclingOCREngine:    cfg.Docling.OCREngine,
		DoclingExtraArgs:    cfg.Docling.ExtraArgs,
		MaxAttempts:         cfg.Workflow.MaxAttempts,
		RetryBackoffSeconds: cfg.Workflow.RetryBackoffSeconds,
	}
}

// FromStatusSummary converts the workflow snapshot to the /status payload.
func FromStatusSummary(summary workflow.StatusSummary, cfg *config.Config) StatusResponse {
	resp := StatusResponse{
		QueueLength:     summary.QueueLength,
		IsProcessing:    summary.IsProcessing(),
		Configuration:   FromConfig(cfg),
		ProcessingQueue: FromQueueEntries(summary.Pending),
		Workflow: WorkflowStatus{
			State:     summary.State,
			LastPoll:  formatTime(summary.LastPoll),
			Succeeded: summary.Succeeded,
			Failed:    summary.Failed,
			LastError: summary.LastError,
		},
	}
	if summary.TagName != "" {
		resp.Configuration.TagName = summary.TagName
	}
	if summary.TagID != nil {
		id := *summary.TagID
		resp.Configuration.TagID = &id
	}
	if summary.InFlight != nil {
		ref := FromQueueEntry(*summary.InFlight)
		resp.InFlight = &ref
		resp.Workflow.InFlightSince = formatTime(summary.StartedAt)
	}
	return resp
}

// FromAttemptRecords converts ledger records and evaluates each against policy at now.
func FromAttemptRecords(records []attempts.Record, policy attempts.Policy, now time.Time) []AttemptRecord {
	out := make([]AttemptRecord, 0, len(records))
	for _, rec := range records {
		verdict := policy.Check(rec, now)
		dto := AttemptRecord{
			DocumentID:    rec.DocumentID,
			Title:         rec.Title,
			Failures:      rec.Failures,
			LastError:     rec.LastError,
			ErrorKind:     rec.ErrorKind,
			FirstFailedAt: formatTime(rec.FirstFailedAt),
			LastFailedAt:  formatTime(rec.LastFailedAt),
			Verdict:       verdict.String(),
		}
		if verdict == attempts.Waiting {
			dto.NextAttemptAt = formatTime(policy.NextAttemptAt(rec))
		}
		out = append(out, dto)
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
