// Package workflow moves tagged Paperless documents through conversion.
//
// The Manager runs two goroutines. The poller resolves the target tag (once,
// then cached), lists the documents carrying it, filters them through the
// retry policy and enqueues the rest. The worker drains the queue one document
// at a time: docling converts the document, the Updater writes the markdown
// into the document's content and removes the tag, and the outcome is recorded
// in the attempts ledger. The worker starts the next document as soon as the
// previous one finishes; the buffered wake channel makes sure a poll that lands
// mid-conversion is not lost.
//
// Failures never stop the loops. A failed document keeps its tag, so the next
// poll discovers it again unless the retry policy says otherwise.
package workflow
