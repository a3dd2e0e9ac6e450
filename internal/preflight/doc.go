// Package preflight provides readiness checks for the external services and
// filesystem paths paperling depends on.
//
// The CLI "paperling check" command runs RunAll and renders every Result.
// The daemon logs the same results once at startup but never refuses to start
// on a failed check: Paperless may come up after paperling, and the workflow
// retries tag resolution on every poll.
package preflight
