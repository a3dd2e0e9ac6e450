// Package daemon coordinates the long-running paperling process.
//
// It ties configuration, the workflow manager, the retry ledger and the HTTP
// status server into a single lifecycle with flock-based locking to prevent
// multiple instances from converting the same documents. Startup fails fast
// when the lock is held or the API address cannot be bound; after that no
// error stops the process until its context is cancelled.
//
// Keep orchestration logic here: discovery and conversion live in workflow
// while the daemon focuses on startup, shutdown, and the read-only status
// surface.
package daemon
