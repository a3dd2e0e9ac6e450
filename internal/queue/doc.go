// Package queue holds the in-memory processing queue for documents awaiting
// conversion.
//
// Queue is the single owner of the pending list and the in-flight slot. Every
// mutation goes through its methods under one mutex, so the poller and the
// worker can share it without extra coordination. Entries are unique by
// document ID across pending entries and the in-flight entry, at most one
// entry is in flight, and entries leave the pending list the moment they
// start.
//
// The queue is not persisted. After a restart the next poll rebuilds it from
// the documents that still carry the target tag.
package queue
