// Package attempts records conversion failures per Paperless document in a
// small SQLite database and decides, through Policy, whether a tagged document
// should be picked up again.
//
// A record exists only while a document is failing: success deletes it, and
// operators clear records with `paperling attempts reset`. The default Policy
// never gives up and never delays, so a failing document is retried on every
// poll for as long as it keeps its tag.
//
// Schema changes bump schemaVersion in schema.go; users delete attempts.db to
// adopt the new schema.
package attempts
