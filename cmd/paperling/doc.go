// Command paperling runs the Paperless-ngx to docling conversion daemon and
// provides CLI views of its status, queue and retry ledger.
//
// The daemon subcommand runs in the foreground; every other subcommand either
// talks to a running daemon over its HTTP status API or works on local state
// (retry ledger, configuration) directly.
package main
