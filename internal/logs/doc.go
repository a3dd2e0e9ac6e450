// Package logs reads the daemon's current log file for the CLI.
//
// The daemon writes one file per run and points paperling.log at the newest
// one. Last returns the trailing lines of that file and Follow streams lines
// appended after a given offset, restarting from the top when the pointer
// moves to a fresh run.
package logs
