// Package docling wraps the docling CLI.
//
// Each conversion runs in its own scratch directory beneath the configured
// scratch root. The tool receives the Paperless download URL plus an
// Authorization header so it fetches the original itself; the first markdown
// file it writes is returned as the document text. The scratch directory is
// removed on every exit path. Tests inject an Executor to avoid spawning the
// real binary.
package docling
