// Package paperless wraps the subset of the Paperless-ngx REST API paperling
// needs: listing tags, listing documents by tag, reading a document, and
// patching its content and tags.
//
// Every request carries the configured Authorization value verbatim and the
// versioned Accept header. Paged endpoints are followed through their `next`
// links. Outbound calls share a token-bucket limiter so a large backlog does
// not hammer the server.
package paperless
