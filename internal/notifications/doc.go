// Package notifications publishes workflow events to ntfy.
//
// NewService returns a no-op Service when no topic is configured, so callers
// publish unconditionally. Converted-document messages are sent only when
// notify_success is enabled; exhausted retries always produce a high priority
// message.
package notifications
