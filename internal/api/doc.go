// Package api defines the wire-format types served by the daemon's HTTP
// status surface and the client the CLI uses to read them.
//
// # Key Types
//
// StatusResponse: queue length, processing flag, in-flight document, the
// effective configuration, the pending list and workflow counters.
//
// QueueResponse: the pending documents in processing order.
//
// AttemptsResponse: retry ledger records with their current verdict.
//
// # Converters
//
// FromStatusSummary: workflow.StatusSummary plus config -> StatusResponse.
//
// FromAttemptRecords: attempts.Record slice plus policy -> []AttemptRecord.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds in
// UTC. Fields that are unknown until the first successful poll (tagId,
// inFlight) are encoded as null rather than omitted so consumers see a stable
// shape.
package api
