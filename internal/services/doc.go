// Package services defines shared utilities consumed by the workflow and the
// external integrations (Paperless, docling).
//
// Key responsibilities:
//   - Context helpers that stamp document IDs and correlation identifiers for
//     logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified per phase (resolution, discovery, conversion, update).
//
// Use these helpers when wiring new integration code so error handling and
// observability stay uniform across the pipeline.
package services
