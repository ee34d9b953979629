// Package services defines shared utilities consumed by the backend clients
// and the batch runners.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, pipeline names, and the current input
//     identifier for logging.
//   - Structured error markers plus the Wrap helper that tag failures with the
//     error taxonomy (configuration, backend, malformed response, input) so
//     result records can report a stable error kind.
//
// Use these helpers when wiring new backend logic so failure handling stays
// uniform across both pipelines.
package services
