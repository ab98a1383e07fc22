// Package diag defines the diagnostic model shared by the compile driver.
//
// # Data model
//
// Problem is the central record. It contains:
//
//   - Severity – six-level enum mirroring the engine's wire names
//     (VERBOSE_INFO .. CRASH), defined in severity.go.
//   - URI / Begin / End – optional source anchor; an empty URI means the
//     problem is not tied to any resource. Offsets are 0-based byte
//     positions into the resolved text of the named resource.
//   - Message – human oriented text; keep it short and actionable.
//
// # Emitting diagnostics
//
// The engine reports through Sink.Record, which never fails and applies a
// RetentionPolicy to decide which severities survive into the final problem
// list. The default policy keeps warnings and errors only, in emission
// order, without reordering or deduplication.
//
// In-process producers that construct Problem values directly should go
// through New/NewAnchored so that malformed ranges fail fast instead of
// travelling through the pipeline.
//
// Keep the data model deterministic and side-effect free: rendering lives in
// internal/diagfmt, transport encoding in internal/codec.
package diag
