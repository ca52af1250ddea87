// Package schema validates build artifact metadata files against CUE
// schemas. It ships built-in schemas for requirements files, collection
// galaxy manifests, and role metadata, and supports registering
// additional schemas at runtime.
//
// Validation returns structured records rather than a single opaque
// error so callers can render per-field diagnostics. Records are sorted
// by data path so output is stable across runs.
package schema
