// Package ir provides the canonical entity model for IIIF Presentation
// archives.
//
// This package contains type definitions and pure value helpers only. All
// other internal packages import ir; ir imports nothing internal. This keeps
// the entity model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Entity is a sealed interface; only the six resource kinds implement it
//   - Entities are treated as immutable once stored; edits go through Clone
//   - Unknown resource types are rejected at the JSON boundary (DecodeDocument)
//   - Canonical JSON (RFC 8785 key order, NFC strings) backs all fingerprints
package ir
