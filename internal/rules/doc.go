// Package rules holds the static hierarchy and behavior tables for IIIF
// resources: which kinds a parent may contain in each slot, which
// behavior tokens are valid on which kinds, which tokens are mutually
// exclusive, and which kinds inherit behaviors from their ancestors.
//
// The tables are written in CUE (rules.cue) and checked against
// schema.cue when loaded. Default returns the embedded tables; LoadFile
// reads an override file that is unified with the same schema.
//
// A Table is read-only after loading and safe for concurrent use.
package rules
