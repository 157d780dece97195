// Package vault implements the normalized entity store.
//
// A State holds every live entity in per-kind tables keyed by ID, an
// ordered child list per parent and slot, a reverse index from each owned
// child to its parent, and a many-to-many index of non-owning references
// (ranges referencing canvases, collections referencing collections).
// Trashed subtrees live alongside the live tables.
//
// States are immutable. All edits go through a Txn, which copies only the
// maps it touches and produces a new State on Commit; the previous State
// stays valid and unchanged, which is what history and provenance rely on.
//
// The vault enforces structural invariants (unique IDs, a single owner per
// entity, reverse index consistency, no reference cycles). Hierarchy and
// behavior rules are checked by package validate before a Txn is opened.
package vault
