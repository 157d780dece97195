// Package engine implements the action pipeline of the archive store.
//
// ARCHITECTURE:
//
// Actions:
// Every edit is a value of the sealed Action interface (UpdateLabel,
// AddCanvas, ReorderChildren, MoveToTrash, ...). Actions are plain records
// with a JSON/YAML envelope ({"type": "UpdateLabel", ...}) so scripts and
// logs can carry them.
//
// Dispatcher:
// Dispatch(state, action) validates the action against the current state
// and applies it in a vault.Txn. The input state is never modified; on
// failure it is returned unchanged together with a *DispatchError.
//
// Engine:
// The session facade. It owns the current snapshot, the undo/redo history
// and the provenance log, and is the only place that feeds either of them.
//
// Dispatch Flow:
// 1. Resolve targets in the current state (EntityNotFound on a miss)
// 2. Validate the edited entity or inserted subtree (validate package)
// 3. Apply in a Txn and commit a new snapshot
// 4. Engine pushes history and records provenance changes
//
// The engine is synchronous and single-writer. Nothing here blocks or
// performs I/O; persistence lives in the store package.
package engine
