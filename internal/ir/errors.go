package ir

// ErrorCode categorizes validation and dispatch failures.
type ErrorCode string

const (
	// ErrEntityNotFound indicates an action or lookup targeted an unknown ID.
	ErrEntityNotFound ErrorCode = "EntityNotFound"

	// ErrInvalidShape indicates a malformed label, metadata, ID, or dimension.
	ErrInvalidShape ErrorCode = "InvalidShape"

	// ErrInvalidChildType indicates a parent/child kind pairing the
	// hierarchy table forbids.
	ErrInvalidChildType ErrorCode = "InvalidChildType"

	// ErrInvalidBehavior indicates a behavior token not valid for the kind.
	ErrInvalidBehavior ErrorCode = "InvalidBehavior"

	// ErrConflictingBehavior indicates two tokens from one disjoint set.
	ErrConflictingBehavior ErrorCode = "ConflictingBehavior"

	// ErrStructuralIntegrity indicates a broken tree invariant (duplicate ID,
	// dangling reference, reference cycle, root removal).
	ErrStructuralIntegrity ErrorCode = "StructuralIntegrity"
)
