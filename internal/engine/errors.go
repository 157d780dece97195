package engine

import (
	"errors"
	"fmt"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/validate"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

// DispatchError describes why an action was rejected.
//
// Dispatch never panics on bad input and never returns a half-applied
// state: a DispatchError always comes with the unchanged input State.
type DispatchError struct {
	// Code identifies the error category.
	Code ir.ErrorCode

	// Message is a human-readable description.
	Message string

	// Action is the type of the rejected action.
	Action string

	// EntityID identifies the entity the failure is about, when known.
	EntityID string

	// Field names the offending property (e.g. "label", "behavior[1]").
	Field string

	// Issues holds every blocking validation error, first one first.
	Issues []validate.Issue
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	switch {
	case e.EntityID != "" && e.Field != "":
		return fmt.Sprintf("%s: %s (entity=%s, field=%s)", e.Code, e.Message, e.EntityID, e.Field)
	case e.EntityID != "":
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.EntityID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// CodeOf returns the error code carried by err, or "" when err is neither
// a DispatchError nor a vault error. Uses errors.As to handle wrapped errors.
func CodeOf(err error) ir.ErrorCode {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code
	}
	return vault.CodeOf(err)
}

// IsNotFound returns true if err reports a missing entity or trash entry.
func IsNotFound(err error) bool { return CodeOf(err) == ir.ErrEntityNotFound }

// IsInvalidShape returns true if err reports a malformed value.
func IsInvalidShape(err error) bool { return CodeOf(err) == ir.ErrInvalidShape }

// IsInvalidChildType returns true if err reports a hierarchy violation.
func IsInvalidChildType(err error) bool { return CodeOf(err) == ir.ErrInvalidChildType }

// IsInvalidBehavior returns true if err reports a behavior not valid for the kind.
func IsInvalidBehavior(err error) bool { return CodeOf(err) == ir.ErrInvalidBehavior }

// IsConflictingBehavior returns true if err reports mutually exclusive behaviors.
func IsConflictingBehavior(err error) bool { return CodeOf(err) == ir.ErrConflictingBehavior }

// IsStructuralIntegrity returns true if err reports a broken tree invariant.
func IsStructuralIntegrity(err error) bool { return CodeOf(err) == ir.ErrStructuralIntegrity }

func newError(code ir.ErrorCode, action, id, format string, args ...any) *DispatchError {
	return &DispatchError{Code: code, Action: action, EntityID: id, Message: fmt.Sprintf(format, args...)}
}

func notFound(action, id string) *DispatchError {
	return newError(ir.ErrEntityNotFound, action, id, "entity %s not found", id)
}

// issueError builds an error from blocking validation issues.
func issueError(action string, issues []validate.Issue) *DispatchError {
	first := issues[0]
	return &DispatchError{
		Code:     first.Code,
		Message:  first.Message,
		Action:   action,
		EntityID: first.EntityID,
		Field:    first.Field,
		Issues:   issues,
	}
}

// wrapError converts errors from the vault and trash layers.
func wrapError(action string, err error) *DispatchError {
	var de *DispatchError
	if errors.As(err, &de) {
		return de
	}
	var ve *vault.Error
	if errors.As(err, &ve) {
		return &DispatchError{Code: ve.Code, Action: action, EntityID: ve.EntityID, Message: ve.Message}
	}
	return &DispatchError{Code: ir.ErrStructuralIntegrity, Action: action, Message: err.Error()}
}
