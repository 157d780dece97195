package vault

import (
	"errors"
	"fmt"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
)

// Error is a structural failure reported by a Txn.
type Error struct {
	Code     ir.ErrorCode
	EntityID string
	Message  string
}

func (e *Error) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.EntityID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errorf(code ir.ErrorCode, id, format string, args ...any) *Error {
	return &Error{Code: code, EntityID: id, Message: fmt.Sprintf(format, args...)}
}

func notFound(id string) *Error {
	return errorf(ir.ErrEntityNotFound, id, "entity %s not found", id)
}

// CodeOf returns the error code of a vault error, or "" for other errors.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ir.ErrorCode {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// NewError builds an Error for packages that operate on a State.
func NewError(code ir.ErrorCode, id, format string, args ...any) *Error {
	return errorf(code, id, format, args...)
}
