package validate

import (
	"fmt"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
)

// Level is the severity of an Issue.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Category groups issues by rule family.
type Category string

const (
	CategoryIdentity  Category = "identity"
	CategoryShape     Category = "shape"
	CategoryHierarchy Category = "hierarchy"
	CategoryBehavior  Category = "behavior"
)

// Issue is one validation finding.
type Issue struct {
	Level    Level        `json:"level"`
	Category Category     `json:"category"`
	Code     ir.ErrorCode `json:"code"`
	EntityID string       `json:"entityId,omitempty"`
	Field    string       `json:"field,omitempty"`
	Message  string       `json:"message"`
	// Fixable means Heal can correct the issue without user input.
	Fixable bool `json:"fixable"`
}

func (i Issue) Error() string {
	if i.Field != "" {
		return fmt.Sprintf("%s: %s: %s", i.Code, i.Field, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Code, i.Message)
}

func errorIssue(cat Category, code ir.ErrorCode, field, format string, args ...any) Issue {
	return Issue{Level: LevelError, Category: cat, Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

func warningIssue(cat Category, code ir.ErrorCode, field, format string, args ...any) Issue {
	return Issue{Level: LevelWarning, Category: cat, Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Errors returns the error-level issues.
func Errors(issues []Issue) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Level == LevelError {
			out = append(out, i)
		}
	}
	return out
}

// Warnings returns the warning-level issues.
func Warnings(issues []Issue) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Level == LevelWarning {
			out = append(out, i)
		}
	}
	return out
}

// HasErrors reports whether any issue is error-level.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Level == LevelError {
			return true
		}
	}
	return false
}

// Report is the outcome of ValidateBehaviors.
type Report struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}
