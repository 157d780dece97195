package harness

import "github.com/micahchoo/biiif-web-studio-sub000/internal/vault"

// TraceEvent records one flow step.
type TraceEvent struct {
	Step int `json:"step"`
	// Op is the action type, or the session operation name.
	Op string `json:"op"`
	// Case is "Success", "Empty" or an error code.
	Case string `json:"case"`
	// Changes maps each touched entity to its changed properties.
	Changes map[string][]string `json:"changes,omitempty"`
	// Purged lists the IDs removed by empty_trash or cleanup_trash.
	Purged   []string `json:"purged,omitempty"`
	Warnings int      `json:"warnings"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per flow step (advance_days steps excluded).
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the session state after the flow.
	Final *vault.State `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
