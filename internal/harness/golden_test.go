package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// To regenerate after an intentional trace change:
//
//	go test ./internal/harness -run TestGolden -update
func TestGolden_Scenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, s))
		})
	}
}

func TestTraceSnapshot_OmitsEmptyFields(t *testing.T) {
	snap := TraceSnapshot{
		ScenarioName: "s",
		Trace: []TraceEvent{
			{Step: 0, Op: DoUndo, Case: CaseEmpty},
			{Step: 1, Op: DoEmptyTrash, Case: CaseSuccess, Purged: []string{"b", "a"}},
			{Step: 2, Op: "UpdateLabel", Case: CaseSuccess, Changes: map[string][]string{"x": {"label"}}, Warnings: 2},
		},
	}

	got, err := snap.canonicalJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"s","trace":[`+
			`{"case":"Empty","op":"undo","step":0,"warnings":0},`+
			`{"case":"Success","op":"empty_trash","purged":["a","b"],"step":1,"warnings":0},`+
			`{"case":"Success","changes":{"x":["label"]},"op":"UpdateLabel","step":2,"warnings":2}]}`,
		string(got))
}
