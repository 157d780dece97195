package engine

// # Replay and Determinism
//
// Dispatch is a pure function of (State, Action, clock reading). There is no
// hidden state in the Dispatcher: replaying the same action list from the
// same starting State with the same clock yields snapshots with identical
// fingerprints (vault.Fingerprint).
//
// Two mechanisms make this hold:
//
// 1. Copy-on-write snapshots
//
// A vault.Txn never writes to its base State. A failed action discards the
// Txn, so the caller's State is returned as is; there is no partial apply
// to roll back.
//
// 2. Ordered outputs
//
// Child lists are ordered slices, change sets are kept in first-touched
// order and validation issues are visited in ID order, so Result values
// are the same on every run.
//
// Replay is used by the scenario harness and by the CLI "apply" command.

import "github.com/micahchoo/biiif-web-studio-sub000/internal/vault"

// Replay applies actions to s in order, threading each successful result
// into the next dispatch. Rejected actions leave the running state alone
// and do not stop the replay. It returns the final state and one Result
// per action.
func (d *Dispatcher) Replay(s *vault.State, actions []Action) (*vault.State, []Result) {
	results := make([]Result, len(actions))
	for i, a := range actions {
		res := d.Dispatch(s, a)
		results[i] = res
		if res.Success {
			s = res.State
		}
	}
	return s, results
}
