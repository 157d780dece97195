package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/provenance"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

// marshalRecord converts a Record to canonical JSON TEXT for storage.
func marshalRecord(rec vault.Record) (string, error) {
	data, err := ir.MarshalCanonical(rec.Canonical())
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(data), nil
}

// unmarshalRecord parses a stored record and rebuilds the State.
func unmarshalRecord(data string) (*vault.State, error) {
	var rec vault.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	s, err := vault.Import(rec)
	if err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return s, nil
}

// marshalChanges converts a change set to canonical JSON TEXT and returns
// its content hash alongside.
func marshalChanges(changes []provenance.Change) (text, hash string, err error) {
	list := make([]any, len(changes))
	for i, c := range changes {
		list[i] = c.Canonical()
	}
	data, err := ir.MarshalCanonical(list)
	if err != nil {
		return "", "", fmt.Errorf("marshal changes: %w", err)
	}
	hash, err = ir.Fingerprint(ir.DomainChanges, list)
	if err != nil {
		return "", "", fmt.Errorf("marshal changes: %w", err)
	}
	return string(data), hash, nil
}

// unmarshalChanges parses canonical JSON TEXT into a change set.
func unmarshalChanges(data string) ([]provenance.Change, error) {
	var changes []provenance.Change
	if err := json.Unmarshal([]byte(data), &changes); err != nil {
		return nil, fmt.Errorf("unmarshal changes: %w", err)
	}
	if changes == nil {
		changes = []provenance.Change{}
	}
	return changes, nil
}

// Timestamps are stored as Unix nanoseconds so SQL comparisons and
// ordering are numeric.
func toUnixNano(t time.Time) int64 { return t.UTC().UnixNano() }

func fromUnixNano(n int64) time.Time { return time.Unix(0, n).UTC() }
