package domain

import (
	"encoding/json"
	"reflect"
	"sort"
)

// FieldChange captures the old and new value of one field between two
// snapshots. A field absent from a snapshot compares as null.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Diff maps field names to their change between two snapshots. Fields whose
// values are equal in both snapshots are omitted entirely.
type Diff map[string]FieldChange

// ComputeDiff compares two snapshots field by field over the union of their
// keys. Values are normalized into the JSON type domain first so that values
// read back from jsonb compare strictly against freshly captured Go values.
func ComputeDiff(from, to Snapshot) Diff {
	diff := Diff{}
	for _, key := range unionKeys(from, to) {
		oldValue := NormalizeValue(from[key])
		newValue := NormalizeValue(to[key])
		if !reflect.DeepEqual(oldValue, newValue) {
			diff[key] = FieldChange{Old: oldValue, New: newValue}
		}
	}
	return diff
}

// NormalizeValue reduces a value to JSON's type domain (string, bool, float64,
// nil, []any, map[string]any). Snapshots captured from live Go values carry
// types like int that never come back from jsonb, so both sides of a
// comparison go through the same reduction.
func NormalizeValue(value any) any {
	switch value.(type) {
	case nil, string, bool, float64:
		return value
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return value
	}
	return out
}

func unionKeys(from, to Snapshot) []string {
	seen := make(map[string]struct{}, len(from)+len(to))
	for key := range from {
		seen[key] = struct{}{}
	}
	for key := range to {
		seen[key] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
