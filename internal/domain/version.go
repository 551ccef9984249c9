package domain

import (
	"encoding/json"
	"time"
)

// Ref identifies a record polymorphically as a (kind, id) pair. One versions
// table serves many entity kinds, and the changer side has the same shape, so
// the pair is carried explicitly instead of being derived from Go types.
type Ref struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// IsZero reports whether the ref carries no identity at all.
func (r Ref) IsZero() bool {
	return r.Kind == "" && r.ID == ""
}

func (r Ref) String() string {
	return r.Kind + "/" + r.ID
}

// Snapshot is the tracked subset of an entity's persisted field values
// captured at a point in time. Values are limited to what JSONB can encode.
type Snapshot map[string]any

// Clone returns a shallow copy so a captured snapshot cannot be mutated
// through the caller's map.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	out := make(Snapshot, len(s))
	for key, value := range s {
		out[key] = value
	}
	return out
}

// ToJSONB encodes the snapshot for storage in a jsonb column.
func (s Snapshot) ToJSONB() (json.RawMessage, error) {
	if s == nil {
		s = Snapshot{}
	}
	return json.Marshal(s)
}

// SnapshotFromJSONB decodes a snapshot read back from a jsonb column.
func SnapshotFromJSONB(raw json.RawMessage) (Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, err
	}
	if snapshot == nil {
		snapshot = Snapshot{}
	}
	return snapshot, nil
}

// VersionRecord is one immutable captured version of an entity. Records are
// append-only: nothing in this package updates or deletes one after creation.
type VersionRecord struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Entity    Ref       `json:"entity"`
	Changer   *Ref      `json:"changer,omitempty"`
	Version   int64     `json:"version"`
	Snapshot  Snapshot  `json:"snapshot"`
}

// FieldVersion is one entry in a single field's change history.
type FieldVersion struct {
	Version   int64     `json:"version"`
	Value     any       `json:"value"`
	ChangedAt time.Time `json:"changed_at"`
	Changer   *Ref      `json:"changer,omitempty"`
}
