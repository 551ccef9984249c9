package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Contact is the reference entity shipped with the library. It is what the
// bundled server and the tests run through the versioning engine; host
// applications bring their own entity types. Field values live in a jsonb
// document so the persistence side stays schema-free.
type Contact struct {
	ID        uuid.UUID      `json:"id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewContact creates a contact with a fresh identity.
func NewContact(fields map[string]any) Contact {
	now := time.Now()
	return Contact{
		ID:        uuid.New(),
		Fields:    copyFields(fields),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetField stages a single field value on the contact.
func (c *Contact) SetField(key string, value any) {
	if c.Fields == nil {
		c.Fields = map[string]any{}
	}
	c.Fields[key] = value
}

// SetFields stages a batch of field values on the contact.
func (c *Contact) SetFields(changes map[string]any) {
	for key, value := range changes {
		c.SetField(key, value)
	}
}

// GetFieldsAsJSONB encodes the field document for storage.
func (c *Contact) GetFieldsAsJSONB() (json.RawMessage, error) {
	if c.Fields == nil {
		c.Fields = map[string]any{}
	}
	return json.Marshal(c.Fields)
}

// FromJSONBFields decodes a field document read back from storage.
func FromJSONBFields(raw json.RawMessage) (map[string]any, error) {
	var fields map[string]any
	err := json.Unmarshal(raw, &fields)
	return fields, err
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		out[key] = value
	}
	return out
}
