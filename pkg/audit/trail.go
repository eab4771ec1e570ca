package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Entry is one immutable line of an entity's audit trail.
type Entry struct {
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// Trail is an append-only sequence of entries embedded on an entity.
// Prior entries are never mutated or removed.
type Trail []Entry

// Append returns a new trail with the entry added; the receiver is not modified.
func (t Trail) Append(action, actor, details string) Trail {
	out := make(Trail, len(t), len(t)+1)
	copy(out, t)
	return append(out, Entry{
		Action:    action,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Details:   details,
	})
}

func (t Trail) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *Trail) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = Trail{}
		return nil
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("unsupported audit trail source type %T", src)
	}
}

// NewEntryJSON marshals a single entry, used for in-database trail appends.
func NewEntryJSON(action, actor, details string) ([]byte, error) {
	return json.Marshal(Entry{
		Action:    action,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Details:   details,
	})
}
