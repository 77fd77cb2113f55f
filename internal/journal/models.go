package journal

import (
	"fmt"
	"time"
)

// Entry statuses.
const (
	StatusApplied = "applied"
	StatusFailed  = "failed"
)

// Entry is one journaled tiering attempt.
type Entry struct {
	ID            int64     `json:"id"`
	At            time.Time `json:"at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	EntityKind    string    `json:"entity_kind,omitempty"`
	EntityID      string    `json:"entity_id,omitempty"`
	Path          string    `json:"path"`
	OldValue      string    `json:"old"`
	NewValue      string    `json:"new"`
	Backend       string    `json:"backend"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
}

// timeValue scans timestamps stored as TIMESTAMPTZ (postgres) or RFC3339
// text (sqlite).
type timeValue struct {
	t time.Time
}

func (v *timeValue) Scan(src any) error {
	switch value := src.(type) {
	case time.Time:
		v.t = value.UTC()
	case string:
		return v.parse(value)
	case []byte:
		return v.parse(string(value))
	case nil:
		v.t = time.Time{}
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
	return nil
}

func (v *timeValue) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	v.t = t.UTC()
	return nil
}
