package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// DefaultWatchedKey is the location tag attribute.
const DefaultWatchedKey = "hs_location"

// Transition is the old and new value of one attribute.
type Transition struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// EntityChange is one entity record of an update notification.
type EntityChange struct {
	EntityKind  string                `json:"entity_kind"`
	EntityID    string                `json:"entity_id"`
	Action      string                `json:"action,omitempty"`
	Keys        []string              `json:"keys"`
	Transitions map[string]Transition `json:"transitions,omitempty"`
}

// HasKey reports whether key is listed among the changed attribute keys.
func (c EntityChange) HasKey(key string) bool {
	return slices.Contains(c.Keys, key)
}

// Transition returns the transition for key. Transitions for keys that are not
// listed as changed are never returned.
func (c EntityChange) Transition(key string) (Transition, bool) {
	if !c.HasKey(key) {
		return Transition{}, false
	}
	t, ok := c.Transitions[key]
	return t, ok
}

type payload struct {
	Entities json.RawMessage `json:"entities"`
}

type entityRecord struct {
	EntityType string                     `json:"entity_type"`
	EntityID   string                     `json:"entityId"`
	Action     string                     `json:"action"`
	Keys       []string                   `json:"keys"`
	Changes    map[string]json.RawMessage `json:"changes"`
}

type rawTransition struct {
	Old json.RawMessage `json:"old"`
	New json.RawMessage `json:"new"`
}

// Filter returns the entity changes of n whose changed keys contain key, in
// arrival order. Malformed payloads produce an empty result.
func Filter(n Notification, key string) []EntityChange {
	changes, _ := Extract(n, key)
	return changes
}

// Extract behaves like Filter and additionally reports why records were
// dropped. The returned changes are valid even when err is non-nil.
func Extract(n Notification, key string) ([]EntityChange, error) {
	if key == "" {
		return nil, errors.New("watched key is empty")
	}
	if len(bytes.TrimSpace(n.Data)) == 0 {
		return nil, errors.New("notification has no data")
	}
	var p payload
	if err := json.Unmarshal(n.Data, &p); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	if len(p.Entities) == 0 {
		return nil, errors.New("data has no entities")
	}
	var records []json.RawMessage
	if err := json.Unmarshal(p.Entities, &records); err != nil {
		return nil, fmt.Errorf("entities is not a list: %w", err)
	}

	var (
		out  []EntityChange
		errs []error
	)
	for i, raw := range records {
		var rec entityRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			errs = append(errs, fmt.Errorf("entity %d: %w", i, err))
			continue
		}
		if !slices.Contains(rec.Keys, key) {
			continue
		}
		change, err := rec.toChange()
		if err != nil {
			errs = append(errs, fmt.Errorf("entity %d: %w", i, err))
			continue
		}
		out = append(out, change)
	}
	return out, errors.Join(errs...)
}

func (r entityRecord) toChange() (EntityChange, error) {
	change := EntityChange{
		EntityKind:  r.EntityType,
		EntityID:    r.EntityID,
		Action:      r.Action,
		Keys:        slices.Clone(r.Keys),
		Transitions: make(map[string]Transition, len(r.Keys)),
	}
	for _, k := range r.Keys {
		raw, ok := r.Changes[k]
		if !ok {
			continue
		}
		var rt rawTransition
		if err := json.Unmarshal(raw, &rt); err != nil {
			return EntityChange{}, fmt.Errorf("changes[%s]: %w", k, err)
		}
		change.Transitions[k] = Transition{Old: valueString(rt.Old), New: valueString(rt.New)}
	}
	return change, nil
}

// valueString renders a transition value. Strings are kept verbatim, null and
// missing values become "", anything else is rendered as compact JSON.
func valueString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}
