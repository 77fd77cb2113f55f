package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// TopicUpdate is the topic the tracking service publishes record updates on.
const TopicUpdate = "ftrack.update"

// ErrInvalid marks a document that was read but is not a usable notification.
var ErrInvalid = errors.New("invalid notification")

// Notification is a change message as delivered by the subscription source.
// Data holds the payload (entities plus sender metadata); only the entity list
// is examined. Source and Sent are passed through untouched.
type Notification struct {
	ID     string          `json:"id"`
	Topic  string          `json:"topic"`
	Data   json.RawMessage `json:"data,omitempty"`
	Source json.RawMessage `json:"source,omitempty"`
	Sent   json.RawMessage `json:"sent,omitempty"`
	Target string          `json:"target,omitempty"`
}

// Parse decodes a single notification document.
func Parse(payload []byte) (Notification, error) {
	var n Notification
	if len(bytes.TrimSpace(payload)) == 0 {
		return n, fmt.Errorf("%w: empty document", ErrInvalid)
	}
	if err := json.Unmarshal(payload, &n); err != nil {
		return n, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if strings.TrimSpace(n.Topic) == "" {
		return n, fmt.Errorf("%w: no topic", ErrInvalid)
	}
	return n, nil
}

// Decoder reads a stream of concatenated (or newline separated) notifications.
type Decoder struct {
	dec *json.Decoder
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

// Next returns the next notification. It returns io.EOF when the stream is
// exhausted.
func (d *Decoder) Next() (Notification, error) {
	var raw json.RawMessage
	if err := d.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return Notification{}, io.EOF
		}
		return Notification{}, fmt.Errorf("read notification: %w", err)
	}
	return Parse(raw)
}
