package event_test

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tierwatch/internal/event"
)

func loadFixture(t *testing.T, name string) event.Notification {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	n, err := event.Parse(data)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return n
}

func TestFilterKeepsOnlyWatchedKeyInOrder(t *testing.T) {
	n := loadFixture(t, "task_update.json")
	changes := event.Filter(n, event.DefaultWatchedKey)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if changes[0].EntityKind != "Task" || changes[0].EntityID != "ecc077e8-8475-11ec-9a8b-8e5ff4a86448" {
		t.Fatalf("unexpected first change: %+v", changes[0])
	}
	if changes[1].EntityKind != "AssetVersion" {
		t.Fatalf("unexpected second change: %+v", changes[1])
	}
	tr, ok := changes[1].Transition(event.DefaultWatchedKey)
	if !ok || tr.Old != "yul" || tr.New != "lax" {
		t.Fatalf("unexpected transition: %+v %v", tr, ok)
	}
	if tr, ok := changes[1].Transition("comment"); !ok || tr.Old != "" || tr.New != "ok" {
		t.Fatalf("unexpected comment transition: %+v", tr)
	}
}

func TestFilterNoWatchedKeyIsEmpty(t *testing.T) {
	n := loadFixture(t, "task_update.json")
	if got := event.Filter(n, "status"); len(got) != 0 {
		t.Fatalf("expected no changes, got %+v", got)
	}
	// Filtering twice yields the same result.
	if got := event.Filter(n, "status"); len(got) != 0 {
		t.Fatalf("expected no changes on repeat, got %+v", got)
	}
}

func TestFilterPreservesValuesByteForByte(t *testing.T) {
	values := []string{"", "yul", " spaced ", "ünïcode", `quote"d`, "multi\nline"}
	for _, old := range values {
		for _, nw := range values {
			n := notificationWith(t, map[string]any{
				"entity_type": "Task",
				"entityId":    "id",
				"keys":        []string{"hs_location"},
				"changes":     map[string]any{"hs_location": map[string]string{"old": old, "new": nw}},
			})
			changes := event.Filter(n, "hs_location")
			if len(changes) != 1 {
				t.Fatalf("expected 1 change, got %d", len(changes))
			}
			tr, _ := changes[0].Transition("hs_location")
			if tr.Old != old || tr.New != nw {
				t.Fatalf("transition mismatch: got %q->%q want %q->%q", tr.Old, tr.New, old, nw)
			}
		}
	}
}

func TestFilterNonStringValuesRenderAsJSON(t *testing.T) {
	n := notificationWith(t, map[string]any{
		"entity_type": "Task",
		"entityId":    "id",
		"keys":        []string{"hs_location"},
		"changes":     map[string]any{"hs_location": map[string]any{"old": nil, "new": []string{"yul", "lax"}}},
	})
	changes := event.Filter(n, "hs_location")
	tr, _ := changes[0].Transition("hs_location")
	if tr.Old != "" || tr.New != `["yul","lax"]` {
		t.Fatalf("unexpected transition %+v", tr)
	}
}

func TestTransitionGatedByKeys(t *testing.T) {
	change := event.EntityChange{
		Keys:        []string{"name"},
		Transitions: map[string]event.Transition{"hs_location": {Old: "a", New: "b"}},
	}
	if _, ok := change.Transition("hs_location"); ok {
		t.Fatal("transition for unlisted key must not be returned")
	}
}

func TestFilterMalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"no data":          `{"topic":"ftrack.update"}`,
		"data not object":  `{"topic":"ftrack.update","data":"nope"}`,
		"no entities":      `{"topic":"ftrack.update","data":{}}`,
		"entities object":  `{"topic":"ftrack.update","data":{"entities":{"a":1}}}`,
		"entities strings": `{"topic":"ftrack.update","data":{"entities":["x"]}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			n, err := event.Parse([]byte(doc))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := event.Filter(n, "hs_location"); len(got) != 0 {
				t.Fatalf("expected empty result, got %+v", got)
			}
			if _, err := event.Extract(n, "hs_location"); err == nil {
				t.Fatal("expected Extract to report the problem")
			}
		})
	}
}

func TestFilterSkipsUndecodableRecord(t *testing.T) {
	doc := `{"topic":"ftrack.update","data":{"entities":[
		{"entity_type":"Task","entityId":"a","keys":["hs_location"],"changes":{"hs_location":{"old":"","new":"yul"}}},
		{"entity_type":42,"keys":["hs_location"]},
		{"entity_type":"Task","entityId":"b","keys":["hs_location"],"changes":{"hs_location":{"old":"yul","new":""}}}
	]}}`
	n, err := event.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	changes, err := event.Extract(n, "hs_location")
	if err == nil {
		t.Fatal("expected error for undecodable record")
	}
	if len(changes) != 2 || changes[0].EntityID != "a" || changes[1].EntityID != "b" {
		t.Fatalf("unexpected changes %+v", changes)
	}
}

func TestDecoderReadsStream(t *testing.T) {
	stream := `{"id":"1","topic":"ftrack.update","data":{}}
{"id":"2","topic":"ftrack.update","data":{}}`
	dec := event.NewDecoder(strings.NewReader(stream))
	var ids []string
	for {
		n, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		ids = append(ids, n.ID)
	}
	if strings.Join(ids, ",") != "1,2" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestParseRejectsMissingTopic(t *testing.T) {
	if _, err := event.Parse([]byte(`{"id":"x"}`)); err == nil {
		t.Fatal("expected error")
	}
	if _, err := event.Parse(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func notificationWith(t *testing.T, entities ...map[string]any) event.Notification {
	t.Helper()
	data, err := json.Marshal(map[string]any{"entities": entities})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return event.Notification{ID: "n1", Topic: event.TopicUpdate, Data: data}
}
