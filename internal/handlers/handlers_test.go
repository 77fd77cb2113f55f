package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tierwatch/internal/dispatch"
	"tierwatch/internal/entity"
	"tierwatch/internal/event"
	"tierwatch/internal/handlers"
	"tierwatch/internal/location"
	"tierwatch/internal/logging"
	"tierwatch/internal/resolve"
	"tierwatch/internal/services"
	"tierwatch/internal/tiering"
)

type call struct {
	path, old, new string
}

type recordingNotifier struct {
	calls []call
	fail  map[string]error
}

func (n *recordingNotifier) Notify(_ context.Context, path, oldValue, newValue string) error {
	if err := n.fail[path]; err != nil {
		return err
	}
	n.calls = append(n.calls, call{path, oldValue, newValue})
	return nil
}

type staticPath struct {
	path string
	err  error
}

func (s staticPath) Resolve(context.Context, string, string) (string, error) { return s.path, s.err }

type staticComponents struct {
	res resolve.ComponentResolution
	err error
}

func (s staticComponents) Resolve(context.Context, string, string) (resolve.ComponentResolution, error) {
	return s.res, s.err
}

func change(kind string, keys []string, transitions map[string]event.Transition) event.EntityChange {
	return event.EntityChange{EntityKind: kind, EntityID: "e1", Keys: keys, Transitions: transitions}
}

func locationChange(kind, old, new string) event.EntityChange {
	return change(kind, []string{"hs_location"}, map[string]event.Transition{"hs_location": {Old: old, New: new}})
}

func TestTaskHandlerNotifiesOnce(t *testing.T) {
	n := &recordingNotifier{}
	h := handlers.NewTaskHandler(handlers.Deps{Hierarchy: staticPath{path: "/mnt/show/sq01"}, Notifier: n})

	res, err := h.Handle(context.Background(), locationChange("task", "online", "archive"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(n.calls) != 1 || n.calls[0] != (call{"/mnt/show/sq01", "online", "archive"}) {
		t.Fatalf("unexpected notifications %+v", n.calls)
	}
	if len(res.Paths) != 1 || res.Skipped {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestTaskHandlerPropagatesResolveError(t *testing.T) {
	n := &recordingNotifier{}
	wantErr := services.Wrap(services.ErrUnresolvable, "resolve", "hierarchy", "no project", nil)
	h := handlers.NewTaskHandler(handlers.Deps{Hierarchy: staticPath{err: wantErr}, Notifier: n})

	_, err := h.Handle(context.Background(), locationChange("task", "", "online"))
	if !errors.Is(err, services.ErrUnresolvable) {
		t.Fatalf("expected unresolvable, got %v", err)
	}
	if len(n.calls) != 0 {
		t.Fatalf("expected no notifications, got %+v", n.calls)
	}
}

func TestHandlersSkipWithoutTransition(t *testing.T) {
	n := &recordingNotifier{}
	deps := handlers.Deps{Hierarchy: staticPath{path: "/mnt/x"}, Components: staticComponents{}, Notifier: n}
	for _, h := range []dispatch.Handler{handlers.NewTaskHandler(deps), handlers.NewAssetVersionHandler(deps)} {
		res, err := h.Handle(context.Background(), change("task", []string{"hs_location"}, nil))
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if !res.Skipped {
			t.Fatalf("expected skip, got %+v", res)
		}
	}
	if len(n.calls) != 0 {
		t.Fatalf("expected no notifications, got %+v", n.calls)
	}
}

func TestAssetVersionHandlerNotifiesEveryPresentComponent(t *testing.T) {
	n := &recordingNotifier{}
	res := resolve.ComponentResolution{
		Paths: []resolve.ComponentPath{
			{Component: entity.Component{ID: "c1"}, Availability: 1, Path: "/mnt/a.exr"},
			{Component: entity.Component{ID: "c3"}, Availability: 0.5, Path: "/mnt/c.%04d.exr"},
		},
		Skipped:  []entity.Component{{ID: "c2"}},
		Produced: true,
	}
	h := handlers.NewAssetVersionHandler(handlers.Deps{Components: staticComponents{res: res}, Notifier: n})

	out, err := h.Handle(context.Background(), locationChange("assetversion", "online", "nearline"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	want := []call{{"/mnt/a.exr", "online", "nearline"}, {"/mnt/c.%04d.exr", "online", "nearline"}}
	if fmt.Sprint(n.calls) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, n.calls)
	}
	if len(out.Paths) != 2 || out.Skipped {
		t.Fatalf("unexpected result %+v", out)
	}
}

func TestAssetVersionHandlerLogsComponentAvailability(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "handlers.log")
	logger, err := logging.New(logging.Options{Level: "debug", Format: "json", Outputs: []string{logPath}})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	res := resolve.ComponentResolution{
		Paths:    []resolve.ComponentPath{{Component: entity.Component{ID: "c3", Name: "plates"}, Availability: 0.5, Path: "/mnt/c.%04d.exr"}},
		Skipped:  []entity.Component{{ID: "c2", Name: "proxy"}},
		Produced: true,
	}
	h := handlers.NewAssetVersionHandler(handlers.Deps{Components: staticComponents{res: res}, Notifier: &recordingNotifier{}, Logger: logger})
	if _, err := h.Handle(context.Background(), locationChange("assetversion", "online", "nearline")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	availability := map[string]float64{}
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		if id, ok := record["component_id"].(string); ok {
			availability[id], _ = record["availability"].(float64)
		}
	}
	if len(availability) != 2 || availability["c3"] != 0.5 || availability["c2"] != 0 {
		t.Fatalf("unexpected logged availability %v", availability)
	}
}

func TestAssetVersionHandlerNothingProduced(t *testing.T) {
	n := &recordingNotifier{}
	h := handlers.NewAssetVersionHandler(handlers.Deps{
		Components: staticComponents{res: resolve.ComponentResolution{Skipped: []entity.Component{{ID: "c1"}}}},
		Notifier:   n,
	})
	out, err := h.Handle(context.Background(), locationChange("assetversion", "", "online"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !out.Skipped || len(n.calls) != 0 {
		t.Fatalf("expected skip without notifications, got %+v %+v", out, n.calls)
	}
}

func TestAssetVersionHandlerContinuesAfterBackendFailure(t *testing.T) {
	backendErr := services.Wrap(services.ErrBackend, "tiering", "xattr", "/mnt/a", errors.New("denied"))
	n := &recordingNotifier{fail: map[string]error{"/mnt/a": backendErr}}
	res := resolve.ComponentResolution{
		Paths: []resolve.ComponentPath{
			{Component: entity.Component{ID: "a"}, Availability: 1, Path: "/mnt/a"},
			{Component: entity.Component{ID: "b"}, Availability: 1, Path: "/mnt/b"},
		},
		Produced: true,
	}
	h := handlers.NewAssetVersionHandler(handlers.Deps{Components: staticComponents{res: res}, Notifier: n})

	out, err := h.Handle(context.Background(), locationChange("assetversion", "a", "b"))
	if !errors.Is(err, services.ErrBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if len(n.calls) != 1 || n.calls[0].path != "/mnt/b" {
		t.Fatalf("expected second path to be notified, got %+v", n.calls)
	}
	if len(out.Paths) != 1 {
		t.Fatalf("unexpected result paths %v", out.Paths)
	}
}

func TestRegisterDefaults(t *testing.T) {
	reg := dispatch.NewRegistry()
	err := handlers.Register(reg, handlers.Deps{
		Hierarchy:  staticPath{},
		Components: staticComponents{},
		Notifier:   &recordingNotifier{},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	kinds := reg.Kinds()
	if fmt.Sprint(kinds) != "[assetversion task]" {
		t.Fatalf("unexpected kinds %v", kinds)
	}
	if err := handlers.Register(dispatch.NewRegistry(), handlers.Deps{}); err == nil {
		t.Fatal("expected error without notifier")
	}
}

// fakeStore implements resolve.EntityStore and location.ComponentLocator.
type fakeStore struct {
	chains     map[string][]entity.Link
	projects   map[string]entity.Entity
	components map[string][]entity.Component
	registered map[string]string
}

func (f *fakeStore) LinkChain(_ context.Context, kind, id string) ([]entity.Link, error) {
	chain, ok := f.chains[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "fake", "link chain", kind+" "+id, nil)
	}
	return chain, nil
}

func (f *fakeStore) Project(_ context.Context, id string) (entity.Entity, error) {
	p, ok := f.projects[id]
	if !ok {
		return entity.Entity{}, services.Wrap(services.ErrNotFound, "fake", "project", id, nil)
	}
	return p, nil
}

func (f *fakeStore) Components(_ context.Context, kind, id string) ([]entity.Component, error) {
	c, ok := f.components[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "fake", "components", kind+" "+id, nil)
	}
	return c, nil
}

func (f *fakeStore) ComponentLocations(_ context.Context, _ string, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if ident, ok := f.registered[id]; ok {
			out[id] = ident
		}
	}
	return out, nil
}

func TestDispatchEndToEnd(t *testing.T) {
	prefix := t.TempDir()
	store := &fakeStore{
		chains: map[string][]entity.Link{
			"t1": {{ID: "p1", Name: "Show 1"}, {ID: "ep", Name: "Ep1"}, {ID: "sq", Name: "Seq/1"}, {ID: "t1", Name: "Compositing"}},
		},
		projects: map[string]entity.Entity{"p1": {ID: "p1", Name: "Show 1"}},
		components: map[string][]entity.Component{
			"v1": {{ID: "c1", Name: "main"}, {ID: "c2", Name: "proxy"}},
			"v2": {{ID: "c9", Name: "gone"}},
		},
		registered: map[string]string{"c1": "show_1/v1/main.exr"},
	}
	loc := location.New("loc", location.Structure{Separator: "/"}, location.Accessor{Prefix: prefix}, store)
	backend := tiering.NewRecordBackend()
	notifier := tiering.NewNotifier(backend)

	reg := dispatch.NewRegistry()
	if err := handlers.Register(reg, handlers.Deps{
		Hierarchy:  resolve.NewHierarchyResolver(store, loc),
		Components: resolve.NewComponentResolver(store, loc),
		Notifier:   notifier,
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	d := dispatch.NewDispatcher(reg, dispatch.Options{})

	data, _ := json.Marshal(map[string]any{"entities": []map[string]any{
		{"entity_type": "task", "entityId": "t1", "keys": []string{"hs_location"}, "changes": map[string]any{"hs_location": map[string]any{"old": nil, "new": "online"}}},
		{"entity_type": "assetversion", "entityId": "v1", "keys": []string{"hs_location", "comment"}, "changes": map[string]any{"hs_location": map[string]any{"old": "online", "new": "archive"}}},
		{"entity_type": "assetversion", "entityId": "v2", "keys": []string{"hs_location"}, "changes": map[string]any{"hs_location": map[string]any{"old": "online", "new": "archive"}}},
		{"entity_type": "task", "entityId": "missing", "keys": []string{"hs_location"}, "changes": map[string]any{"hs_location": map[string]any{"old": "a", "new": "b"}}},
		{"entity_type": "show", "entityId": "p1", "keys": []string{"hs_location"}, "changes": map[string]any{"hs_location": map[string]any{"old": "a", "new": "b"}}},
		{"entity_type": "task", "entityId": "t1", "keys": []string{"name"}},
	}})
	ack := d.Dispatch(context.Background(), event.Notification{ID: "n1", Topic: event.TopicUpdate, Data: data})

	if !ack.Success || ack.Matched != 5 || ack.Handled != 2 || ack.Skipped != 2 || ack.Unhandled != 1 {
		t.Fatalf("unexpected ack %+v", ack)
	}
	actions := backend.Actions()
	if len(actions) != 2 {
		t.Fatalf("expected 2 tiering actions, got %+v", actions)
	}
	if want := filepath.Join(prefix, "Show_1", "Ep1", "Seq_1"); actions[0].Path != want || actions[0].Old != "" || actions[0].New != "online" {
		t.Fatalf("unexpected task action %+v (want path %s)", actions[0], want)
	}
	if want := filepath.Join(prefix, "show_1", "v1", "main.exr"); actions[1].Path != want || actions[1].New != "archive" {
		t.Fatalf("unexpected component action %+v (want path %s)", actions[1], want)
	}
	if actions[1].CorrelationID != "n1" || actions[1].EntityID != "v1" {
		t.Fatalf("expected correlation and entity on action, got %+v", actions[1])
	}
}
