package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tierwatch/internal/dispatch"
	"tierwatch/internal/event"
	"tierwatch/internal/services"
)

type recordingHandler struct {
	mu    sync.Mutex
	seen  []string
	fails map[string]error
}

func (h *recordingHandler) Handle(_ context.Context, change event.EntityChange) (dispatch.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, change.EntityID)
	if err := h.fails[change.EntityID]; err != nil {
		return dispatch.Result{}, err
	}
	return dispatch.Result{Paths: []string{"/mnt/" + change.EntityID}}, nil
}

type fakeObserver struct {
	received []string
	outcomes []string
	timed    int
}

func (o *fakeObserver) NotificationReceived(topic string) { o.received = append(o.received, topic) }
func (o *fakeObserver) ChangeProcessed(kind, outcome string) {
	o.outcomes = append(o.outcomes, kind+":"+outcome)
}
func (o *fakeObserver) DispatchDuration(time.Duration) { o.timed++ }

type fakeAlerter struct {
	failed    []string
	unhandled []string
}

func (a *fakeAlerter) NotifyChangeFailed(_ context.Context, kind, id string, _ error) error {
	a.failed = append(a.failed, kind+"/"+id)
	return nil
}

func (a *fakeAlerter) NotifyUnhandledKind(_ context.Context, kind, id string) error {
	a.unhandled = append(a.unhandled, kind+"/"+id)
	return errors.New("ntfy down")
}

func notification(t *testing.T, changes ...[2]string) event.Notification {
	t.Helper()
	entities := make([]map[string]any, 0, len(changes))
	for _, c := range changes {
		entities = append(entities, map[string]any{
			"entity_type": c[0],
			"entityId":    c[1],
			"keys":        []string{"hs_location"},
			"changes":     map[string]any{"hs_location": map[string]string{"old": "", "new": "yul"}},
		})
	}
	data, err := json.Marshal(map[string]any{"entities": entities})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return event.Notification{ID: "evt-1", Topic: event.TopicUpdate, Data: data}
}

func TestDispatchRoutesCaseInsensitively(t *testing.T) {
	task := &recordingHandler{}
	registry := dispatch.NewRegistry()
	if err := registry.Register("Task", task); err != nil {
		t.Fatalf("register: %v", err)
	}
	d := dispatch.NewDispatcher(registry, dispatch.Options{})

	ack := d.Dispatch(context.Background(), notification(t, [2]string{"TASK", "a"}, [2]string{"task", "b"}))
	if !ack.Success || ack.Handled != 2 || ack.Matched != 2 {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if strings.Join(task.seen, ",") != "a,b" {
		t.Fatalf("unexpected routing: %v", task.seen)
	}
}

func TestDispatchUnknownKindIsReportedNotRaised(t *testing.T) {
	alerter := &fakeAlerter{}
	d := dispatch.NewDispatcher(dispatch.NewRegistry(), dispatch.Options{Alerter: alerter})

	ack := d.Dispatch(context.Background(), notification(t, [2]string{"Unicorn", "u1"}))
	if !ack.Success {
		t.Fatalf("unhandled kind must not fail the ack: %+v", ack)
	}
	if ack.Unhandled != 1 || ack.Handled != 0 {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if len(alerter.unhandled) != 1 || alerter.unhandled[0] != "Unicorn/u1" {
		t.Fatalf("expected unhandled alert, got %v", alerter.unhandled)
	}
	if !strings.Contains(ack.Message, "1 unhandled") {
		t.Fatalf("unexpected message %q", ack.Message)
	}
}

func TestDispatchFailureIsolatedToOneChange(t *testing.T) {
	task := &recordingHandler{fails: map[string]error{
		"b": services.Wrap(services.ErrUnresolvable, "resolve", "project", "missing", nil),
	}}
	registry := dispatch.NewRegistry()
	_ = registry.Register("task", task)
	observer := &fakeObserver{}
	alerter := &fakeAlerter{}
	d := dispatch.NewDispatcher(registry, dispatch.Options{Observer: observer, Alerter: alerter})

	ack := d.Dispatch(context.Background(), notification(t,
		[2]string{"Task", "a"}, [2]string{"Task", "b"}, [2]string{"Task", "c"}))
	if ack.Success {
		t.Fatalf("expected failure in ack: %+v", ack)
	}
	if ack.Handled != 2 || ack.Failed != 1 {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if strings.Join(task.seen, ",") != "a,b,c" {
		t.Fatalf("expected all three changes processed in order, got %v", task.seen)
	}
	want := []string{"Task:ok", "Task:unresolvable", "Task:ok"}
	if strings.Join(observer.outcomes, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected outcomes %v", observer.outcomes)
	}
	if observer.timed != 1 || len(observer.received) != 1 {
		t.Fatalf("unexpected observer calls: %+v", observer)
	}
	if len(alerter.failed) != 1 || alerter.failed[0] != "Task/b" {
		t.Fatalf("expected failure alert, got %v", alerter.failed)
	}
}

func TestDispatchNotFoundAndSkippedResults(t *testing.T) {
	registry := dispatch.NewRegistry()
	_ = registry.Register("task", dispatch.HandlerFunc(func(context.Context, event.EntityChange) (dispatch.Result, error) {
		return dispatch.Result{}, services.Wrap(services.ErrNotFound, "ftrack", "query", "gone", nil)
	}))
	_ = registry.Register("assetversion", dispatch.HandlerFunc(func(context.Context, event.EntityChange) (dispatch.Result, error) {
		return dispatch.Result{Skipped: true, Detail: "no components at location"}, nil
	}))
	d := dispatch.NewDispatcher(registry, dispatch.Options{})

	ack := d.Dispatch(context.Background(), notification(t, [2]string{"Task", "a"}, [2]string{"AssetVersion", "v"}))
	if !ack.Success || ack.Skipped != 2 {
		t.Fatalf("unexpected ack: %+v", ack)
	}
}

func TestDispatchRecoversFromPanics(t *testing.T) {
	registry := dispatch.NewRegistry()
	_ = registry.Register("task", dispatch.HandlerFunc(func(context.Context, event.EntityChange) (dispatch.Result, error) {
		panic("nil map")
	}))
	alerter := &fakeAlerter{}
	d := dispatch.NewDispatcher(registry, dispatch.Options{Alerter: alerter})
	ack := d.Dispatch(context.Background(), notification(t, [2]string{"Task", "a"}))
	if ack.Failed != 1 || ack.Success {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if len(alerter.failed) != 1 || alerter.failed[0] != "Task/a" {
		t.Fatalf("expected a failure alert for the panicking change, got %v", alerter.failed)
	}
}

func TestDispatchDoesNotDeduplicate(t *testing.T) {
	task := &recordingHandler{}
	registry := dispatch.NewRegistry()
	_ = registry.Register("task", task)
	d := dispatch.NewDispatcher(registry, dispatch.Options{})
	d.Dispatch(context.Background(), notification(t, [2]string{"Task", "a"}, [2]string{"Task", "a"}))
	if len(task.seen) != 2 {
		t.Fatalf("expected both changes handled, got %v", task.seen)
	}
}

func TestDispatchMalformedNotification(t *testing.T) {
	d := dispatch.NewDispatcher(dispatch.NewRegistry(), dispatch.Options{})
	ack := d.Dispatch(context.Background(), event.Notification{Topic: event.TopicUpdate, Data: json.RawMessage(`"junk"`)})
	if !ack.Success || ack.Matched != 0 {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if ack.Message != "No location tag changes" {
		t.Fatalf("unexpected message %q", ack.Message)
	}
}

func TestDispatchPropagatesCorrelationID(t *testing.T) {
	var got string
	registry := dispatch.NewRegistry()
	_ = registry.Register("task", dispatch.HandlerFunc(func(ctx context.Context, change event.EntityChange) (dispatch.Result, error) {
		got, _ = services.CorrelationIDFromContext(ctx)
		if kind, id, _ := services.EntityFromContext(ctx); kind != "Task" || id != change.EntityID {
			t.Errorf("unexpected entity in context: %s %s", kind, id)
		}
		return dispatch.Result{}, nil
	}))
	d := dispatch.NewDispatcher(registry, dispatch.Options{})
	d.Dispatch(context.Background(), notification(t, [2]string{"Task", "a"}))
	if got != "evt-1" {
		t.Fatalf("expected correlation id evt-1, got %q", got)
	}
}

func TestRegistryRejectsInvalidRegistrations(t *testing.T) {
	registry := dispatch.NewRegistry()
	if err := registry.Register("", &recordingHandler{}); err == nil {
		t.Fatal("expected error for empty kind")
	}
	if err := registry.Register("task", nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
	if err := registry.Register("Task", &recordingHandler{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("TASK", &recordingHandler{}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if kinds := registry.Kinds(); len(kinds) != 1 || kinds[0] != "task" {
		t.Fatalf("unexpected kinds %v", kinds)
	}
}
