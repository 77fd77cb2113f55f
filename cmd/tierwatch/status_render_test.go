package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"tierwatch/internal/daemon"
	"tierwatch/internal/preflight"
	"tierwatch/internal/testsupport"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Listener", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Listener:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Listener", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestListenerLinesFromStatus(t *testing.T) {
	lines := listenerLines(listenerState{Running: true, Status: &daemon.Status{
		Running:       true,
		PID:           42,
		Source:        "stdin",
		Notifications: 3,
		Delivered:     2,
		Ignored:       1,
		Journal:       map[string]int{"applied": 5, "failed": 1},
	}}, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[OK] Running (pid 42)") {
		t.Fatalf("unexpected listener line %q", lines[0])
	}
	if !strings.Contains(lines[2], "3 received, 2 delivered, 1 ignored") {
		t.Fatalf("unexpected notifications line %q", lines[2])
	}
	if !strings.Contains(lines[3], "5 applied, 1 failed") {
		t.Fatalf("unexpected journal line %q", lines[3])
	}
}

func TestStatusLinesMarkCheckResults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	report := statusReport{ConfigPath: "/etc/tierwatch.toml", Checks: []preflight.Result{
		{Name: "ftrack", Passed: true, Detail: "reachable"},
		{Name: "prefix", Passed: false, Detail: "not mounted"},
	}}
	out := strings.Join(statusLines(cfg, report, false), "\n")
	for _, fragment := range []string{"[OK] reachable", "[ERROR] not mounted"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in status output:\n%s", fragment, out)
		}
	}
}

func TestProbeLockDetectsHeldLock(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	if state := probeLock(cfg); state.Running {
		t.Fatalf("expected free lock, got %+v", state)
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer lock.Unlock()

	state := probeLock(cfg)
	if !state.Running || !strings.Contains(state.Detail, cfg.LockPath()) {
		t.Fatalf("expected held lock, got %+v", state)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
