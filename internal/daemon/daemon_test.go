package daemon_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tierwatch/internal/daemon"
	"tierwatch/internal/subscription"
	"tierwatch/internal/testsupport"
)

type blockingListener struct {
	started chan struct{}
	waits   atomic.Int32
	err     error
}

func newBlockingListener() *blockingListener {
	return &blockingListener{started: make(chan struct{}, 4)}
}

func (l *blockingListener) Wait(ctx context.Context) error {
	l.waits.Add(1)
	l.started <- struct{}{}
	if l.err != nil {
		return l.err
	}
	<-ctx.Done()
	return nil
}

func (l *blockingListener) Stats() subscription.Stats {
	return subscription.Stats{Received: 3, Delivered: 2, Ignored: 1}
}

type countsStub map[string]int

func (c countsStub) Counts(context.Context) (map[string]int, error) { return c, nil }

func TestDaemonRunHoldsLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newBlockingListener()
	d, err := daemon.New(cfg, first, nil, daemon.Options{Source: "test", Journal: countsStub{"applied": 4}})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case <-first.started:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not start")
	}
	if !d.Running() {
		t.Fatal("expected daemon to report running")
	}

	status := d.Status(context.Background())
	if !status.Running || status.Notifications != 3 || status.Delivered != 2 || status.Journal["applied"] != 4 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.LockFilePath != cfg.LockPath() || status.Source != "test" {
		t.Fatalf("unexpected status paths %+v", status)
	}

	second, err := daemon.New(cfg, newBlockingListener(), nil, daemon.Options{})
	if err != nil {
		t.Fatalf("daemon.New second: %v", err)
	}
	err = second.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if d.Running() {
		t.Fatal("expected daemon to stop")
	}

	// The lock is released, so a new run succeeds.
	again := newBlockingListener()
	again.err = context.Canceled
	third, _ := daemon.New(cfg, again, nil, daemon.Options{})
	if err := third.Run(context.Background()); err != context.Canceled {
		t.Fatalf("expected listener error to surface, got %v", err)
	}
}

func TestDaemonNewRequiresListener(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, nil, nil, daemon.Options{}); err == nil {
		t.Fatal("expected error without listener")
	}
}
