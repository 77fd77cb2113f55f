package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tierwatch/internal/config"
	"tierwatch/internal/entity"
	"tierwatch/internal/services"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir, true)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "read/write ok") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
	if got := CheckDirectoryAccess("test", dir, false); !got.Passed || !strings.Contains(got.Detail, "read ok") {
		t.Fatalf("unexpected read-only result %+v", got)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"), false)
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f, false)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryAccess_Empty(t *testing.T) {
	if result := CheckDirectoryAccess("test", "", false); result.Passed || result.Detail != "not configured" {
		t.Fatalf("unexpected result %+v", result)
	}
}

type probeStub struct {
	infoErr error
	loc     entity.Entity
	locErr  error
}

func (p probeStub) ServerInfo(context.Context) (map[string]any, error) {
	if p.infoErr != nil {
		return nil, p.infoErr
	}
	return map[string]any{"version": "4.13.8"}, nil
}

func (p probeStub) Location(context.Context, string) (entity.Entity, error) {
	return p.loc, p.locErr
}

func TestCheckFtrack(t *testing.T) {
	tests := []struct {
		name       string
		probe      probeStub
		wantPass   bool
		wantDetail string
	}{
		{name: "ok", probe: probeStub{loc: entity.Entity{Name: "studio.central"}}, wantPass: true, wantDetail: `Reachable (server 4.13.8), location "studio.central"`},
		{name: "server down", probe: probeStub{infoErr: errors.New("connection refused")}, wantDetail: "connection refused"},
		{name: "timeout", probe: probeStub{infoErr: context.DeadlineExceeded}, wantDetail: "check timed out (server unresponsive)"},
		{name: "missing location", probe: probeStub{locErr: services.Wrap(services.ErrNotFound, "ftrack", "location", "x", nil)}, wantDetail: "location loc-1 not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckFtrack(context.Background(), tt.probe, "loc-1")
			if got.Passed != tt.wantPass || got.Detail != tt.wantDetail {
				t.Fatalf("unexpected result %+v", got)
			}
		})
	}
}

func TestCheckFtrackFromConfigMissingCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Ftrack.Server = "https://studio.ftrackapp.com"
	cfg.Ftrack.APIUser = ""
	if got := CheckFtrackFromConfig(context.Background(), &cfg); got.Passed || got.Detail != "Missing API credentials" {
		t.Fatalf("unexpected result %+v", got)
	}
	cfg.Ftrack.Server = ""
	if got := CheckFtrackFromConfig(context.Background(), &cfg); got.Detail != "Missing server URL" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestCheckJournal(t *testing.T) {
	cfg := config.Default()
	cfg.Journal.Enabled = true
	cfg.Journal.Driver = config.DriverSQLite
	cfg.Journal.DSN = filepath.Join(t.TempDir(), "journal.db")
	got := CheckJournal(context.Background(), &cfg)
	if !got.Passed || got.Detail != "sqlite, 0 entries" {
		t.Fatalf("unexpected result %+v", got)
	}

	cfg.Journal.Enabled = false
	if got := CheckJournal(context.Background(), &cfg); !got.Passed || got.Detail != "Disabled" {
		t.Fatalf("unexpected disabled result %+v", got)
	}
}

func TestFailed(t *testing.T) {
	results := []Result{{Name: "a", Passed: true}, {Name: "b"}, {Name: "c"}}
	failed := Failed(results)
	if len(failed) != 2 || failed[0].Name != "b" {
		t.Fatalf("unexpected failed results %+v", failed)
	}
}
