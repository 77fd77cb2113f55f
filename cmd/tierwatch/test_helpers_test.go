package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"tierwatch/internal/config"
	"tierwatch/internal/testsupport"
)

const (
	projectID  = "6a1f0e2c-8475-11ec-9a8b-8e5ff4a86448"
	sequenceID = "7b2f1e3d-8475-11ec-9a8b-8e5ff4a86448"
	taskID     = "8c3f2e4e-8475-11ec-9a8b-8e5ff4a86448"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	ftrack     *httptest.Server
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	server := newFakeFtrack(t)
	cfg := testsupport.NewConfig(t, testsupport.WithFtrackServer(server.URL), testsupport.WithDirectories())
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	testsupport.MkdirAll(t, homeDir)
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "tierwatch", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base, ftrack: server}
}

// newFakeFtrack answers the probe, location, and task queries the commands
// issue against the API.
func newFakeFtrack(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ops []map[string]string
		if err := json.NewDecoder(r.Body).Decode(&ops); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		results := make([]any, 0, len(ops))
		for _, op := range ops {
			if op["action"] == "query_server_information" {
				results = append(results, map[string]any{"version": "4.13.8"})
				continue
			}
			expr := op["expression"]
			data := []any{}
			switch {
			case strings.Contains(expr, "from Location"):
				data = append(data, map[string]string{"id": testsupport.TestLocationID, "name": "studio.central"})
			case strings.Contains(expr, "select link from task"):
				data = append(data, map[string]any{"link": []map[string]string{
					{"id": projectID, "name": "show1", "type": "Project"},
					{"id": sequenceID, "name": "seq010", "type": "TypedContext"},
					{"id": taskID, "name": "comp", "type": "TypedContext"},
				}})
			case strings.Contains(expr, "from Project"):
				data = append(data, map[string]string{"id": projectID, "name": "show1"})
			}
			results = append(results, map[string]any{"action": "query", "data": data})
		}
		_ = json.NewEncoder(w).Encode(results)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	testsupport.WriteFile(t, path, content)
}

func runCLI(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeNotifications(t *testing.T, dir string, docs ...string) string {
	t.Helper()
	path := filepath.Join(dir, "recorded.json")
	if err := os.WriteFile(path, []byte(strings.Join(docs, "\n")), 0o644); err != nil {
		t.Fatalf("write notifications: %v", err)
	}
	return path
}

func taskNotification(id, topic string) string {
	return `{"id":"` + id + `","topic":"` + topic + `","data":{"entities":[` +
		`{"entity_type":"task","entityId":"` + taskID + `","keys":["hs_location"],` +
		`"changes":{"hs_location":{"old":"","new":"yul"}}}]}}`
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
