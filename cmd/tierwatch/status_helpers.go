package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"tierwatch/internal/config"
	"tierwatch/internal/daemon"
)

// listenerState is what the CLI can learn about a listener process.
type listenerState struct {
	Running bool           `json:"running"`
	Status  *daemon.Status `json:"status,omitempty"`
	Detail  string         `json:"detail,omitempty"`
}

// probeListener asks the listener's status endpoint when one is configured
// and falls back to testing the lock file.
func probeListener(ctx context.Context, cfg *config.Config) listenerState {
	if bind := strings.TrimSpace(cfg.Metrics.Bind); bind != "" {
		status, err := fetchListenerStatus(ctx, bind, cfg.Metrics.Token)
		if err == nil {
			return listenerState{Running: status.Running, Status: status}
		}
		state := probeLock(cfg)
		if state.Running {
			state.Detail = fmt.Sprintf("status endpoint unavailable: %v", err)
		}
		return state
	}
	return probeLock(cfg)
}

func probeLock(cfg *config.Config) listenerState {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return listenerState{Detail: fmt.Sprintf("lock check failed: %v", err)}
	}
	if !ok {
		return listenerState{Running: true, Detail: "lock held by " + cfg.LockPath()}
	}
	_ = lock.Unlock()
	return listenerState{}
}

func fetchListenerStatus(ctx context.Context, bind, token string) (*daemon.Status, error) {
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return nil, err
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	url := "http://" + net.JoinHostPort(host, port) + "/api/status"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %s", resp.Status)
	}
	var status daemon.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}
