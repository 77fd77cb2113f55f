package preflight

import (
	"context"
	"fmt"
	"strings"

	"tierwatch/internal/config"
	"tierwatch/internal/ftrack"
	"tierwatch/internal/journal"
)

// CheckFtrackFromConfig builds a client from config and runs CheckFtrack.
func CheckFtrackFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "ftrack"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Ftrack.Server) == "" {
		return Result{Name: name, Detail: "Missing server URL"}
	}
	if cfg.Ftrack.APIUser == "" || cfg.Ftrack.APIKey == "" {
		return Result{Name: name, Detail: "Missing API credentials"}
	}
	client, err := ftrack.NewFromConfig(cfg, nil)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return CheckFtrack(ctx, client, cfg.Storage.LocationID)
}

// CheckJournal opens the configured journal and reports its size.
func CheckJournal(ctx context.Context, cfg *config.Config) Result {
	const name = "Journal"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Journal.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	store, err := journal.OpenFromConfig(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()

	counts, err := store.Counts(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s, %d entries", store.Driver(), total)}
}
