package preflight

import (
	"context"

	"tierwatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// The xattr backend writes to the mount, the log backend only reads paths.
	results = append(results, CheckDirectoryAccess("Storage prefix", cfg.Storage.Prefix, cfg.Tiering.Backend == config.BackendXattr))

	if cfg.Subscription.Source == config.SourceSpool {
		results = append(results, CheckDirectoryAccess("Spool directory", cfg.Subscription.SpoolDir, true))
	}

	results = append(results, CheckFtrackFromConfig(ctx, cfg))

	if cfg.Journal.Enabled {
		results = append(results, CheckJournal(ctx, cfg))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
