package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tierwatch/internal/config"
	"tierwatch/internal/preflight"
)

type statusReport struct {
	ConfigPath string             `json:"config_path"`
	ConfigFile bool               `json:"config_file"`
	Listener   listenerState      `json:"listener"`
	Checks     []preflight.Result `json:"checks"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show listener state and run preflight checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{
				ConfigPath: ctx.configPath,
				ConfigFile: ctx.configExists,
				Listener:   probeListener(cmd.Context(), cfg),
				Checks:     preflight.RunAll(cmd.Context(), cfg),
			}
			if jsonOut {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range statusLines(cfg, report, colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func statusLines(cfg *config.Config, report statusReport, colorize bool) []string {
	var lines []string

	lines = append(lines, renderSectionHeader("Listener", colorize)...)
	lines = append(lines, listenerLines(report.Listener, colorize)...)

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Configuration", colorize)...)
	configFile := report.ConfigPath
	if !report.ConfigFile {
		configFile += " (not found, defaults used)"
	}
	lines = append(lines,
		renderStatusLine("Config", statusInfo, configFile, colorize),
		renderStatusLine("Watched key", statusInfo, cfg.Watch.Key, colorize),
		renderStatusLine("Topic", statusInfo, cfg.Watch.Topic, colorize),
		renderStatusLine("Location", statusInfo, cfg.Storage.LocationID, colorize),
		renderStatusLine("Backend", statusInfo, cfg.Tiering.Backend, colorize),
		renderStatusLine("Source", statusInfo, sourceLabel(cfg), colorize),
		renderStatusLine("Journal", statusInfo, journalLabel(cfg), colorize),
		renderStatusLine("Alerts", statusInfo, "ntfy "+yesNo(cfg.Notifications.NtfyTopic != ""), colorize),
	)

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Checks", colorize)...)
	for _, result := range report.Checks {
		kind := statusError
		if result.Passed {
			kind = statusOK
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return lines
}

func listenerLines(state listenerState, colorize bool) []string {
	if !state.Running {
		message := "Not running"
		if state.Detail != "" {
			message += " (" + state.Detail + ")"
		}
		return []string{renderStatusLine("Listener", statusWarn, message, colorize)}
	}
	if state.Status == nil {
		return []string{renderStatusLine("Listener", statusOK, "Running ("+state.Detail+")", colorize)}
	}
	s := state.Status
	running := fmt.Sprintf("Running (pid %d", s.PID)
	if !s.StartedAt.IsZero() {
		running += ", up " + time.Since(s.StartedAt).Round(time.Second).String()
	}
	running += ")"
	lines := []string{
		renderStatusLine("Listener", statusOK, running, colorize),
		renderStatusLine("Source", statusInfo, s.Source, colorize),
		renderStatusLine("Notifications", statusInfo,
			fmt.Sprintf("%d received, %d delivered, %d ignored", s.Notifications, s.Delivered, s.Ignored), colorize),
	}
	if len(s.Journal) > 0 {
		lines = append(lines, renderStatusLine("Journal entries", statusInfo,
			fmt.Sprintf("%d applied, %d failed", s.Journal["applied"], s.Journal["failed"]), colorize))
	}
	return lines
}

func sourceLabel(cfg *config.Config) string {
	if cfg.Subscription.Source == config.SourceSpool {
		return "spool (" + cfg.Subscription.SpoolDir + ")"
	}
	return cfg.Subscription.Source
}

func journalLabel(cfg *config.Config) string {
	if !cfg.Journal.Enabled {
		return "disabled"
	}
	return cfg.Journal.Driver
}
