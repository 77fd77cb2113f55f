package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"tierwatch/internal/daemonrun"
	"tierwatch/internal/dispatch"
	"tierwatch/internal/event"
	"tierwatch/internal/subscription"
	"tierwatch/internal/tiering"
)

type replayResult struct {
	Source       string       `json:"source"`
	Notification string       `json:"notification"`
	Topic        string       `json:"topic"`
	Ignored      bool         `json:"ignored,omitempty"`
	Ack          dispatch.Ack `json:"ack"`
}

type replayReport struct {
	Results []replayResult   `json:"results"`
	Actions []tiering.Action `json:"actions,omitempty"`
}

func newReplayCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var jsonOut bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "replay FILE...",
		Short: "Dispatch recorded notifications",
		Long: `Read notification documents from files ("-" for stdin) and dispatch them
through the listener pipeline. With --dry-run no backend or journal is touched
and the transitions that would have been applied are printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filter, err := subscription.ParseTopicFilter(cfg.Watch.Topic)
			if err != nil {
				return err
			}
			pipeline, err := daemonrun.Build(cfg, daemonrun.BuildOptions{
				Logger: ctx.commandLogger(logLevel),
				DryRun: dryRun,
			})
			if err != nil {
				return err
			}
			defer pipeline.Close()

			var report replayReport
			for _, name := range args {
				results, err := replayFile(cmd, name, filter, pipeline.Dispatcher)
				report.Results = append(report.Results, results...)
				if err != nil {
					return err
				}
			}
			if recorder, ok := pipeline.Backend.(*tiering.RecordBackend); ok {
				report.Actions = recorder.Actions()
			}

			if jsonOut {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printReplayReport(cmd.OutOrStdout(), report, dryRun)
			}

			failed := 0
			for _, r := range report.Results {
				if !r.Ack.Success {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d notification(s) had failed changes", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve paths without applying or journaling transitions")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level for pipeline diagnostics on stderr")
	return cmd
}

func replayFile(cmd *cobra.Command, name string, filter subscription.TopicFilter, dispatcher *dispatch.Dispatcher) ([]replayResult, error) {
	var r io.Reader
	if name == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer f.Close()
		r = f
	}

	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}

	var results []replayResult
	dec := event.NewDecoder(r)
	for index := 1; ; index++ {
		n, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return results, nil
		}
		if errors.Is(err, event.ErrInvalid) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: document %d skipped: %v\n", name, index, err)
			continue
		}
		if err != nil {
			return results, fmt.Errorf("%s: %w", name, err)
		}
		result := replayResult{Source: name, Notification: n.ID, Topic: n.Topic}
		if result.Notification == "" {
			result.Notification = "#" + strconv.Itoa(index)
		}
		if !filter.Match(n.Topic) {
			result.Ignored = true
			result.Ack = dispatch.Ack{Success: true, Message: "Topic not subscribed"}
		} else {
			result.Ack = dispatcher.Dispatch(runCtx, n)
		}
		results = append(results, result)
	}
}

func printReplayReport(out io.Writer, report replayReport, dryRun bool) {
	if len(report.Results) == 0 {
		fmt.Fprintln(out, "No notifications found")
		return
	}
	rows := make([][]string, 0, len(report.Results))
	for _, r := range report.Results {
		state := "ok"
		switch {
		case r.Ignored:
			state = "ignored"
		case !r.Ack.Success:
			state = "failed"
		}
		rows = append(rows, []string{r.Source, r.Notification, r.Topic, state, r.Ack.Message})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Source", "Notification", "Topic", "Result", "Message"},
		rows,
		nil,
	))
	if !dryRun {
		return
	}
	if len(report.Actions) == 0 {
		fmt.Fprintln(out, "Dry run: no transitions would be applied")
		return
	}
	actionRows := make([][]string, 0, len(report.Actions))
	for _, a := range report.Actions {
		actionRows = append(actionRows, []string{a.EntityKind, a.EntityID, a.Path, a.Old + " -> " + a.New})
	}
	fmt.Fprintln(out, "Dry run: transitions that would be applied")
	fmt.Fprintln(out, renderTable([]string{"Kind", "Entity", "Path", "Transition"}, actionRows, nil))
}
