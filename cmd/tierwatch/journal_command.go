package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tierwatch/internal/journal"
)

func newJournalCommand(ctx *commandContext) *cobra.Command {
	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the tiering journal",
	}
	journalCmd.AddCommand(newJournalListCommand(ctx))
	journalCmd.AddCommand(newJournalClearCommand(ctx))
	return journalCmd
}

func openJournal(ctx *commandContext) (*journal.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Journal.Enabled {
		return nil, errors.New("journal is disabled (set journal.enabled = true)")
	}
	return journal.OpenFromConfig(cfg)
}

func newJournalListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent tiering actions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openJournal(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				if entries == nil {
					entries = []journal.Entry{}
				}
				return writeJSON(cmd, entries)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Journal is empty")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.At.Local().Format(time.DateTime),
					e.Status,
					valueOrDash(e.EntityKind),
					valueOrDash(e.EntityID),
					e.Path,
					e.OldValue + " -> " + e.NewValue,
					valueOrDash(e.Error),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Time", "Status", "Kind", "Entity", "Path", "Transition", "Error"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newJournalClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every journal entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openJournal(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d journal entries\n", removed)
			return nil
		},
	}
}
