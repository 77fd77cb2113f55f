package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tierwatch/internal/daemonrun"
	"tierwatch/internal/entity"
	"tierwatch/internal/handlers"
)

type resolvedPath struct {
	Component    string  `json:"component,omitempty"`
	Availability float64 `json:"availability"`
	Path         string  `json:"path,omitempty"`
}

type resolveReport struct {
	Kind     string         `json:"kind"`
	ID       string         `json:"id"`
	Location string         `json:"location"`
	Paths    []resolvedPath `json:"paths"`
	Error    string         `json:"error,omitempty"`
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "resolve KIND ID",
		Short: "Show the storage paths an entity maps to",
		Long: `Resolve an entity the way the listener would and print the paths a location
tag change would be applied to. Versions resolve through their components at
the storage location; every other kind resolves through its ancestor chain.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			pipeline, err := daemonrun.Build(cfg, daemonrun.BuildOptions{
				Logger: ctx.commandLogger(""),
				DryRun: true,
			})
			if err != nil {
				return err
			}
			defer pipeline.Close()

			kind, id := args[0], args[1]
			report := resolveReport{Kind: kind, ID: id, Location: cfg.Storage.LocationID}
			var resolveErr error
			if entity.NormalizeKind(kind) == handlers.KindAssetVersion {
				res, err := pipeline.Components.Resolve(cmd.Context(), kind, id)
				for _, cp := range res.Paths {
					report.Paths = append(report.Paths, resolvedPath{
						Component:    cp.Component.Name,
						Availability: cp.Availability,
						Path:         cp.Path,
					})
				}
				for _, c := range res.Skipped {
					report.Paths = append(report.Paths, resolvedPath{Component: c.Name})
				}
				resolveErr = err
			} else {
				path, err := pipeline.Hierarchy.Resolve(cmd.Context(), kind, id)
				if err == nil {
					report.Paths = append(report.Paths, resolvedPath{Availability: 1, Path: path})
				}
				resolveErr = err
			}
			if resolveErr != nil {
				report.Error = resolveErr.Error()
			}

			if jsonOut {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
				return resolveErr
			}

			out := cmd.OutOrStdout()
			if len(report.Paths) == 0 {
				if resolveErr != nil {
					return resolveErr
				}
				fmt.Fprintf(out, "No paths for %s %s at location %s\n", kind, id, report.Location)
				return nil
			}
			rows := make([][]string, 0, len(report.Paths))
			for _, p := range report.Paths {
				path := p.Path
				if path == "" {
					path = "(not at location)"
				}
				rows = append(rows, []string{
					valueOrDash(p.Component),
					strconv.FormatFloat(p.Availability*100, 'f', 0, 64) + "%",
					path,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Component", "Availability", "Path"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
			return resolveErr
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func valueOrDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
