package main

import (
	"github.com/spf13/cobra"

	"tierwatch/internal/daemonrun"
)

func newListenCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run the listener until interrupted",
		Long: `Subscribe to ftrack update notifications and forward every location tag
change to the tiering backend. Only one listener may run per state directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: logLevel,
				Stdin:    cmd.InOrStdin(),
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for this run")
	return cmd
}
