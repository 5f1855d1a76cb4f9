package cli

import (
	"github.com/spf13/cobra"
	"github.com/tuckerworks/calsync/internal/app"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run syncs on a schedule and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().String("schedule", "", "Cron schedule of sync runs (overrides config if set)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if schedule, _ := cmd.Flags().GetString("schedule"); schedule != "" {
		cfg.Sync.Schedule = schedule
	}

	ctx, cancel := signalContext(cmdContext(cmd))
	defer cancel()

	application, err := app.NewApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()
	return application.Serve(ctx)
}
