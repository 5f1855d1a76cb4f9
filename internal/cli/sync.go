package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tuckerworks/calsync/internal/app"
	"github.com/tuckerworks/calsync/pkg/sync_run"
)

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync and exit",
		Args:  cobra.NoArgs,
		RunE:  runSync,
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmdContext(cmd))
	defer cancel()

	application, err := app.NewApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	run, err := application.Dependencies().SyncRunner.Run(ctx, sync_run.TriggerCLI)
	report := run.Report
	fmt.Fprintf(cmd.OutOrStdout(), "Sync %s: %d created, %d updated, %d deleted, %d unchanged, %d preserved, %d failed\n",
		run.Status(), report.Created, report.Updated, report.Deleted, report.Skipped, report.Preserved, report.Failed())
	return err
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
