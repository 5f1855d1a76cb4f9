package cli

import (
	"github.com/spf13/cobra"
	"github.com/tuckerworks/calsync/internal/app"
	"github.com/tuckerworks/calsync/pkg/reconcile"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a sync would change, without changing anything",
		Args:  cobra.NoArgs,
		RunE:  runPlan,
	}
	cmd.Flags().StringP("output", "o", "text", "Output format: text, json or yaml")
	return cmd
}

func runPlan(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	format, err := reconcile.ParseFormat(output)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmdContext(cmd))
	defer cancel()

	// Dry runs are not recorded, so the database stays closed.
	cfg.Database.Enabled = false
	application, err := app.NewApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	plan, err := application.Dependencies().SyncRunner.Plan(ctx)
	if err != nil {
		return err
	}
	return reconcile.Render(cmd.OutOrStdout(), plan, format)
}
