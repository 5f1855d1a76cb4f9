package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tuckerworks/calsync/internal/config"
	"github.com/tuckerworks/calsync/pkg/calendar_provider"
)

func newCalendarsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "calendars",
		Short: "List the calendars the destination credentials can see",
		Args:  cobra.NoArgs,
		RunE:  runCalendars,
	}
}

func runCalendars(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmdContext(cmd))
	defer cancel()

	provider := calendar_provider.NewCalendarProvider(cfg.Destination, nil, nil)
	dest, err := provider.GetCalendar(ctx)
	if err != nil {
		return err
	}
	calendars, err := dest.ListCalendars(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tID")
	for _, c := range calendars {
		fmt.Fprintf(tw, "%s\t%s\n", c.Name, c.ID)
	}
	if cfg.Destination.Type == config.DestinationCalDAV && len(calendars) > 0 && cfg.Destination.CalDAV.Calendar == "" {
		fmt.Fprintln(tw, "\nSet --dest-calendar to pick one; the first is used otherwise.")
	}
	return tw.Flush()
}
