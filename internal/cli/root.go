package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tuckerworks/calsync/internal/config"
)

// flagKeys maps command line flags to the config keys they override.
var flagKeys = map[string]string{
	"source-url":    "source.url",
	"dest-type":     "destination.type",
	"dest-url":      "destination.caldav.url",
	"dest-username": "destination.caldav.username",
	"dest-password": "destination.caldav.password",
	"dest-calendar": "destination.caldav.calendar",
	"title":         "sync.title",
	"days":          "sync.days",
	"timezone":      "sync.timezone",
}

// NewRootCommand builds the calsync command tree. Without a subcommand a single sync run is executed.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "calsync",
		Short: "Mirror a published iCalendar feed into a CalDAV or Google calendar",
		Long: `calsync keeps a destination calendar in step with a read-only iCalendar feed.

Every mirrored event carries a normalized title and a key derived from its
time, title and location, so a feed that is recreated from scratch on each
publish still maps onto the same destination events.`,
		RunE:          runSync,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "calsync.yaml", "Path to config file")
	flags.String("source-url", "", "URL of the source iCalendar feed")
	flags.String("dest-type", "", "Destination type: caldav or google")
	flags.String("dest-url", "", "CalDAV server URL")
	flags.String("dest-username", "", "CalDAV username")
	flags.String("dest-password", "", "CalDAV password")
	flags.String("dest-calendar", "", "Destination calendar name")
	flags.String("title", "", "Title written on every mirrored event")
	flags.Int("days", 0, "Number of days ahead to mirror")
	flags.String("timezone", "", "Timezone for all-day and floating events")
	flags.BoolP("verbose", "v", false, "Enable debug logging")

	root.AddCommand(newSyncCommand())
	root.AddCommand(newPlanCommand())
	root.AddCommand(newServeCommand())
	root.AddCommand(newCalendarsCommand())
	root.AddCommand(newGoogleAuthCommand())
	return root
}

// Execute runs the command line and reports errors on stderr.
func Execute() error {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// overrides collects the flags set on the command line.
func overrides(cmd *cobra.Command) (map[string]any, error) {
	values := map[string]any{}
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if flag == "days" {
			days, err := cmd.Flags().GetInt(flag)
			if err != nil {
				return nil, err
			}
			values[key] = days
			continue
		}
		values[key] = f.Value.String()
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		values["log.level"] = "debug"
	}
	return values, nil
}

// loadConfig reads the configuration and applies its log level.
func loadConfig(cmd *cobra.Command, validate bool) (config.Application, error) {
	path, _ := cmd.Flags().GetString("config")
	values, err := overrides(cmd)
	if err != nil {
		return config.Application{}, err
	}
	cfg, err := config.Load(path, values)
	if err != nil {
		return config.Application{}, fmt.Errorf("failed to load config: %w", err)
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", cfg.Log.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if validate {
		if err := cfg.Validate(); err != nil {
			return config.Application{}, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			log.Infof("Signal %s received, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
