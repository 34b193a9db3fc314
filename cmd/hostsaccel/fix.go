package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/hostsaccel/pkg/events"
	"github.com/cuemby/hostsaccel/pkg/log"
	"github.com/cuemby/hostsaccel/pkg/watchdog"
	"github.com/spf13/cobra"
)

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Check the CDN domain once and repair its hosts entries if unreachable",
	Long: `Run one remediation pass for the watchdog target. Passes are limited to
one per watchdog interval across all hostsaccel processes, which makes this
command suitable for a cron job or systemd timer.

Examples:
  # Check, respecting the rate limit
  sudo hostsaccel fix

  # Check now
  sudo hostsaccel fix --force`,
	RunE: runFix,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the CDN domain reachable until interrupted",
	RunE:  runWatch,
}

func init() {
	fixCmd.Flags().Bool("force", false, "Ignore the rate limit")
}

func runFix(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a := newApp(cfg)
	defer a.close()

	if err := a.prepareWrite(ctx); err != nil {
		return err
	}

	w := a.watchdog()
	check := w.CheckAndFix
	if force {
		check = w.CheckAndFixNow
	}

	outcome, err := check(ctx)
	if err != nil {
		return err
	}

	switch outcome {
	case watchdog.OutcomeSkipped:
		fmt.Printf("%s was checked less than %s ago (use --force)\n", w.Target, w.Interval)
	case watchdog.OutcomeHealthy:
		fmt.Printf("✓ %s is reachable\n", w.Target)
	case watchdog.OutcomeFixed:
		fmt.Printf("✓ %s entries replaced\n", w.Target)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a := newApp(cfg)
	defer a.close()

	if err := a.prepareWrite(ctx); err != nil {
		return err
	}

	sub := a.events.Subscribe()
	defer a.events.Unsubscribe(sub)
	go logEvents(sub)

	fmt.Printf("Watching %s every %s. Press Ctrl+C to stop.\n", cfg.Watchdog.Target, cfg.Watchdog.Interval)

	err := a.watchdog().Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func logEvents(sub events.Subscriber) {
	logger := log.WithComponent("events")
	for event := range sub {
		entry := logger.Info().
			Str("event_id", event.ID).
			Str("type", string(event.Type))
		for k, v := range event.Metadata {
			entry = entry.Str(k, v)
		}
		entry.Msg(event.Message)
	}
}
