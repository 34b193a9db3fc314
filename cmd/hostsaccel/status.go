package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/hostsaccel/pkg/hosts"
	"github.com/cuemby/hostsaccel/pkg/state"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the managed block and saved session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg)
		defer a.close()

		doc, err := a.hosts.Read()
		if err != nil {
			return err
		}

		fmt.Printf("Hosts file: %s (%s)\n", a.hosts.Location(), doc.Encoding)
		block, ok := hosts.ManagedBlock(doc.Content)
		if !ok {
			fmt.Println("Managed block: none")
		} else {
			ranked := hosts.ParseBlock(block)
			fmt.Printf("Managed block: %d domains\n", len(ranked))
			for _, domain := range ranked.Domains() {
				fmt.Printf("  %-40s %v\n", domain, ranked[domain])
			}
		}

		if a.store == nil {
			fmt.Println("State: unavailable")
			return nil
		}

		backup, err := a.store.LoadBackup(a.hosts.Location())
		switch {
		case errors.Is(err, state.ErrNotFound):
			fmt.Println("Pending restore: none")
		case err != nil:
			return err
		default:
			fmt.Printf("Pending restore: session %s from %s (run \"hostsaccel restore\")\n",
				backup.SessionID, backup.CapturedAt.Format(time.RFC3339))
		}

		ranking, err := a.store.LastRanking()
		switch {
		case errors.Is(err, state.ErrNotFound):
			fmt.Println("Last benchmark: never")
		case err != nil:
			return err
		default:
			fmt.Printf("Last benchmark: %s (%d domains)\n",
				ranking.MeasuredAt.Format(time.RFC3339), len(ranking.Results))
		}

		last, err := a.store.LastCheck(cfg.Watchdog.Target)
		if err != nil {
			return err
		}
		if last.IsZero() {
			fmt.Printf("Last %s check: never\n", cfg.Watchdog.Target)
		} else {
			fmt.Printf("Last %s check: %s\n", cfg.Watchdog.Target, last.Format(time.RFC3339))
		}
		return nil
	},
}
