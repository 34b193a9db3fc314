package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Remove the managed block from the hosts file",
	Long: `Remove every entry hostsaccel added to the hosts file. A temporary
override left behind by a killed run is restored from its backup first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a := newApp(cfg)
		defer a.close()

		if err := a.prepareWrite(ctx); err != nil {
			return err
		}
		if err := a.session.RemoveOverrides(ctx); err != nil {
			return fmt.Errorf("failed to remove overrides: %w", err)
		}

		fmt.Printf("✓ Overrides removed from %s\n", a.hosts.Location())
		return nil
	},
}
