package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the emergency address cache",
}

var cacheRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch a fresh emergency cache from the general sources",
	Long: `Rewrite the emergency cache used when every source is unreachable.
When no source answers, the built-in addresses are cached instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg)
		defer a.close()

		set, err := a.aggregator.RefreshCache(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to refresh emergency cache: %w", err)
		}

		fmt.Printf("✓ Emergency cache refreshed: %d domains, %d addresses (%s)\n",
			len(set), set.Len(), cfg.CacheFile)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheRefreshCmd)
}
