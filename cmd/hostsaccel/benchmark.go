package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Rank candidate addresses without modifying the hosts file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		a := newApp(cfg)
		defer a.close()

		candidates := a.aggregator.Fetch(ctx)
		ranking := a.engine.Results(ctx, candidates)
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("benchmark interrupted: %w", err)
		}
		saveRanking(a, &ranking)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DOMAIN\tADDRESS\tLATENCY\tLOSS\tHTTP\tTCP\tSCORE")
		for _, domain := range candidates.Domains() {
			for i, r := range ranking.Results[domain] {
				marker := ""
				if i < a.engine.TopN {
					marker = " *"
				}
				fmt.Fprintf(w, "%s\t%s\t%.1fms\t%.0f%%\t%.1fms\t%t\t%.1f%s\n",
					domain, r.Address, r.LatencyMs, r.Loss*100, r.HTTPLatencyMs, r.TCPReachable, r.Score, marker)
			}
		}
		return w.Flush()
	},
}
