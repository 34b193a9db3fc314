package main

import (
	"context"
	"fmt"

	"github.com/cuemby/hostsaccel/pkg/log"
	"github.com/cuemby/hostsaccel/pkg/session"
	"github.com/cuemby/hostsaccel/pkg/types"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Benchmark candidate addresses and write the fastest to the hosts file",
	Long: `Fetch candidate addresses, rank them by latency and packet loss, and
write the best ones into a managed block of the hosts file.

By default the override is temporary: the original hosts file is restored
byte for byte when hostsaccel receives SIGINT, SIGTERM, SIGHUP or SIGQUIT.
With --permanent the block stays until "hostsaccel restore" removes it.

Examples:
  # Override until Ctrl+C
  sudo hostsaccel apply

  # Keep the override
  sudo hostsaccel apply --permanent`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().Bool("permanent", false, "Keep the override after exit")
}

func runApply(cmd *cobra.Command, args []string) error {
	permanent, _ := cmd.Flags().GetBool("permanent")

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a := newApp(cfg)
	defer a.close()

	if err := a.prepareWrite(ctx); err != nil {
		return err
	}

	ranked, err := rank(ctx, a)
	if err != nil {
		return err
	}

	if permanent {
		if err := a.session.ApplyPermanent(ctx, ranked); err != nil {
			return fmt.Errorf("failed to apply override: %w", err)
		}
		fmt.Printf("✓ Override applied permanently to %s\n", a.hosts.Location())
		return nil
	}

	return a.session.Guard(ctx, func(ctx context.Context) error {
		if _, err := a.session.ApplyTemporary(ctx, ranked); err != nil {
			return fmt.Errorf("failed to apply override: %w", err)
		}

		fmt.Printf("✓ Override applied to %s\n", a.hosts.Location())
		fmt.Println("Press Ctrl+C to restore the original hosts file.")

		<-ctx.Done()
		fmt.Println("\nRestoring hosts file...")
		return nil
	})
}

// rank fetches candidates, ranks them and keeps the ranking for status
func rank(ctx context.Context, a *app) (types.RankedIPSet, error) {
	logger := log.WithComponent("benchmark")

	candidates := a.aggregator.Fetch(ctx)
	logger.Info().
		Int("domains", len(candidates)).
		Int("candidates", candidates.Len()).
		Msg("benchmarking candidates")

	ranking := a.engine.Results(ctx, candidates)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("benchmark interrupted: %w", err)
	}
	saveRanking(a, &ranking)

	ranked := ranking.Top(a.engine.TopN)
	if ranked.Empty() {
		return nil, session.ErrNothingToApply
	}
	return ranked, nil
}

func saveRanking(a *app, ranking *types.Ranking) {
	if a.store == nil {
		return
	}
	if err := a.store.SaveRanking(ranking); err != nil {
		logger := log.WithComponent("state")
		logger.Warn().Err(err).Msg("failed to save ranking")
	}
}
