package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"market-price-alerts/internal/app"
)

var (
	recomputeLookback time.Duration
	recomputeSince    string
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Replay alert reconciliation over recently validated observations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if recomputeLookback < 0 {
			return fmt.Errorf("--lookback must not be negative")
		}
		opts := app.RecomputeOptions{Lookback: recomputeLookback}

		if recomputeSince != "" {
			since, err := time.Parse(time.RFC3339, recomputeSince)
			if err != nil {
				return fmt.Errorf("invalid --since value: %w", err)
			}
			opts.Since = &since
		}

		return getApp().Recompute(cmd.Context(), opts)
	},
}

func init() {
	recomputeCmd.Flags().DurationVar(&recomputeLookback, "lookback", 0, "How far back to replay (defaults to alerting.recompute_lookback)")
	recomputeCmd.Flags().StringVar(&recomputeSince, "since", "", "Replay from this timestamp (RFC3339); overrides --lookback")
}
