package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"market-price-alerts/internal/app"
)

var (
	simulatePrice     float64
	simulateReference float64
	simulateSamples   int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Classify a price against a reference without touching the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePrice <= 0 || simulateReference <= 0 {
			return errors.New("--price and --reference must be greater than zero")
		}

		_, err := getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Price:     simulatePrice,
			Reference: simulateReference,
			Samples:   simulateSamples,
		})
		return err
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0, "Observed price")
	simulateCmd.Flags().Float64Var(&simulateReference, "reference", 0, "Reference price the history is made of")
	simulateCmd.Flags().IntVar(&simulateSamples, "samples", 0, "History size (defaults to alerting.min_samples)")
}
