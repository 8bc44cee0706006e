package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"market-price-alerts/internal/app"
)

var (
	showLimit   int
	showTier    string
	showStatus  string
	showMarket  int64
	showProduct int64
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display alerts, active ones by default",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:     showLimit,
			Tier:      showTier,
			Status:    showStatus,
			MarketID:  showMarket,
			ProductID: showProduct,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of alerts to display")
	showCmd.Flags().StringVar(&showTier, "tier", "", "Filter by tier (surveillance|alert|urgent)")
	showCmd.Flags().StringVar(&showStatus, "status", "", "Filter by status (active|resolved|closed)")
	showCmd.Flags().Int64Var(&showMarket, "market", 0, "Filter by market id")
	showCmd.Flags().Int64Var(&showProduct, "product", 0, "Filter by product id")
}
