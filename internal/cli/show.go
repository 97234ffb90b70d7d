package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"flow-alerts/internal/app"
	"flow-alerts/internal/model"
)

var (
	showLimit int
	showSide  string
	showText  string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit: showLimit,
			Text:  showText,
		}

		switch showSide {
		case "":
		case "call", "put":
			opts.Side = model.Side(showSide)
		default:
			return fmt.Errorf("--side must be call or put")
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of alerts to display")
	showCmd.Flags().StringVar(&showSide, "side", "", "Filter by side (call or put)")
	showCmd.Flags().StringVar(&showText, "search", "", "Free-text filter across symbol, expiry, and reason")
}
