package cli

import (
	"time"

	"github.com/spf13/cobra"

	"flow-alerts/internal/app"
)

var (
	simulateDuration time.Duration
	simulateSeed     int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "驱动模拟行情源并触发告警，用于验证配置",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Simulate(cmd.Context(), app.SimulateOptions{
			Duration: simulateDuration,
			Seed:     simulateSeed,
		})
	},
}

func init() {
	simulateCmd.Flags().DurationVar(&simulateDuration, "duration", 30*time.Second, "How long to run the simulation")
	simulateCmd.Flags().Int64Var(&simulateSeed, "seed", 0, "Random seed (0 picks a random one)")
}
