package cli

import (
	"github.com/spf13/cobra"

	"flow-alerts/internal/app"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or update the persisted user settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		var update app.SettingsUpdate

		flags := cmd.Flags()
		if flags.Changed("enabled") {
			v, _ := flags.GetBool("enabled")
			update.Enabled = &v
		}
		if flags.Changed("sound") {
			v, _ := flags.GetBool("sound")
			update.AlertSound = &v
		}
		if flags.Changed("threshold") {
			v, _ := flags.GetFloat64("threshold")
			update.ValueThreshold = &v
		}
		if flags.Changed("min-strike") {
			v, _ := flags.GetFloat64("min-strike")
			update.MinStrike = &v
		}
		if flags.Changed("max-strike") {
			v, _ := flags.GetFloat64("max-strike")
			update.MaxStrike = &v
		}
		if flags.Changed("min-exp") {
			v, _ := flags.GetInt("min-exp")
			update.MinExp = &v
		}
		if flags.Changed("max-exp") {
			v, _ := flags.GetInt("max-exp")
			update.MaxExp = &v
		}

		return getApp().Settings(cmd.Context(), update)
	},
}

func init() {
	settingsCmd.Flags().Bool("enabled", true, "Enable or disable alerting")
	settingsCmd.Flags().Bool("sound", false, "Request an audio cue with notifications")
	settingsCmd.Flags().Float64("threshold", 0, "Minimum summed value for an alert")
	settingsCmd.Flags().Float64("min-strike", 0, "Lowest admitted strike")
	settingsCmd.Flags().Float64("max-strike", 0, "Highest admitted strike")
	settingsCmd.Flags().Int("min-exp", 0, "Earliest admitted expiry, in days from now")
	settingsCmd.Flags().Int("max-exp", 0, "Latest admitted expiry, in days from now")
}
