package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gauged",
	Short: "Time-weighted gauge voting controller",
	Long:  "Gauged distributes reward weight across gauges from time-locked votes that decay linearly as locks approach expiry. Single Go binary backed by SQLite.",
}

var configPath string

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "gauged.yaml", "path to config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(gaugesCmd)
	rootCmd.AddCommand(weightCmd)
	rootCmd.AddCommand(totalCmd)
	rootCmd.AddCommand(voteCmd)
	rootCmd.AddCommand(compactCmd)
}
