package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Calendar service for recurring event instances",
	Long: `A read service that resolves recurring event instances against their
series templates and exceptions, and exposes them over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize()
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml or app.env")
}
