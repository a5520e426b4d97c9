package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/backstage/services/calendar/config"
	"example.com/backstage/services/calendar/internal/database"
	"example.com/backstage/services/calendar/internal/models"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Create or update the event, recurrence and exception tables on the write database`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	configureLogging(cfg.Logging, cfg.Environment)

	db, readOnlyDB, err := database.Connect(cfg.DB, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db, readOnlyDB); err != nil {
			log.Warn().Err(err).Msg("Failed to close database connections")
		}
	}()

	if err := models.SetupModels(db); err != nil {
		return err
	}

	log.Info().Msg("Migrations completed")
	return nil
}
