package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/photosync/backend/internal/dbmodel"
	"github.com/photosync/backend/internal/logger"
	"github.com/photosync/backend/internal/pathlayout"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run the GORM AutoMigrate pass against the configured SQLite database.

dbmodel.Open already auto-migrates on every connection, so this command
mainly exists for operators who want migrations applied as a distinct,
auditable step before starting the server (e.g. ahead of an upgrade).

Examples:
  photosyncd migrate
  DB_PATH=/var/lib/photosync/db/backup.db photosyncd migrate`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	layout, err := pathlayout.Resolve(pathlayout.ResolveOptions{
		DataDir:          cfg.PhotoSyncDataDir,
		UploadDir:        cfg.UploadDir,
		DBPath:           cfg.DBPath,
		CloudDir:         cfg.CloudDir,
		CapacityJSONPath: cfg.CapacityJSONPath,
	})
	if err != nil {
		return fmt.Errorf("resolve data layout: %w", err)
	}

	logger.Info("Running database migrations", "path", layout.DBPath)

	db, err := dbmodel.Open(layout.DBPath)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	fmt.Printf("Migrations completed successfully (database: %s)\n", layout.DBPath)
	return nil
}
