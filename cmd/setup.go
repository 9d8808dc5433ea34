package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crossfade/internal/shared"
)

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", configPath)
	return r.writePlain("Wrote %s\n", configPath)
}

// SetupDatabase initializes the database and runs migrations.
//
// A missing config file is created from the template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if !r.loaded {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			r.logger.Info("config file not found, creating from template", "path", configPath)
			if err := shared.CreateConfigFile(configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			}
		}
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "driver", config.Database.Driver, "path", config.Database.Path)
	if _, err := r.openStores(cmd); err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}

// MigrationStatus lists every known migration and whether it has been applied.
func (r *Runner) MigrationStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openSQLite(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	statuses, err := shared.Migrations(db)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(statuses, true)
	}

	r.writePlainHeader("Migrations")
	for _, s := range statuses {
		mark := "pending"
		if s.Applied {
			mark = "applied"
		}
		r.writePlain("%04d  %-30s %s\n", s.Version, s.Name, mark)
	}
	return nil
}

// MigrationRollback reverts the latest applied migration.
func (r *Runner) MigrationRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openSQLite(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	r.logger.Warn("rolled back latest migration", "path", r.config.Database.Path)
	return r.writePlainln("Rolled back the latest migration")
}

func (r *Runner) openSQLite(cmd *cli.Command) (*sql.DB, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if config.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("%w: migrations apply to the sqlite driver, not %s", shared.ErrUnsupported, config.Database.Driver)
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	return db, nil
}
