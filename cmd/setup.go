package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/minutes/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the default configuration file.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if path == "" {
		path = r.configPath
	}
	if path == "" {
		path = defaultConfigPath
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)

	r.writePlain("✓ Configuration written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in [credentials] or export ASSEMBLYAI_API_KEY, GROQ_API_KEY and RESEND_API_KEY\n")
	r.writePlain("2. Run 'minutes setup database' to create the schema\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	applied, err := shared.AppliedMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s (%d migrations applied)\n", r.config.Database.Path, len(applied))
	return nil
}

// SetupRollback rolls back the latest applied migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	applied, err := shared.AppliedMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	if len(applied) == 0 {
		r.writePlain("Nothing to roll back\n")
		return nil
	}

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	latest := applied[len(applied)-1].Version
	r.logger.Info("rolled back migration", "version", latest)
	r.writePlain("✓ Rolled back migration %d (%d remain)\n", latest, len(applied)-1)
	return nil
}
