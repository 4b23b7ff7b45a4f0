package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/phrazzld/taskhub-auth/internal/platform/postgres"
)

// handleMigrations runs one goose command against the embedded migrations.
func handleMigrations(ctx context.Context, db *sql.DB, command string, logger *slog.Logger) error {
	if !slices.Contains(postgres.MigrationCommands, command) {
		return fmt.Errorf("unknown migration command %q (expected one of %s)",
			command, strings.Join(postgres.MigrationCommands, ", "))
	}

	files, err := postgres.MigrationFiles()
	if err != nil {
		return err
	}
	logger.Info("running migrations",
		slog.String("command", command),
		slog.Int("embedded_files", len(files)))

	return postgres.Migrate(ctx, db, command, logger)
}
