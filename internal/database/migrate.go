package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"adaptive-quiz/internal/logger"

	"go.uber.org/zap"
)

//go:embed migrations/*.up.sql
var Migrations embed.FS

// ORA-00955: name is already used by an existing object.
const errAlreadyExists = "ORA-00955"

// RunMigrations executes every *.up.sql file of fsys in name order, one
// statement per file. Objects that already exist are skipped, so running it
// twice is safe.
func RunMigrations(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	files, err := fs.Glob(fsys, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("could not list migrations: %w", err)
	}
	sort.Strings(files)

	l := logger.Get()
	for _, name := range files {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("could not read migration file %s: %w", name, err)
		}
		stmt := strings.TrimSuffix(strings.TrimSpace(string(content)), ";")
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if strings.Contains(err.Error(), errAlreadyExists) {
				l.Info("Migration already applied", zap.String("file", name))
				continue
			}
			return fmt.Errorf("could not execute migration %s: %w", name, err)
		}
		l.Info("Executed migration", zap.String("file", name))
	}
	l.Info("Migrations completed successfully", zap.Int("files", len(files)))
	return nil
}
