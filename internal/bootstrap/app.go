package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"almsync/internal/bootstrap/config"
	"almsync/internal/bootstrap/logging"
	"almsync/internal/errs"
	"almsync/internal/infrastructure/persistence/sqlite/model"
)

// App aggregates the bootstrapped resources commands work with. It is
// assembled by the fx module; lifecycle (including closing the database)
// stays with fx hooks.
type App struct {
	Config config.Config
	DB     *gorm.DB
}

// InitSchema migrates the warehouse tables: mirrored issues, test cases and
// results, and the sync-status ledger.
func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	if err := a.DB.WithContext(ctx).AutoMigrate(
		&model.Issue{},
		&model.TestCase{},
		&model.TestResult{},
		&model.SyncStatus{},
	); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}
