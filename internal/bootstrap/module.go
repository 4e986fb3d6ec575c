package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"almsync/internal/bootstrap/config"
	"almsync/internal/bootstrap/database"
	"almsync/internal/bootstrap/logging"
	businfra "almsync/internal/infrastructure/bus"
	sqliterepo "almsync/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "almsync/internal/infrastructure/persistence/sqlite/uow"
	trackerinfra "almsync/internal/infrastructure/tracker"
	"almsync/internal/ports"
	syncuc "almsync/internal/usecase/sync"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewIssueRepository,
			fx.As(new(ports.IssueRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewTestResultRepository,
			fx.As(new(ports.TestResultRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewSyncLedgerRepository,
			fx.As(new(ports.SyncLedger)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideBus),
	fx.Provide(func(b *businfra.Bus) ports.EventBus { return b }),
	fx.Provide(
		fx.Annotate(
			provideTrackerClient,
			fx.As(new(ports.TrackerClient)),
		),
	),
	fx.Provide(provideSyncOptions),
	fx.Provide(syncuc.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideBus(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*businfra.Bus, error) {
	b, err := businfra.Connect(ctx, cfg.Bus)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			b.Close()
			return nil
		},
	})

	return b, nil
}

func provideTrackerClient(cfg config.Config) *trackerinfra.Client {
	return trackerinfra.NewClient(cfg.Tracker)
}

func provideSyncOptions(cfg config.Config) (syncuc.Options, error) {
	profile, err := syncuc.LoadDefectProfile(cfg.Defect.ProfileFile)
	if err != nil {
		return syncuc.Options{}, err
	}

	return syncuc.Options{
		ProjectKey:         cfg.Tracker.ProjectKey,
		ResyncJQL:          cfg.Tracker.ResyncJQL,
		RequirementSubject: cfg.Bus.RequirementSubject,
		Profile:            profile,
	}, nil
}
