package app

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-pathopt/internal/data/db"
	"github.com/yungbote/neurobridge-pathopt/internal/data/graph"
	"github.com/yungbote/neurobridge-pathopt/internal/data/repos"
	"github.com/yungbote/neurobridge-pathopt/internal/modules/learning/metadata"
	"github.com/yungbote/neurobridge-pathopt/internal/modules/learning/pathopt"
	"github.com/yungbote/neurobridge-pathopt/internal/observability"
	"github.com/yungbote/neurobridge-pathopt/internal/pkg/dbctx"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/logger"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/neo4jdb"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/redisdb"
)

type App struct {
	Log       *logger.Logger
	Cfg       Config
	Source    ResolvedSource
	Provider  metadata.Provider
	Optimizer *pathopt.Optimizer
	Metrics   *observability.Metrics

	// Set depending on the source kind and cache settings.
	Store *metadata.Store
	DB    *db.Service
	Repos repos.Repos
	Neo4j *neo4jdb.Client
	Redis *goredis.Client

	shutdownOtel func(context.Context) error
}

// New connects the configured metadata source, optionally fronts it with the
// Redis cache and builds the optimizer. log may be nil, in which case one is
// built from cfg.LogMode.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*App, error) {
	if log == nil {
		var err error
		log, err = logger.New(cfg.LogMode)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	src, err := resolveSource(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Log: log, Cfg: cfg, Source: src}
	a.shutdownOtel = observability.InitOTel(ctx, log, cfg.Otel)
	if cfg.Metrics.Enabled {
		a.Metrics = observability.Init()
	}

	if err := a.wireProvider(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.Optimizer = pathopt.New(a.Provider, cfg.Optimizer, log)
	return a, nil
}

func (a *App) wireProvider(ctx context.Context) error {
	log := a.Log
	var base metadata.Provider

	switch a.Source.Kind {
	case SourceFile:
		a.Store = metadata.NewStore(metadata.FileLoader(a.Source.FilePath), log)
		if err := a.Store.Refresh(ctx); err != nil {
			return err
		}
		base = a.Store
	case SourcePostgres, SourceSQLite:
		svc, err := db.Open(a.Source.Database, log)
		if err != nil {
			return fmt.Errorf("init database: %w", err)
		}
		a.DB = svc
		if err := svc.AutoMigrateAll(); err != nil {
			return fmt.Errorf("database automigrate: %w", err)
		}
		a.Repos = repos.New(svc.DB(), log)
		base = metadata.NewSQLProvider(svc.DB(), a.Repos.LearningObject, log)
	case SourceNeo4j:
		client, err := neo4jdb.New(ctx, a.Cfg.Neo4j, log)
		if err != nil {
			return fmt.Errorf("init neo4j: %w", err)
		}
		a.Neo4j = client
		base = metadata.NewNeo4jProvider(client, log)
	default:
		return fmt.Errorf("unhandled source kind %q", a.Source.Kind)
	}

	// The in-memory store is already faster than Redis.
	if a.Source.Kind != SourceFile {
		rdb, err := redisdb.New(ctx, a.Cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		if rdb != nil {
			a.Redis = rdb
			base = metadata.NewCachedProvider(base, metadata.NewRedisKV(rdb), a.Cfg.Redis.Prefix, a.Cfg.Redis.TTL, log)
		}
	}

	a.Provider = base
	log.Info("metadata source ready", "kind", a.Source.Kind, "cache", a.Redis != nil)
	return nil
}

// Import writes records into the configured source. File sources are
// read-only. Records are validated as a whole before anything is written.
func (a *App) Import(ctx context.Context, records []metadata.Record) (int, error) {
	if _, err := metadata.NewStoreFromRecords(records, nil); err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}
	rows, err := metadata.RowsFromRecords(records)
	if err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}

	switch a.Source.Kind {
	case SourcePostgres, SourceSQLite:
		err = a.DB.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return a.Repos.LearningObject.Upsert(dbctx.Context{Ctx: ctx, Tx: tx}, rows)
		})
	case SourceNeo4j:
		err = graph.UpsertLearningObjectGraph(ctx, a.Neo4j, a.Log, rows)
	default:
		return 0, fmt.Errorf("import: source %q is read-only", a.Source.Kind)
	}
	if err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}
	fields := []interface{}{"count", len(rows), "kind", a.Source.Kind}
	if a.Repos.LearningObject != nil {
		total, cerr := a.Repos.LearningObject.Count(dbctx.Context{Ctx: ctx})
		if cerr != nil {
			a.Log.Warn("count learning objects failed", "error", cerr)
		} else {
			fields = append(fields, "total", total)
		}
	}
	a.Log.Info("learning objects imported", fields...)
	return len(rows), nil
}

// Close flushes metrics and tracing and releases connections. Safe to call
// on a partially built App.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Metrics != nil {
		if err := a.Metrics.WriteTextfile(a.Cfg.Metrics.Textfile); err != nil {
			errs = append(errs, err)
		}
	}
	if a.shutdownOtel != nil {
		if err := a.shutdownOtel(ctx); err != nil {
			errs = append(errs, fmt.Errorf("otel shutdown: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if a.Neo4j != nil {
		if err := a.Neo4j.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("neo4j close: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return errors.Join(errs...)
}
