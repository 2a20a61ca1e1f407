package di

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"kline_backfill/internal/feature/historicaldata/adapters"
	"kline_backfill/internal/feature/historicaldata/adapters/mongodb"
	"kline_backfill/internal/feature/historicaldata/usecase"
	"kline_backfill/internal/platform/cache"
	"kline_backfill/internal/platform/config"
	infradb "kline_backfill/internal/platform/db"
	"kline_backfill/internal/platform/http/handler"
	inframongo "kline_backfill/internal/platform/mongo"
)

// Storage bundles the repositories of the configured backend.
type Storage struct {
	Jobs    usecase.JobRepository
	Dataset usecase.DatasetRepository
	// Ping checks the backend for /healthz.
	Ping handler.PingFunc
	// Close releases the backend connection.
	Close func(ctx context.Context) error
}

// NewStorage opens the backend selected by cfg.StorageDriver.
// If Redis is available, finished jobs are served from a Redis cache in front of it.
func NewStorage(ctx context.Context, cfg *config.Config, rdb *redis.Client) (*Storage, error) {
	var (
		s   *Storage
		err error
	)
	if cfg.StorageDriver == config.DriverMongo {
		s, err = newMongoStorage(ctx, cfg.Mongo)
	} else {
		s, err = newGormStorage(cfg)
	}
	if err != nil {
		return nil, err
	}

	s.Jobs = cache.NewCachingJobRepository(rdb, cfg.Redis.CacheTTL, s.Jobs, "jobs")
	slog.Info("storage ready", "driver", cfg.StorageDriver, "status_cache", rdb != nil)
	return s, nil
}

func newGormStorage(cfg *config.Config) (*Storage, error) {
	db, err := infradb.OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	return &Storage{
		Jobs:    adapters.NewJobRepository(db),
		Dataset: adapters.NewDatasetRepository(db),
		Ping:    sqlDB.PingContext,
		Close:   func(context.Context) error { return sqlDB.Close() },
	}, nil
}

func newMongoStorage(ctx context.Context, cfg config.MongoConfig) (*Storage, error) {
	db, err := inframongo.NewMongoDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Storage{
		Jobs:    mongodb.NewJobMongo(db, cfg.JobCollection),
		Dataset: mongodb.NewKlineMongo(db),
		Ping: func(ctx context.Context) error {
			return db.Client().Ping(ctx, nil)
		},
		Close: db.Client().Disconnect,
	}, nil
}
