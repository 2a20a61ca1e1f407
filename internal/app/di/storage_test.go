package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kline_backfill/internal/feature/historicaldata/domain/entity"
	"kline_backfill/internal/platform/cache"
	"kline_backfill/internal/platform/config"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		StorageDriver: config.DriverSQLite,
		DB:            config.DBConfig{SQLitePath: filepath.Join(t.TempDir(), "klines.db")},
		Redis:         config.RedisConfig{CacheTTL: time.Minute},
	}
}

func TestNewStorage_SQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := NewStorage(ctx, sqliteConfig(t), nil)
	require.NoError(t, err)
	defer func() { _ = s.Close(ctx) }()

	assert.IsType(t, &cache.CachingJobRepository{}, s.Jobs)
	require.NoError(t, s.Ping(ctx))

	job, err := entity.NewJob([]string{"BTCUSDT"}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Jobs.Create(ctx, job))

	got, err := s.Jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProcessing, got.Status)
}

func TestNewStorage_SQLiteWithRedisCache(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	s, err := NewStorage(ctx, sqliteConfig(t), rdb)
	require.NoError(t, err)
	defer func() { _ = s.Close(ctx) }()

	job, err := entity.NewJob([]string{"ETHUSDT"}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Jobs.Create(ctx, job))

	done := time.Now()
	require.NoError(t, s.Jobs.UpdateStatus(ctx, job.ID, entity.StatusCompleted, &done))

	got, err := s.Jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, got.Status)
	assert.True(t, mr.Exists("jobs:"+job.ID))
}

func TestNewMarket_DefaultTimeout(t *testing.T) {
	t.Parallel()

	m := NewMarket(config.MarketConfig{})
	assert.NotNil(t, m)
}
