// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kline_backfill/internal/feature/historicaldata/domain/entity"
	"kline_backfill/internal/feature/historicaldata/usecase"
)

// CachingJobRepository decorates a JobRepository with Redis caching of finished jobs.
// Jobs still InProcessing are never cached, so a status poll always sees the
// transition as soon as it is stored.
type CachingJobRepository struct {
	inner     usecase.JobRepository
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ usecase.JobRepository = (*CachingJobRepository)(nil)

// NewCachingJobRepository decorates a JobRepository with Redis caching.
// If ttl is 0, it defaults to 10 minutes. If namespace is empty, it uses "jobs".
// A nil rdb disables caching entirely.
func NewCachingJobRepository(rdb *redis.Client, ttl time.Duration, inner usecase.JobRepository, namespace string) *CachingJobRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if namespace == "" {
		namespace = "jobs"
	}
	return &CachingJobRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Create は内部リポジトリにそのまま委譲します。
func (c *CachingJobRepository) Create(ctx context.Context, job *entity.Job) error {
	return c.inner.Create(ctx, job)
}

// FindByID checks the cache first and falls back to the underlying store.
func (c *CachingJobRepository) FindByID(ctx context.Context, id string) (*entity.Job, error) {
	if c.rdb == nil {
		return c.inner.FindByID(ctx, id)
	}

	key := c.cacheKey(id)

	// 1) キャッシュ確認
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var job entity.Job
		if err := json.Unmarshal(b, &job); err == nil {
			return &job, nil
		}
		// 破損したエントリは削除
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) DBへフォールバック
	job, err := c.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// 3) 終了済みのジョブのみ保存 (best effort)
	if job.Status.IsTerminal() {
		if b, err := json.Marshal(job); err == nil {
			_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
		}
	}
	return job, nil
}

// UpdateStatus writes through to the store and drops any cached copy.
func (c *CachingJobRepository) UpdateStatus(ctx context.Context, id string, status entity.JobStatus, completedAt *time.Time) error {
	if err := c.inner.UpdateStatus(ctx, id, status, completedAt); err != nil {
		return err
	}
	if c.rdb != nil {
		_ = c.rdb.Del(ctx, c.cacheKey(id)).Err()
	}
	return nil
}

func (c *CachingJobRepository) cacheKey(id string) string {
	return fmt.Sprintf("%s:%s", c.namespace, id)
}
