// Package usecase はヒストリカルデータ取得ジョブのビジネスロジックを実装します。
package usecase

import (
	"context"
	"time"

	"kline_backfill/internal/feature/historicaldata/domain/entity"
)

// MarketRepository は外部の市場データAPIから1ページ分のローソク足を取得します。
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type MarketRepository interface {
	// FetchPage returns at most limit klines whose open time lies in [from, to), oldest first.
	FetchPage(ctx context.Context, symbol string, from, to time.Time, limit int, interval time.Duration) ([]entity.Kline, error)
}

// JobRepository はジョブの永続化レイヤーを抽象化します。
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	// FindByID returns domain.ErrJobNotFound when no job has the given id.
	FindByID(ctx context.Context, id string) (*entity.Job, error)
	UpdateStatus(ctx context.Context, id string, status entity.JobStatus, completedAt *time.Time) error
}

// DatasetRepository stores klines in a dataset named after their symbol.
type DatasetRepository interface {
	Append(ctx context.Context, symbol string, klines []entity.Kline) error
	Find(ctx context.Context, symbol string, from, to time.Time, limit int) ([]entity.Kline, error)
}
