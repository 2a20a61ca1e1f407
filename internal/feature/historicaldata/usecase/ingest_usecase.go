package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"kline_backfill/internal/feature/historicaldata/domain"
	"kline_backfill/internal/feature/historicaldata/domain/entity"
)

const (
	// PageLimit は1回のリクエストで取得する最大件数です（Binance の上限）。
	PageLimit = 1000
	// FetchInterval is the candle granularity of every backfill.
	FetchInterval = time.Hour
)

// Outcome は1銘柄分の取り込み結果です。生成後は変更されません。
type Outcome struct {
	Symbol  string
	Records int
	Err     error
}

// IngestUsecase は外部APIからデータをページ単位で取得し、データベースに永続化するユースケースです。
type IngestUsecase struct {
	market      MarketRepository
	dataset     DatasetRepository
	maxParallel int
}

// NewIngestUsecase は新しい IngestUsecase を作成します。
// maxParallel が 0 以下の場合、銘柄ごとの並列数は無制限です。
func NewIngestUsecase(market MarketRepository, dataset DatasetRepository, maxParallel int) *IngestUsecase {
	return &IngestUsecase{market: market, dataset: dataset, maxParallel: maxParallel}
}

// Ingest は1銘柄の [from, to) を全ページ取得し、1回の書き込みで保存します。
// 取得件数を返します。
func (iu *IngestUsecase) Ingest(ctx context.Context, jobID, symbol string, from, to time.Time) (int, error) {
	klines, err := iu.fetchAll(ctx, symbol, from, to)
	if err != nil {
		return 0, err
	}
	if len(klines) == 0 {
		slog.Info("no klines in window", "job", jobID, "symbol", symbol, "from", from, "to", to)
		return 0, nil
	}

	for i := range klines {
		klines[i].Symbol = symbol
	}
	if err := iu.dataset.Append(ctx, symbol, klines); err != nil {
		return 0, fmt.Errorf("%w: append %s: %w", domain.ErrStorage, symbol, err)
	}
	slog.Info("klines stored", "job", jobID, "symbol", symbol, "count", len(klines))
	return len(klines), nil
}

// fetchAll pages through the provider. The cursor starts at from and moves to
// one interval past the last open time of each full page. An empty window
// issues no request.
func (iu *IngestUsecase) fetchAll(ctx context.Context, symbol string, from, to time.Time) ([]entity.Kline, error) {
	var all []entity.Kline
	cursor := from
	for cursor.Before(to) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := iu.market.FetchPage(ctx, symbol, cursor, to, PageLimit, FetchInterval)
		if err != nil {
			return nil, fmt.Errorf("fetch %s from %s: %w", symbol, cursor.Format(time.RFC3339), err)
		}
		all = append(all, page...)

		// 件数が上限未満なら残りのデータはない
		if len(page) < PageLimit {
			break
		}

		next := page[len(page)-1].OpenTime.Add(FetchInterval)
		if !next.After(cursor) {
			return nil, fmt.Errorf("%w: %s page ending at %s does not advance cursor %s",
				domain.ErrProvider, symbol, page[len(page)-1].OpenTime.Format(time.RFC3339), cursor.Format(time.RFC3339))
		}
		cursor = next
	}
	return all, nil
}

// IngestAll は全銘柄を並行して取り込み、すべての完了を待ってから結果を返します。
// 1銘柄の失敗は他の銘柄をキャンセルしません。
func (iu *IngestUsecase) IngestAll(ctx context.Context, jobID string, pairs []string, from, to time.Time) []Outcome {
	outcomes := make([]Outcome, len(pairs))

	var g errgroup.Group
	if iu.maxParallel > 0 {
		g.SetLimit(iu.maxParallel)
	}
	for i, symbol := range pairs {
		g.Go(func() error {
			slog.Info("start loading pair", "job", jobID, "symbol", symbol)
			n, err := iu.Ingest(ctx, jobID, symbol, from, to)
			if err != nil {
				slog.Error("failed to ingest pair", "job", jobID, "symbol", symbol, "error", err)
			}
			outcomes[i] = Outcome{Symbol: symbol, Records: n, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// FinalStatus reduces per-symbol outcomes to the job's terminal status:
// Completed only if every symbol succeeded.
func FinalStatus(outcomes []Outcome) entity.JobStatus {
	for _, o := range outcomes {
		if o.Err != nil {
			return entity.StatusError
		}
	}
	return entity.StatusCompleted
}
