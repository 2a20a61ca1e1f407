package usecase

import (
	"context"
	"time"

	"kline_backfill/internal/feature/historicaldata/domain"
	"kline_backfill/internal/feature/historicaldata/domain/entity"
)

const (
	// DefaultOutputSize はデフォルトの返却件数です。
	DefaultOutputSize = 500
	// MaxOutputSize は最大の返却件数です。
	MaxOutputSize = 5000
)

// KlinesUsecase は保存済みローソク足の読み取りユースケースです。
type KlinesUsecase struct {
	dataset DatasetRepository
}

// NewKlinesUsecase はKlinesUsecaseの新しいインスタンスを生成します。
func NewKlinesUsecase(dataset DatasetRepository) *KlinesUsecase {
	return &KlinesUsecase{dataset: dataset}
}

// GetKlines は指定銘柄の [from, to) に含まれるローソク足を古い順に返します。
// to がゼロ値の場合は上限なしです。
func (u *KlinesUsecase) GetKlines(ctx context.Context, symbol string, from, to time.Time, limit int) ([]entity.Kline, error) {
	ve := &domain.ValidationError{}
	if !entity.IsValidSymbol(symbol) {
		ve.Add("symbol", "symbol must contain only upper-case letters and digits")
	}
	if !to.IsZero() && from.After(to) {
		ve.Add("from", "from must not be after to")
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > MaxOutputSize {
		limit = DefaultOutputSize
	}
	return u.dataset.Find(ctx, symbol, from, to, limit)
}
