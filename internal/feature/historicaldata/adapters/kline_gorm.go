package adapters

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kline_backfill/internal/feature/historicaldata/domain/entity"
	"kline_backfill/internal/feature/historicaldata/usecase"
)

// insertBatchSize keeps each INSERT under SQLite's bound-variable limit.
const insertBatchSize = 500

// klineGorm stores every symbol in its own table (klines_<symbol>).
type klineGorm struct {
	db       *gorm.DB
	migrated sync.Map // table name -> struct{}
}

var _ usecase.DatasetRepository = (*klineGorm)(nil)

// NewDatasetRepository returns a gorm-backed DatasetRepository.
func NewDatasetRepository(db *gorm.DB) *klineGorm {
	return &klineGorm{db: db}
}

// KlineModel is the row layout shared by all per-symbol tables.
type KlineModel struct {
	OpenTime time.Time       `gorm:"primaryKey"`
	Open     decimal.Decimal `gorm:"type:numeric(36,18);not null"`
	High     decimal.Decimal `gorm:"type:numeric(36,18);not null"`
	Low      decimal.Decimal `gorm:"type:numeric(36,18);not null"`
	Close    decimal.Decimal `gorm:"type:numeric(36,18);not null"`
	Volume   decimal.Decimal `gorm:"type:numeric(36,18);not null"`
}

// DatasetTable returns the table name for a symbol. Symbols are validated as
// [A-Z0-9]+ before they reach storage.
func DatasetTable(symbol string) string {
	return "klines_" + strings.ToLower(symbol)
}

func (r *klineGorm) ensureTable(ctx context.Context, table string) error {
	if _, ok := r.migrated.Load(table); ok {
		return nil
	}
	if err := r.db.WithContext(ctx).Table(table).AutoMigrate(&KlineModel{}); err != nil {
		return err
	}
	r.migrated.Store(table, struct{}{})
	return nil
}

// Append inserts klines; rows whose open time already exists are left untouched.
func (r *klineGorm) Append(ctx context.Context, symbol string, klines []entity.Kline) error {
	if len(klines) == 0 {
		return nil
	}
	table := DatasetTable(symbol)
	if err := r.ensureTable(ctx, table); err != nil {
		return err
	}

	ms := make([]KlineModel, 0, len(klines))
	for _, k := range klines {
		ms = append(ms, KlineModel{
			OpenTime: k.OpenTime.UTC(),
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Volume,
		})
	}

	return r.db.WithContext(ctx).
		Table(table).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "open_time"}}, DoNothing: true}).
		CreateInBatches(&ms, insertBatchSize).Error
}

// Find returns klines with open time in [from, to), oldest first. A zero to means no upper bound.
func (r *klineGorm) Find(ctx context.Context, symbol string, from, to time.Time, limit int) ([]entity.Kline, error) {
	table := DatasetTable(symbol)
	if !r.db.WithContext(ctx).Migrator().HasTable(table) {
		return []entity.Kline{}, nil
	}

	q := r.db.WithContext(ctx).Table(table).Where("open_time >= ?", from.UTC())
	if !to.IsZero() {
		q = q.Where("open_time < ?", to.UTC())
	}
	q = q.Order("open_time ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []KlineModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.Kline, 0, len(rows))
	for _, m := range rows {
		out = append(out, entity.Kline{
			Symbol:   symbol,
			OpenTime: m.OpenTime.UTC(),
			Open:     m.Open,
			High:     m.High,
			Low:      m.Low,
			Close:    m.Close,
			Volume:   m.Volume,
		})
	}
	return out, nil
}
