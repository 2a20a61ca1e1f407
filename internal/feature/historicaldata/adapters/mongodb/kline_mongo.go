package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"kline_backfill/internal/feature/historicaldata/domain/entity"
	"kline_backfill/internal/feature/historicaldata/usecase"
)

// KlineMongo writes each symbol to a collection named after the symbol.
type KlineMongo struct {
	db      *mongo.Database
	indexed sync.Map // collection name -> struct{}
}

var _ usecase.DatasetRepository = (*KlineMongo)(nil)

// NewKlineMongo creates a KlineMongo on the given database.
func NewKlineMongo(db *mongo.Database) *KlineMongo {
	return &KlineMongo{db: db}
}

type klineDocument struct {
	OpenTime   time.Time       `bson:"openTime"`
	OpenPrice  bson.Decimal128 `bson:"openPrice"`
	HighPrice  bson.Decimal128 `bson:"highPrice"`
	LowPrice   bson.Decimal128 `bson:"lowPrice"`
	ClosePrice bson.Decimal128 `bson:"closePrice"`
	Volume     bson.Decimal128 `bson:"volume"`
}

func toKlineDocument(k entity.Kline) (klineDocument, error) {
	var (
		doc = klineDocument{OpenTime: k.OpenTime.UTC()}
		err error
	)
	fields := []struct {
		dst *bson.Decimal128
		src decimal.Decimal
	}{
		{&doc.OpenPrice, k.Open},
		{&doc.HighPrice, k.High},
		{&doc.LowPrice, k.Low},
		{&doc.ClosePrice, k.Close},
		{&doc.Volume, k.Volume},
	}
	for _, f := range fields {
		if *f.dst, err = bson.ParseDecimal128(f.src.String()); err != nil {
			return klineDocument{}, fmt.Errorf("encode %s at %s: %w", f.src, k.OpenTime.Format(time.RFC3339), err)
		}
	}
	return doc, nil
}

func (d klineDocument) toEntity(symbol string) (entity.Kline, error) {
	k := entity.Kline{Symbol: symbol, OpenTime: d.OpenTime.UTC()}
	fields := []struct {
		dst *decimal.Decimal
		src bson.Decimal128
	}{
		{&k.Open, d.OpenPrice},
		{&k.High, d.HighPrice},
		{&k.Low, d.LowPrice},
		{&k.Close, d.ClosePrice},
		{&k.Volume, d.Volume},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.src.String())
		if err != nil {
			return entity.Kline{}, fmt.Errorf("decode %s: %w", f.src.String(), err)
		}
		*f.dst = v
	}
	return k, nil
}

// ensureIndex creates the unique openTime index once per collection.
func (r *KlineMongo) ensureIndex(ctx context.Context, coll *mongo.Collection) error {
	if _, ok := r.indexed.Load(coll.Name()); ok {
		return nil
	}
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "openTime", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	r.indexed.Store(coll.Name(), struct{}{})
	return nil
}

// Append inserts klines unordered; documents whose openTime already exists are skipped.
func (r *KlineMongo) Append(ctx context.Context, symbol string, klines []entity.Kline) error {
	if len(klines) == 0 {
		return nil
	}
	coll := r.db.Collection(symbol)
	if err := r.ensureIndex(ctx, coll); err != nil {
		return err
	}

	docs := make([]klineDocument, 0, len(klines))
	for _, k := range klines {
		d, err := toKlineDocument(k)
		if err != nil {
			return err
		}
		docs = append(docs, d)
	}

	_, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return ignoreDuplicates(err)
}

// duplicateKeyCode is the server error code for a unique index violation.
const duplicateKeyCode = 11000

// ignoreDuplicates drops an insert error only when every failed document was a
// duplicate openTime and the write concern was satisfied.
// mongo.IsDuplicateKeyError is not enough: it matches if any single write error is a duplicate.
func ignoreDuplicates(err error) error {
	if err == nil {
		return nil
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		if bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
			return err
		}
		for _, we := range bwe.WriteErrors {
			if we.Code != duplicateKeyCode {
				return err
			}
		}
		return nil
	}

	var we mongo.WriteException
	if errors.As(err, &we) {
		if we.WriteConcernError != nil || len(we.WriteErrors) == 0 {
			return err
		}
		for _, e := range we.WriteErrors {
			if e.Code != duplicateKeyCode {
				return err
			}
		}
		return nil
	}
	return err
}

func (r *KlineMongo) Find(ctx context.Context, symbol string, from, to time.Time, limit int) ([]entity.Kline, error) {
	opts := options.Find().SetSort(bson.D{{Key: "openTime", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := r.db.Collection(symbol).Find(ctx, rangeFilter(from, to), opts)
	if err != nil {
		return nil, err
	}
	var docs []klineDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]entity.Kline, 0, len(docs))
	for _, d := range docs {
		k, err := d.toEntity(symbol)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func rangeFilter(from, to time.Time) bson.D {
	bounds := bson.D{{Key: "$gte", Value: from.UTC()}}
	if !to.IsZero() {
		bounds = append(bounds, bson.E{Key: "$lt", Value: to.UTC()})
	}
	return bson.D{{Key: "openTime", Value: bounds}}
}
