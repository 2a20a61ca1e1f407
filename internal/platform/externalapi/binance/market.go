package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"

	"kline_backfill/internal/feature/historicaldata/domain"
	"kline_backfill/internal/feature/historicaldata/domain/entity"
	"kline_backfill/internal/feature/historicaldata/usecase"
)

// MaxLimit はBinanceが1リクエストで返す最大件数です。
const MaxLimit = 1000

var intervals = map[time.Duration]string{
	time.Minute:        "1m",
	3 * time.Minute:    "3m",
	5 * time.Minute:    "5m",
	15 * time.Minute:   "15m",
	30 * time.Minute:   "30m",
	time.Hour:          "1h",
	2 * time.Hour:      "2h",
	4 * time.Hour:      "4h",
	6 * time.Hour:      "6h",
	8 * time.Hour:      "8h",
	12 * time.Hour:     "12h",
	24 * time.Hour:     "1d",
	3 * 24 * time.Hour: "3d",
	7 * 24 * time.Hour: "1w",
}

// IntervalString converts a candle duration to Binance's interval code.
func IntervalString(d time.Duration) (string, error) {
	s, ok := intervals[d]
	if !ok {
		return "", fmt.Errorf("unsupported kline interval %s", d)
	}
	return s, nil
}

// BinanceMarket はBinance Spot APIからローソク足を取得するMarketRepository実装です。
type BinanceMarket struct {
	cfg    Config
	client *gobinance.Client
}

// BinanceMarketがMarketRepositoryを実装していることをコンパイル時に検証します。
var _ usecase.MarketRepository = (*BinanceMarket)(nil)

// NewBinanceMarket は指定された設定とHTTPクライアントでBinanceMarketを生成します。
// httpClient が nil の場合はSDKのデフォルトを使用します。
func NewBinanceMarket(cfg Config, httpClient *http.Client) *BinanceMarket {
	final := cfg.withDefaults()
	client := gobinance.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.BaseURL
	if httpClient != nil {
		client.HTTPClient = httpClient
	}
	return &BinanceMarket{cfg: final, client: client}
}

// FetchPage は [from, to) に始値時刻を持つローソク足を最大 limit 件、古い順に返します。
// Binance の endTime は閉区間のため、to の1ミリ秒前を指定します。
func (m *BinanceMarket) FetchPage(ctx context.Context, symbol string, from, to time.Time, limit int, interval time.Duration) ([]entity.Kline, error) {
	iv, err := IntervalString(interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}

	kls, err := m.client.NewKlinesService().
		Symbol(symbol).
		Interval(iv).
		StartTime(from.UnixMilli()).
		EndTime(to.UnixMilli() - 1).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, providerError(err)
	}

	out := make([]entity.Kline, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		k, err := toKline(symbol, kl)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrProvider, err)
		}
		out = append(out, k)
	}
	return out, nil
}

func toKline(symbol string, kl *gobinance.Kline) (entity.Kline, error) {
	k := entity.Kline{
		Symbol:   symbol,
		OpenTime: time.UnixMilli(kl.OpenTime).UTC(),
	}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"open", kl.Open, &k.Open},
		{"high", kl.High, &k.High},
		{"low", kl.Low, &k.Low},
		{"close", kl.Close, &k.Close},
		{"volume", kl.Volume, &k.Volume},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return entity.Kline{}, fmt.Errorf("parse %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = v
	}
	return k, nil
}

// providerError keeps the upstream message and marks the error as domain.ErrProvider.
func providerError(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: binance code %d: %s", domain.ErrProvider, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("%w: %w", domain.ErrProvider, err)
}
