package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kline represents one fixed-interval OHLCV candle of a trading pair.
// A kline is identified by (Symbol, OpenTime) and is never updated once stored.
type Kline struct {
	Symbol   string          // Trading pair (e.g., "BTCUSDT")
	OpenTime time.Time       // Start of the candle interval
	Open     decimal.Decimal // Opening price
	High     decimal.Decimal // Highest price during the interval
	Low      decimal.Decimal // Lowest price during the interval
	Close    decimal.Decimal // Closing price
	Volume   decimal.Decimal // Traded base asset volume
}
