// Package di provides dependency injection factories for creating application components.
package di

import (
	"kline_backfill/internal/platform/config"
	"kline_backfill/internal/platform/externalapi/binance"
	infrahttp "kline_backfill/internal/platform/http"
)

// NewMarket creates a fully configured BinanceMarket with HTTP client.
func NewMarket(cfg config.MarketConfig) *binance.BinanceMarket {
	bcfg := binance.Config{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
	}
	if bcfg.Timeout <= 0 {
		bcfg.Timeout = binance.DefaultTimeout
	}
	return binance.NewBinanceMarket(bcfg, infrahttp.NewHTTPClient(bcfg.Timeout))
}
