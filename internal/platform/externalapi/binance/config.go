// Package binance はBinance Spot APIのローソク足クライアントを提供します。
package binance

import (
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public Binance Spot REST endpoint.
	DefaultBaseURL = "https://api.binance.com"
	// DefaultTimeout is used when no request timeout is configured.
	DefaultTimeout = 15 * time.Second
)

// Config はBinance APIクライアントの設定を保持します。
type Config struct {
	APIKey    string        // 公開エンドポイントのみ使うため空でもよい
	APISecret string        // 同上
	BaseURL   string        // APIのベースURL（例: "https://api.binance.com"）
	Timeout   time.Duration // HTTPリクエストタイムアウト
}

func (c Config) withDefaults() Config {
	out := c
	out.BaseURL = strings.TrimRight(strings.TrimSpace(out.BaseURL), "/")
	if out.BaseURL == "" {
		out.BaseURL = DefaultBaseURL
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	return out
}
