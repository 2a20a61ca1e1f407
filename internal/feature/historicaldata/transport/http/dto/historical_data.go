// Package dto はhistoricaldataフィーチャーのHTTPリクエスト/レスポンスDTOを定義します。
package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"kline_backfill/internal/feature/historicaldata/domain"
)

// LoadRequest はヒストリカルデータ取得ジョブの作成リクエストです。
// 日付は RFC 3339 文字列で、ハンドラーが項目ごとに解析します。
type LoadRequest struct {
	Pairs     []string `json:"pairs"`
	StartDate string   `json:"startDate"`
	EndDate   *string  `json:"endDate,omitempty"`
}

// LoadResponse is returned as soon as the job has been stored.
type LoadResponse struct {
	JobID string `json:"jobId"`
}

// StatusResponse はジョブ状態のレスポンスです。EndDate は終了前は null です。
type StatusResponse struct {
	JobID   string     `json:"jobId"`
	Status  string     `json:"status"`
	EndDate *time.Time `json:"endDate"`
}

// KlineResponse は1時間足1本分のレスポンスDTOです。価格と出来高は文字列で返します。
type KlineResponse struct {
	OpenTime time.Time       `json:"openTime"` // 始値の時刻 (UTC)
	Open     decimal.Decimal `json:"open"`     // 始値
	High     decimal.Decimal `json:"high"`     // 高値
	Low      decimal.Decimal `json:"low"`      // 安値
	Close    decimal.Decimal `json:"close"`    // 終値
	Volume   decimal.Decimal `json:"volume"`   // 出来高
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Details []domain.FieldError `json:"details,omitempty"`
}
