package router

import (
	"github.com/gin-gonic/gin"

	"kline_backfill/internal/feature/historicaldata/transport/handler"
)

// NewRouter はすべてのルートを登録した gin.Engine を返します。
func NewRouter(historical *handler.HistoricalDataHandler, health gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	// gin.Default() と同じ構成。パニックは 500 に変換される
	r.Use(gin.Logger(), gin.Recovery())

	// 導通確認用
	r.GET("/healthz", health)
	r.HEAD("/healthz", health)

	api := r.Group("/api/historical-data")
	{
		// ジョブ作成（取得はバックグラウンドで実行）
		api.POST("/load", historical.Load)
		// ジョブ状態の取得
		api.GET("/status", historical.Status)
		// 保存済みデータの参照
		api.GET("/klines/:symbol", historical.Klines)
	}

	return r
}
