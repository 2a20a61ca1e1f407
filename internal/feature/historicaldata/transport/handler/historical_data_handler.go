// Package handler はhistoricaldataフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"kline_backfill/internal/feature/historicaldata/domain"
	"kline_backfill/internal/feature/historicaldata/domain/entity"
	"kline_backfill/internal/feature/historicaldata/transport/http/dto"
	"kline_backfill/internal/feature/historicaldata/usecase"
)

// LoadJobUsecase はジョブ作成のユースケースインターフェースです。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type LoadJobUsecase interface {
	LoadJob(ctx context.Context, in usecase.LoadJobInput) (string, error)
}

// StatusUsecase looks up a job's status view.
type StatusUsecase interface {
	GetStatus(ctx context.Context, jobID string) (usecase.StatusView, error)
}

// KlinesUsecase reads stored klines back.
type KlinesUsecase interface {
	GetKlines(ctx context.Context, symbol string, from, to time.Time, limit int) ([]entity.Kline, error)
}

// HistoricalDataHandler はヒストリカルデータAPIのHTTPリクエストを処理します。
type HistoricalDataHandler struct {
	load   LoadJobUsecase
	status StatusUsecase
	klines KlinesUsecase
}

// NewHistoricalDataHandler は HistoricalDataHandler を生成します。
func NewHistoricalDataHandler(load LoadJobUsecase, status StatusUsecase, klines KlinesUsecase) *HistoricalDataHandler {
	return &HistoricalDataHandler{load: load, status: status, klines: klines}
}

// Load はジョブを作成し、取得完了を待たずにジョブIDを返します。
//
// エンドポイント例:
// POST /api/historical-data/load {"pairs":["BTCUSDT"],"startDate":"2024-01-01T00:00:00Z"}
func (h *HistoricalDataHandler) Load(c *gin.Context) {
	var req dto.LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			ve := &domain.ValidationError{}
			ve.Add(typeErr.Field, "must be of type "+typeErr.Type.String())
			writeError(c, ve)
			return
		}
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	ve := &domain.ValidationError{}
	var start time.Time
	if req.StartDate != "" {
		start = parseTime("startDate", req.StartDate, ve)
	}
	var end *time.Time
	if req.EndDate != nil {
		e := parseTime("endDate", *req.EndDate, ve)
		end = &e
	}
	if err := ve.OrNil(); err != nil {
		writeError(c, err)
		return
	}

	id, err := h.load.LoadJob(c.Request.Context(), usecase.LoadJobInput{
		Pairs:     req.Pairs,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.LoadResponse{JobID: id})
}

// Status returns the job's status view.
//
// GET /api/historical-data/status?jobId=<uuid>
func (h *HistoricalDataHandler) Status(c *gin.Context) {
	view, err := h.status.GetStatus(c.Request.Context(), c.Query("jobId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.StatusResponse{
		JobID:   view.JobID,
		Status:  view.Status,
		EndDate: view.EndDate,
	})
}

// Klines は保存済みのローソク足を返します。
//
// GET /api/historical-data/klines/:symbol?from=2024-01-01T00:00:00Z&to=...&limit=500
func (h *HistoricalDataHandler) Klines(c *gin.Context) {
	ve := &domain.ValidationError{}
	from := parseTimeQuery(c, "from", ve)
	to := parseTimeQuery(c, "to", ve)
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			ve.Add("limit", "limit must be a non-negative integer")
		}
		limit = n
	}
	if err := ve.OrNil(); err != nil {
		writeError(c, err)
		return
	}

	klines, err := h.klines.GetKlines(c.Request.Context(), c.Param("symbol"), from, to, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]dto.KlineResponse, 0, len(klines))
	for _, k := range klines {
		out = append(out, dto.KlineResponse{
			OpenTime: k.OpenTime.UTC(),
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Volume,
		})
	}
	c.JSON(http.StatusOK, out)
}

func parseTimeQuery(c *gin.Context, name string, ve *domain.ValidationError) time.Time {
	s := c.Query(name)
	if s == "" {
		return time.Time{}
	}
	return parseTime(name, s, ve)
}

func parseTime(field, s string, ve *domain.ValidationError) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		ve.Add(field, "must be an RFC 3339 timestamp")
	}
	return t
}

// writeError maps usecase errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	if ve, ok := domain.AsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "validation failed", Details: ve.Fields})
		return
	}
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, usecase.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: err.Error()})
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}
}
