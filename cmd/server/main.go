package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kline_backfill/internal/app/di"
	"kline_backfill/internal/app/router"
	"kline_backfill/internal/feature/historicaldata/transport/handler"
	"kline_backfill/internal/feature/historicaldata/usecase"
	"kline_backfill/internal/platform/config"
	healthhandler "kline_backfill/internal/platform/http/handler"
	"kline_backfill/internal/platform/logger"
	infraredis "kline_backfill/internal/platform/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("ENV_FILE"))
	if err != nil {
		return err
	}
	logger.Setup(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis（任意）
	rdb, err := infraredis.NewRedisClient(cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable. Running without cache.", "error", err)
		rdb = nil
	}
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				slog.Error("failed to close Redis client", "error", err)
			}
		}()
	}

	// Storage
	storage, err := di.NewStorage(ctx, cfg, rdb)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := storage.Close(cctx); err != nil {
			slog.Error("failed to close storage", "error", err)
		}
	}()

	// Usecase
	market := di.NewMarket(cfg.Market)
	ingestUC := usecase.NewIngestUsecase(market, storage.Dataset, cfg.Ingest.MaxParallel)
	loadUC := usecase.NewLoadJobUsecase(storage.Jobs, ingestUC)
	statusUC := usecase.NewStatusUsecase(storage.Jobs)
	klinesUC := usecase.NewKlinesUsecase(storage.Dataset)

	// Handler / ルータ生成
	h := handler.NewHistoricalDataHandler(loadUC, statusUC, klinesUC)
	r := router.NewRouter(h, healthhandler.NewHealth(storage.Ping))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Ingest.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	// 実行中のジョブは Error として確定させてから終了する
	if err := loadUC.Shutdown(sctx); err != nil {
		slog.Warn("running jobs were cancelled", "error", err)
	}
	return nil
}
