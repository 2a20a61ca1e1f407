// Command ingest runs a single backfill job to completion without the HTTP server.
//
//	ingest -pairs BTCUSDT,ETHUSDT -start 2024-01-01T00:00:00Z [-end 2024-02-01T00:00:00Z]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kline_backfill/internal/app/di"
	"kline_backfill/internal/feature/historicaldata/domain"
	"kline_backfill/internal/feature/historicaldata/usecase"
	"kline_backfill/internal/platform/config"
	"kline_backfill/internal/platform/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	pairs := fs.String("pairs", "", "comma separated trading pairs")
	start := fs.String("start", "", "RFC 3339 start of the window")
	end := fs.String("end", "", "RFC 3339 end of the window (default: now)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	in, err := parseInput(*pairs, *start, *end)
	if err != nil {
		return err
	}

	cfg, err := config.Load(os.Getenv("ENV_FILE"))
	if err != nil {
		return err
	}
	logger.Setup(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The status cache only helps the server, so Redis is not used here.
	storage, err := di.NewStorage(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = storage.Close(context.Background()) }()

	ingestUC := usecase.NewIngestUsecase(di.NewMarket(cfg.Market), storage.Dataset, cfg.Ingest.MaxParallel)
	loadUC := usecase.NewLoadJobUsecase(storage.Jobs, ingestUC)

	id, err := loadUC.LoadJob(ctx, in)
	if err != nil {
		if ve, ok := domain.AsValidationError(err); ok {
			return fmt.Errorf("invalid arguments: %w", ve)
		}
		return err
	}

	done := make(chan struct{})
	go func() {
		loadUC.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Ingest.ShutdownTimeout)
		defer cancel()
		_ = loadUC.Shutdown(sctx)
	}

	view, err := usecase.NewStatusUsecase(storage.Jobs).GetStatus(context.Background(), id)
	if err != nil {
		return err
	}
	slog.Info("ingest finished", "job", id, "status", view.Status)
	if view.Status != "Completed" {
		return fmt.Errorf("job %s finished with status %s", id, view.Status)
	}
	return nil
}

func parseInput(pairs, start, end string) (usecase.LoadJobInput, error) {
	var in usecase.LoadJobInput
	for _, p := range strings.Split(pairs, ",") {
		if p = strings.TrimSpace(p); p != "" {
			in.Pairs = append(in.Pairs, strings.ToUpper(p))
		}
	}
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return in, fmt.Errorf("-start: %w", err)
		}
		in.StartDate = t
	}
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return in, fmt.Errorf("-end: %w", err)
		}
		in.EndDate = &t
	}
	return in, nil
}
