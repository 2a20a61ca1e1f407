package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kline_backfill/internal/feature/historicaldata/domain"
	"kline_backfill/internal/feature/historicaldata/domain/entity"
)

// finalizeTimeout bounds the single status write issued after ingestion, even
// when the orchestrator has already been cancelled.
const finalizeTimeout = 10 * time.Second

// ErrShuttingDown is returned by LoadJob after Shutdown has been called.
var ErrShuttingDown = errors.New("job orchestrator is shutting down")

// Ingester fans out per-symbol ingestion and reports one outcome per symbol.
type Ingester interface {
	IngestAll(ctx context.Context, jobID string, pairs []string, from, to time.Time) []Outcome
}

// LoadJobInput はロードリクエストの内容です。
type LoadJobInput struct {
	Pairs     []string
	StartDate time.Time
	EndDate   *time.Time
}

// LoadJobUsecase はジョブを検証・作成し、バックグラウンドで取り込みを実行して
// 最後に一度だけ終了状態を書き込みます。
type LoadJobUsecase struct {
	jobs   JobRepository
	ingest Ingester
	now    func() time.Time

	// root is cancelled by Shutdown; every background job runs under it.
	root   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewLoadJobUsecase は新しい LoadJobUsecase を作成します。
func NewLoadJobUsecase(jobs JobRepository, ingest Ingester) *LoadJobUsecase {
	root, cancel := context.WithCancel(context.Background())
	return &LoadJobUsecase{
		jobs:   jobs,
		ingest: ingest,
		now:    time.Now,
		root:   root,
		cancel: cancel,
	}
}

// LoadJob validates the request, persists a new InProcessing job and starts
// ingestion in the background. It returns the job id once the job record is
// stored. Invalid input yields a *domain.ValidationError and no job; a failed
// insert yields an error wrapping domain.ErrStorage and no id.
func (u *LoadJobUsecase) LoadJob(ctx context.Context, in LoadJobInput) (string, error) {
	job, err := entity.NewJob(in.Pairs, in.StartDate, in.EndDate, u.now())
	if err != nil {
		return "", err
	}

	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return "", ErrShuttingDown
	}
	u.wg.Add(1)
	u.mu.Unlock()

	if err := u.jobs.Create(ctx, job); err != nil {
		u.wg.Done()
		slog.Error("failed to create job", "job", job.ID, "error", err)
		return "", fmt.Errorf("%w: create job: %w", domain.ErrStorage, err)
	}
	slog.Info("job created", "job", job.ID, "pairs", job.Pairs, "start", job.StartDate)

	go func() {
		defer u.wg.Done()
		u.run(u.root, job)
	}()

	return job.ID, nil
}

// run ingests every pair, waits for all of them and writes the terminal status once.
func (u *LoadJobUsecase) run(ctx context.Context, job *entity.Job) {
	from, to := job.FetchWindow()
	outcomes := u.ingest.IngestAll(ctx, job.ID, job.Pairs, from, to)

	status := FinalStatus(outcomes)
	if err := job.Finish(status, u.now()); err != nil {
		slog.Error("failed to finish job", "job", job.ID, "error", err)
		return
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := u.jobs.UpdateStatus(wctx, job.ID, job.Status, job.CompletedAt); err != nil {
		slog.Error("failed to update job status", "job", job.ID, "status", job.Status.String(), "error", err)
		return
	}

	total := 0
	for _, o := range outcomes {
		total += o.Records
	}
	slog.Info("job finished", "job", job.ID, "status", job.Status.String(), "records", total)
}

// Wait blocks until every background job has written its final status.
func (u *LoadJobUsecase) Wait() {
	u.wg.Wait()
}

// Shutdown stops accepting jobs and waits for running ones. When ctx expires
// first, in-flight fetches are cancelled; those jobs still finalize as Error.
func (u *LoadJobUsecase) Shutdown(ctx context.Context) error {
	u.mu.Lock()
	u.closed = true
	u.mu.Unlock()

	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		u.cancel()
		return nil
	case <-ctx.Done():
		u.cancel()
		<-done
		return ctx.Err()
	}
}
