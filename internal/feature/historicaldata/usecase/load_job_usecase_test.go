package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kline_backfill/internal/feature/historicaldata/domain"
	"kline_backfill/internal/feature/historicaldata/domain/entity"
)

// mockIngester lets tests control when ingestion finishes.
type mockIngester struct {
	IngestAllFunc func(ctx context.Context, jobID string, pairs []string, from, to time.Time) []Outcome
}

func (m *mockIngester) IngestAll(ctx context.Context, jobID string, pairs []string, from, to time.Time) []Outcome {
	return m.IngestAllFunc(ctx, jobID, pairs, from, to)
}

func succeedAll(_ context.Context, _ string, pairs []string, _, _ time.Time) []Outcome {
	out := make([]Outcome, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, Outcome{Symbol: p, Records: 1})
	}
	return out
}

func TestLoadJobUsecase_LoadJob_Validation(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)

	tests := []struct {
		name  string
		input LoadJobInput
		field string
	}{
		{"empty pairs", LoadJobInput{Pairs: []string{}, StartDate: start}, "pairs"},
		{"bad symbol format", LoadJobInput{Pairs: []string{"btc-usd"}, StartDate: start}, "pairs[0]"},
		{"missing start date", LoadJobInput{Pairs: []string{"BTCUSDT"}}, "startDate"},
		{"start after end", LoadJobInput{Pairs: []string{"BTCUSDT"}, StartDate: start, EndDate: &before}, "startDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			jobs := newMockJobRepository()
			market := &mockMarketRepository{}
			uc := NewLoadJobUsecase(jobs, NewIngestUsecase(market, &mockDatasetRepository{}, 0))

			id, err := uc.LoadJob(context.Background(), tt.input)
			uc.Wait()

			assert.Empty(t, id)
			ve, ok := domain.AsValidationError(err)
			require.True(t, ok, "expected validation error, got %v", err)
			require.NotEmpty(t, ve.Fields)
			assert.Equal(t, tt.field, ve.Fields[0].Field)
			assert.Zero(t, jobs.count(), "no job record may be created")
			assert.Empty(t, market.Calls, "no network call may be made")
		})
	}
}

func TestLoadJobUsecase_LoadJob_InProcessingThenCompleted(t *testing.T) {
	t.Parallel()

	jobs := newMockJobRepository()
	release := make(chan struct{})
	ingest := &mockIngester{
		IngestAllFunc: func(ctx context.Context, jobID string, pairs []string, from, to time.Time) []Outcome {
			<-release
			return succeedAll(ctx, jobID, pairs, from, to)
		},
	}
	uc := NewLoadJobUsecase(jobs, ingest)
	status := NewStatusUsecase(jobs)
	ctx := context.Background()

	id, err := uc.LoadJob(ctx, LoadJobInput{Pairs: []string{"BTCUSDT", "ETHUSDT"}, StartDate: time.Now().Add(-24 * time.Hour)})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	view, err := status.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "InProcessing", view.Status)
	assert.Nil(t, view.EndDate)

	close(release)
	uc.Wait()

	view, err = status.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Completed", view.Status)
	require.NotNil(t, view.EndDate)

	again, err := status.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, view, again, "terminal state is stable")

	assert.Len(t, jobs.updatesFor(id), 1, "exactly one finalization write")
}

func TestLoadJobUsecase_LoadJob_OneFailingPairMarksJobError(t *testing.T) {
	t.Parallel()

	jobs := newMockJobRepository()
	market := &mockMarketRepository{
		FetchPageFunc: func(ctx context.Context, symbol string, from, to time.Time, limit int, interval time.Duration) ([]entity.Kline, error) {
			if symbol == "BADCOIN" {
				return nil, ErrMarketAPI
			}
			return hourlyKlines(from, 2), nil
		},
	}
	dataset := &mockDatasetRepository{}
	uc := NewLoadJobUsecase(jobs, NewIngestUsecase(market, dataset, 0))

	id, err := uc.LoadJob(context.Background(), LoadJobInput{
		Pairs:     []string{"BTCUSDT", "BADCOIN"},
		StartDate: time.Now().Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	uc.Wait()

	updates := jobs.updatesFor(id)
	require.Len(t, updates, 1)
	assert.Equal(t, entity.StatusError, updates[0].Status)
	assert.NotNil(t, updates[0].CompletedAt)
	assert.Len(t, dataset.appendCalls("BTCUSDT"), 1, "healthy pair is still persisted")
}

func TestLoadJobUsecase_LoadJob_UsesRequestedWindow(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	var gotFrom, gotTo time.Time
	ingest := &mockIngester{
		IngestAllFunc: func(ctx context.Context, jobID string, pairs []string, from, to time.Time) []Outcome {
			gotFrom, gotTo = from, to
			return succeedAll(ctx, jobID, pairs, from, to)
		},
	}
	uc := NewLoadJobUsecase(newMockJobRepository(), ingest)

	_, err := uc.LoadJob(context.Background(), LoadJobInput{Pairs: []string{"BTCUSDT"}, StartDate: start, EndDate: &end})
	require.NoError(t, err)
	uc.Wait()

	assert.Equal(t, start, gotFrom)
	assert.Equal(t, end, gotTo)
}

func TestLoadJobUsecase_LoadJob_CreateFailure(t *testing.T) {
	t.Parallel()

	jobs := newMockJobRepository()
	jobs.createErr = ErrDB
	called := false
	ingest := &mockIngester{
		IngestAllFunc: func(ctx context.Context, jobID string, pairs []string, from, to time.Time) []Outcome {
			called = true
			return nil
		},
	}
	uc := NewLoadJobUsecase(jobs, ingest)

	id, err := uc.LoadJob(context.Background(), LoadJobInput{Pairs: []string{"BTCUSDT"}, StartDate: time.Now()})
	uc.Wait()

	assert.Empty(t, id)
	assert.True(t, errors.Is(err, domain.ErrStorage))
	assert.True(t, errors.Is(err, ErrDB))
	assert.False(t, called, "ingestion must not start without a stored job")
}

func TestLoadJobUsecase_LoadJob_StatusWriteFailureIsLogged(t *testing.T) {
	t.Parallel()

	jobs := newMockJobRepository()
	jobs.updateErr = ErrDB
	uc := NewLoadJobUsecase(jobs, &mockIngester{IngestAllFunc: succeedAll})

	id, err := uc.LoadJob(context.Background(), LoadJobInput{Pairs: []string{"BTCUSDT"}, StartDate: time.Now()})
	require.NoError(t, err)
	uc.Wait()

	assert.Len(t, jobs.updatesFor(id), 1)
	job, err := jobs.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProcessing, job.Status)
}

func TestLoadJobUsecase_Shutdown(t *testing.T) {
	t.Parallel()

	jobs := newMockJobRepository()
	ingest := &mockIngester{
		IngestAllFunc: func(ctx context.Context, jobID string, pairs []string, from, to time.Time) []Outcome {
			<-ctx.Done()
			return []Outcome{{Symbol: pairs[0], Err: ctx.Err()}}
		},
	}
	uc := NewLoadJobUsecase(jobs, ingest)

	id, err := uc.LoadJob(context.Background(), LoadJobInput{Pairs: []string{"BTCUSDT"}, StartDate: time.Now()})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = uc.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	updates := jobs.updatesFor(id)
	require.Len(t, updates, 1)
	assert.Equal(t, entity.StatusError, updates[0].Status, "cancelled job finalizes as Error")

	_, err = uc.LoadJob(context.Background(), LoadJobInput{Pairs: []string{"BTCUSDT"}, StartDate: time.Now()})
	assert.ErrorIs(t, err, ErrShuttingDown)
}
