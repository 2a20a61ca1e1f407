package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"kline_backfill/internal/feature/historicaldata/domain"
	"kline_backfill/internal/feature/historicaldata/domain/entity"
)

var (
	ErrMarketAPI = errors.New("market API error")
	ErrDB        = errors.New("database error")
)

type fetchCall struct {
	Symbol   string
	From, To time.Time
	Limit    int
	Interval time.Duration
}

// mockMarketRepository is a concurrency-safe mock of MarketRepository.
type mockMarketRepository struct {
	mu            sync.Mutex
	FetchPageFunc func(ctx context.Context, symbol string, from, to time.Time, limit int, interval time.Duration) ([]entity.Kline, error)
	Calls         []fetchCall
}

func (m *mockMarketRepository) FetchPage(ctx context.Context, symbol string, from, to time.Time, limit int, interval time.Duration) ([]entity.Kline, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, fetchCall{Symbol: symbol, From: from, To: to, Limit: limit, Interval: interval})
	m.mu.Unlock()
	if m.FetchPageFunc != nil {
		return m.FetchPageFunc(ctx, symbol, from, to, limit, interval)
	}
	return nil, errors.New("FetchPageFunc is not implemented")
}

func (m *mockMarketRepository) callsFor(symbol string) []fetchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []fetchCall
	for _, c := range m.Calls {
		if c.Symbol == symbol {
			out = append(out, c)
		}
	}
	return out
}

// mockDatasetRepository records every Append call.
type mockDatasetRepository struct {
	mu         sync.Mutex
	AppendFunc func(ctx context.Context, symbol string, klines []entity.Kline) error
	FindFunc   func(ctx context.Context, symbol string, from, to time.Time, limit int) ([]entity.Kline, error)
	Appended   map[string][][]entity.Kline
}

func (m *mockDatasetRepository) Append(ctx context.Context, symbol string, klines []entity.Kline) error {
	m.mu.Lock()
	if m.Appended == nil {
		m.Appended = make(map[string][][]entity.Kline)
	}
	m.Appended[symbol] = append(m.Appended[symbol], klines)
	m.mu.Unlock()
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, symbol, klines)
	}
	return nil
}

func (m *mockDatasetRepository) Find(ctx context.Context, symbol string, from, to time.Time, limit int) ([]entity.Kline, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, symbol, from, to, limit)
	}
	return nil, nil
}

func (m *mockDatasetRepository) appendCalls(symbol string) [][]entity.Kline {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Appended[symbol]
}

type statusUpdate struct {
	ID          string
	Status      entity.JobStatus
	CompletedAt *time.Time
}

// mockJobRepository is an in-memory JobRepository.
type mockJobRepository struct {
	mu        sync.Mutex
	jobs      map[string]entity.Job
	updates   []statusUpdate
	createErr error
	updateErr error
}

func newMockJobRepository() *mockJobRepository {
	return &mockJobRepository{jobs: make(map[string]entity.Job)}
}

func (m *mockJobRepository) Create(_ context.Context, job *entity.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockJobRepository) FindByID(_ context.Context, id string) (*entity.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &j, nil
}

func (m *mockJobRepository) UpdateStatus(_ context.Context, id string, status entity.JobStatus, completedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, statusUpdate{ID: id, Status: status, CompletedAt: completedAt})
	if m.updateErr != nil {
		return m.updateErr
	}
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	j.Status = status
	j.CompletedAt = completedAt
	m.jobs[id] = j
	return nil
}

func (m *mockJobRepository) updatesFor(id string) []statusUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []statusUpdate
	for _, u := range m.updates {
		if u.ID == id {
			out = append(out, u)
		}
	}
	return out
}

func (m *mockJobRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// hourlyKlines builds n consecutive one-hour candles starting at start.
func hourlyKlines(start time.Time, n int) []entity.Kline {
	out := make([]entity.Kline, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, entity.Kline{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     decimal.NewFromInt(100),
			High:     decimal.NewFromInt(110),
			Low:      decimal.NewFromInt(90),
			Close:    decimal.NewFromInt(105),
			Volume:   decimal.NewFromFloat(12.5),
		})
	}
	return out
}
