// Package entity defines the domain models for the historical data feature.
package entity

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"kline_backfill/internal/feature/historicaldata/domain"
)

// JobStatus はジョブの状態を表します。
type JobStatus int

const (
	// StatusInProcessing is the initial state of every job.
	StatusInProcessing JobStatus = iota
	// StatusCompleted means every requested symbol was fetched and persisted.
	StatusCompleted
	// StatusError means at least one symbol failed.
	StatusError
)

var statusNames = map[JobStatus]string{
	StatusInProcessing: "InProcessing",
	StatusCompleted:    "Completed",
	StatusError:        "Error",
}

// String returns the display name used in status views.
func (s JobStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("JobStatus(%d)", int(s))
}

// IsTerminal reports whether no further transition can happen from s.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// ParseJobStatus converts a display name back to a JobStatus.
func ParseJobStatus(name string) (JobStatus, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown job status %q", name)
}

// CanTransition reports whether a job may move from one status to another.
// Only InProcessing -> Completed and InProcessing -> Error are allowed.
func CanTransition(from, to JobStatus) bool {
	return from == StatusInProcessing && to.IsTerminal()
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// IsValidSymbol reports whether s is an upper-case alphanumeric trading pair such as "BTCUSDT".
func IsValidSymbol(s string) bool {
	return symbolPattern.MatchString(s)
}

// Job は複数の銘柄の過去データ取得を追跡する単位です。
//
// RequestedEndDate は呼び出し元が指定した取得の上限で、CompletedAt はジョブが
// 終了状態に遷移した時刻です。
type Job struct {
	ID               string
	Pairs            []string
	Status           JobStatus
	StartDate        time.Time
	RequestedEndDate *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
}

// NewJob validates the request and builds a job in the InProcessing state.
// Every failing field is reported in the returned *domain.ValidationError.
// Duplicate pairs are collapsed, keeping the first occurrence.
func NewJob(pairs []string, startDate time.Time, endDate *time.Time, now time.Time) (*Job, error) {
	ve := &domain.ValidationError{}

	if len(pairs) == 0 {
		ve.Add("pairs", "at least one pair is required")
	}
	unique := make([]string, 0, len(pairs))
	seen := make(map[string]struct{}, len(pairs))
	for i, p := range pairs {
		if !IsValidSymbol(p) {
			ve.Add(fmt.Sprintf("pairs[%d]", i), "pair must contain only upper-case letters and digits")
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}

	if startDate.IsZero() {
		ve.Add("startDate", "start date is required")
	} else if endDate != nil && startDate.After(*endDate) {
		ve.Add("startDate", "start date must not be after end date")
	}

	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	var end *time.Time
	if endDate != nil {
		e := endDate.UTC()
		end = &e
	}
	return &Job{
		ID:               uuid.NewString(),
		Pairs:            unique,
		Status:           StatusInProcessing,
		StartDate:        startDate.UTC(),
		RequestedEndDate: end,
		CreatedAt:        now.UTC(),
	}, nil
}

// FetchWindow returns the [from, to) range to download. Without a requested
// end date the upper bound is the job creation time.
func (j *Job) FetchWindow() (time.Time, time.Time) {
	if j.RequestedEndDate != nil {
		return j.StartDate, *j.RequestedEndDate
	}
	return j.StartDate, j.CreatedAt
}

// Finish moves the job to a terminal status.
func (j *Job) Finish(status JobStatus, at time.Time) error {
	if !CanTransition(j.Status, status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, j.Status, status)
	}
	t := at.UTC()
	j.Status = status
	j.CompletedAt = &t
	return nil
}
