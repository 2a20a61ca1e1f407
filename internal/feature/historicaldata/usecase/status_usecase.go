package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"kline_backfill/internal/feature/historicaldata/domain"
)

// StatusView はステータス照会で公開するジョブの射影です。
type StatusView struct {
	JobID   string
	Status  string
	EndDate *time.Time
}

// StatusUsecase provides job status lookups.
type StatusUsecase struct {
	jobs JobRepository
}

// NewStatusUsecase creates a new StatusUsecase with the given repository.
func NewStatusUsecase(jobs JobRepository) *StatusUsecase {
	return &StatusUsecase{jobs: jobs}
}

// GetStatus returns the status view of a job. An empty or malformed id yields
// a *domain.ValidationError; an unknown id yields domain.ErrJobNotFound.
func (u *StatusUsecase) GetStatus(ctx context.Context, jobID string) (StatusView, error) {
	jobID = strings.TrimSpace(jobID)
	ve := &domain.ValidationError{}
	var id uuid.UUID
	if jobID == "" {
		ve.Add("jobId", "job id is required")
	} else if parsed, err := uuid.Parse(jobID); err != nil {
		ve.Add("jobId", "job id must be a UUID")
	} else {
		id = parsed
	}
	if err := ve.OrNil(); err != nil {
		return StatusView{}, err
	}

	// Jobs are stored under the canonical lower-case form; uuid.Parse also accepts
	// upper case, braces and the urn:uuid: prefix.
	job, err := u.jobs.FindByID(ctx, id.String())
	if err != nil {
		return StatusView{}, err
	}

	return StatusView{
		JobID:   job.ID,
		Status:  job.Status.String(),
		EndDate: job.CompletedAt,
	}, nil
}
