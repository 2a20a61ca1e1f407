// Package adapters はヒストリカルデータ機能のリレーショナルDB実装を提供します。
package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"kline_backfill/internal/feature/historicaldata/domain"
	"kline_backfill/internal/feature/historicaldata/domain/entity"
	"kline_backfill/internal/feature/historicaldata/usecase"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

type jobGorm struct {
	db *gorm.DB
}

var _ usecase.JobRepository = (*jobGorm)(nil)

// NewJobRepository returns a gorm-backed JobRepository.
func NewJobRepository(db *gorm.DB) *jobGorm {
	return &jobGorm{db: db}
}

// JobModel is the row layout of the jobs table.
type JobModel struct {
	ID               string                      `gorm:"primaryKey;size:36"`
	Pairs            datatypes.JSONSlice[string] `gorm:"not null"`
	Status           string                      `gorm:"size:16;not null;index"`
	StartDate        time.Time                   `gorm:"not null"`
	RequestedEndDate *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time `gorm:"not null"`
}

func (JobModel) TableName() string {
	return "jobs"
}

func toJobModel(j *entity.Job) JobModel {
	return JobModel{
		ID:               j.ID,
		Pairs:            datatypes.NewJSONSlice(j.Pairs),
		Status:           j.Status.String(),
		StartDate:        j.StartDate,
		RequestedEndDate: j.RequestedEndDate,
		CompletedAt:      j.CompletedAt,
		CreatedAt:        j.CreatedAt,
	}
}

func (m JobModel) toEntity() (*entity.Job, error) {
	status, err := entity.ParseJobStatus(m.Status)
	if err != nil {
		return nil, err
	}
	return &entity.Job{
		ID:               m.ID,
		Pairs:            []string(m.Pairs),
		Status:           status,
		StartDate:        m.StartDate.UTC(),
		RequestedEndDate: utcPtr(m.RequestedEndDate),
		CompletedAt:      utcPtr(m.CompletedAt),
		CreatedAt:        m.CreatedAt.UTC(),
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (r *jobGorm) Create(ctx context.Context, job *entity.Job) error {
	m := toJobModel(job)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrJobAlreadyExists
		}
		return err
	}
	return nil
}

func (r *jobGorm) FindByID(ctx context.Context, id string) (*entity.Job, error) {
	var m JobModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return m.toEntity()
}

// UpdateStatus only touches rows still InProcessing, so a terminal status is never overwritten.
func (r *jobGorm) UpdateStatus(ctx context.Context, id string, status entity.JobStatus, completedAt *time.Time) error {
	if !entity.CanTransition(entity.StatusInProcessing, status) {
		return fmt.Errorf("%w: -> %s", domain.ErrInvalidTransition, status)
	}

	res := r.db.WithContext(ctx).
		Model(&JobModel{}).
		Where("id = ? AND status = ?", id, entity.StatusInProcessing.String()).
		Updates(map[string]any{
			"status":       status.String(),
			"completed_at": completedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&JobModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrJobNotFound
	}
	return fmt.Errorf("%w: job %s is already terminal", domain.ErrInvalidTransition, id)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
