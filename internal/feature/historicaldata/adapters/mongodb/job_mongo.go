// Package mongodb は MongoDB をバックエンドとするジョブ・データセットのリポジトリを提供します。
// ジョブは1つのコレクションに、ローソク足は銘柄名のコレクションに保存されます。
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"kline_backfill/internal/feature/historicaldata/domain"
	"kline_backfill/internal/feature/historicaldata/domain/entity"
	"kline_backfill/internal/feature/historicaldata/usecase"
)

// DefaultJobCollection is used when no collection name is configured.
const DefaultJobCollection = "jobs"

// JobMongo implements usecase.JobRepository on a MongoDB collection.
type JobMongo struct {
	coll *mongo.Collection
}

var _ usecase.JobRepository = (*JobMongo)(nil)

// NewJobMongo creates a JobMongo on the given database.
func NewJobMongo(db *mongo.Database, collection string) *JobMongo {
	if collection == "" {
		collection = DefaultJobCollection
	}
	return &JobMongo{coll: db.Collection(collection)}
}

type jobDocument struct {
	ID               string     `bson:"_id"`
	Pairs            []string   `bson:"pairs"`
	Status           string     `bson:"status"`
	StartDate        time.Time  `bson:"startDate"`
	RequestedEndDate *time.Time `bson:"requestedEndDate,omitempty"`
	CompletedAt      *time.Time `bson:"endDate,omitempty"`
	CreatedAt        time.Time  `bson:"createdAt"`
}

func toJobDocument(j *entity.Job) jobDocument {
	return jobDocument{
		ID:               j.ID,
		Pairs:            j.Pairs,
		Status:           j.Status.String(),
		StartDate:        j.StartDate,
		RequestedEndDate: j.RequestedEndDate,
		CompletedAt:      j.CompletedAt,
		CreatedAt:        j.CreatedAt,
	}
}

func (d jobDocument) toEntity() (*entity.Job, error) {
	status, err := entity.ParseJobStatus(d.Status)
	if err != nil {
		return nil, err
	}
	job := &entity.Job{
		ID:        d.ID,
		Pairs:     d.Pairs,
		Status:    status,
		StartDate: d.StartDate.UTC(),
		CreatedAt: d.CreatedAt.UTC(),
	}
	if d.RequestedEndDate != nil {
		t := d.RequestedEndDate.UTC()
		job.RequestedEndDate = &t
	}
	if d.CompletedAt != nil {
		t := d.CompletedAt.UTC()
		job.CompletedAt = &t
	}
	return job, nil
}

func (r *JobMongo) Create(ctx context.Context, job *entity.Job) error {
	if _, err := r.coll.InsertOne(ctx, toJobDocument(job)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrJobAlreadyExists
		}
		return err
	}
	return nil
}

func (r *JobMongo) FindByID(ctx context.Context, id string) (*entity.Job, error) {
	var doc jobDocument
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return doc.toEntity()
}

// UpdateStatus matches only InProcessing documents, so terminal jobs are never rewritten.
func (r *JobMongo) UpdateStatus(ctx context.Context, id string, status entity.JobStatus, completedAt *time.Time) error {
	if !entity.CanTransition(entity.StatusInProcessing, status) {
		return fmt.Errorf("%w: -> %s", domain.ErrInvalidTransition, status)
	}

	res, err := r.coll.UpdateOne(ctx, statusFilter(id), statusUpdate(status, completedAt))
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrJobNotFound
	}
	return fmt.Errorf("%w: job %s is already terminal", domain.ErrInvalidTransition, id)
}

func statusFilter(id string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "status", Value: entity.StatusInProcessing.String()},
	}
}

func statusUpdate(status entity.JobStatus, completedAt *time.Time) bson.D {
	set := bson.D{{Key: "status", Value: status.String()}}
	if completedAt != nil {
		set = append(set, bson.E{Key: "endDate", Value: completedAt.UTC()})
	}
	return bson.D{{Key: "$set", Value: set}}
}
