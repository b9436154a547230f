package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ifuryst/herald/internal/models"
	"github.com/ifuryst/herald/pkg/errors"
	"github.com/ifuryst/herald/pkg/util"
)

// JobStore owns every write to publish_jobs. Status transitions out of
// queued/error go through compare-and-swap updates.
type JobStore struct {
	db *gorm.DB
}

func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) WithTx(tx *gorm.DB) *JobStore {
	return &JobStore{db: tx}
}

// JobSuccess carries what a successful publish stores on the job.
type JobSuccess struct {
	ExternalID    string
	PublishedURL  string
	SocialContent string
	PublishedAt   time.Time
}

func (s *JobStore) CreateBatch(ctx context.Context, jobs []models.PublishJob) error {
	if len(jobs) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&jobs).Error; err != nil {
		return errors.Storage(err, "create publish jobs")
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*models.PublishJob, error) {
	var job models.PublishJob
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("publish job %s not found", id)
	}
	if err != nil {
		return nil, errors.Storage(err, "load publish job")
	}
	return &job, nil
}

// ListDue returns queued jobs whose publish time has passed, oldest first.
func (s *JobStore) ListDue(ctx context.Context, now time.Time) ([]models.PublishJob, error) {
	var jobs []models.PublishJob
	if err := s.db.WithContext(ctx).
		Where("status = ? AND publish_at <= ?", models.JobQueued, now.UTC()).
		Order("publish_at").
		Find(&jobs).Error; err != nil {
		return nil, errors.Storage(err, "list due jobs")
	}
	return jobs, nil
}

// ListByContent returns the jobs of one content item, newest first.
func (s *JobStore) ListByContent(ctx context.Context, ref models.ContentRef) ([]models.PublishJob, error) {
	var jobs []models.PublishJob
	if err := s.db.WithContext(ctx).
		Where(ref.Column()+" = ?", ref.ID).
		Order("created_at desc, publish_at desc").
		Find(&jobs).Error; err != nil {
		return nil, errors.Storage(err, "list jobs by content")
	}
	return jobs, nil
}

// Claim moves the job to processing if its status is one of allowed. It
// reports false when another invocation got there first.
func (s *JobStore) Claim(ctx context.Context, id string, allowed ...models.JobStatus) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.PublishJob{}).
		Where("id = ? AND status IN ?", id, allowed).
		Updates(map[string]interface{}{
			"status":     models.JobProcessing,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, errors.Storage(res.Error, "claim publish job")
	}
	return res.RowsAffected == 1, nil
}

func (s *JobStore) MarkPublished(ctx context.Context, id string, out JobSuccess) error {
	at := out.PublishedAt.UTC()
	err := s.db.WithContext(ctx).Model(&models.PublishJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":              models.JobPublished,
			"published_at_actual": at,
			"external_id":         util.Ptr(out.ExternalID),
			"published_url":       util.Ptr(out.PublishedURL),
			"social_content":      util.Ptr(out.SocialContent),
			"error_message":       nil,
			"updated_at":          time.Now().UTC(),
		}).Error
	if err != nil {
		return errors.Storage(err, "record published job")
	}
	return nil
}

// MarkFailed records an error outcome. External fields stay untouched.
func (s *JobStore) MarkFailed(ctx context.Context, id string, message string) error {
	err := s.db.WithContext(ctx).Model(&models.PublishJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.JobError,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"error_message": util.TruncateError(message),
			"updated_at":    time.Now().UTC(),
		}).Error
	if err != nil {
		return errors.Storage(err, "record failed job")
	}
	return nil
}

// UpdatePublishAt moves a queued or error job.
func (s *JobStore) UpdatePublishAt(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.PublishJob{}).
		Where("id = ? AND status IN ?", id, []models.JobStatus{models.JobQueued, models.JobError}).
		Updates(map[string]interface{}{
			"publish_at": at.UTC(),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return errors.Storage(res.Error, "move publish job")
	}
	if res.RowsAffected == 0 {
		return errors.Mark(errors.Newf("job %s is no longer movable", id), errors.ErrStaleData)
	}
	return nil
}

// Cancel moves a queued or error job to cancelled.
func (s *JobStore) Cancel(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.PublishJob{}).
		Where("id = ? AND status IN ?", id, []models.JobStatus{models.JobQueued, models.JobError}).
		Updates(map[string]interface{}{
			"status":     models.JobCancelled,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return errors.Storage(res.Error, "cancel publish job")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return errors.Validation("job %s is %s and cannot be cancelled", id, job.Status)
}
