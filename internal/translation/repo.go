package translation

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/lingodoc/platform/internal/models"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) GetJobForUser(ctx context.Context, id string, userID uint64) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&j).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) ListJobs(ctx context.Context, userID uint64, status JobStatus, limit, offset int) ([]Job, int64, error) {
	q := r.db.WithContext(ctx).Model(&Job{}).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []Job
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&jobs).Error; err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// MarkProcessing claims the job for a worker. The status guard lets a
// redelivered message resume a crashed `processing` job and lets the
// queue's retry deliveries reclaim a `failed` one, but keeps the worker
// off completed and cancelled jobs.
func (r *Repo) MarkProcessing(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", id, []JobStatus{JobPending, JobProcessing, JobFailed}).
		Update("status", JobProcessing)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repo) MarkCompleted(ctx context.Context, id, translatedPath string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobProcessing).
		Updates(map[string]any{
			"status":          JobCompleted,
			"translated_path": translatedPath,
			"completed_at":    now,
			"error":           nil,
		}).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", id, []JobStatus{JobPending, JobProcessing}).
		Updates(map[string]any{
			"status": JobFailed,
			"error":  errMsg,
		}).Error
}

// Cancel transitions pending→cancelled. The guard is checked against the
// persisted status, so a cancel racing a worker claim loses cleanly.
func (r *Repo) Cancel(ctx context.Context, id string, userID uint64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, JobPending).
		Update("status", JobCancelled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repo) ResetForRetry(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobFailed).
		Updates(map[string]any{
			"status": JobPending,
			"error":  nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repo) GetFileForUser(ctx context.Context, fileID, userID uint64) (*models.File, error) {
	var f models.File
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", fileID, userID).
		First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}
