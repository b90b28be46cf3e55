package storage

import (
	"context"

	"ai-hiring-go/internal/storage/models"
)

func (m *MySQL) CreateJob(ctx context.Context, job *models.Job) error {
	return translateError(m.db.WithContext(ctx).Create(job).Error)
}

func (m *MySQL) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := m.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return nil, translateError(err)
	}
	return &job, nil
}

// ListJobs status 为空时返回全部岗位
func (m *MySQL) ListJobs(ctx context.Context, status string) ([]models.Job, error) {
	var jobs []models.Job
	q := m.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, translateError(err)
	}
	return jobs, nil
}

// UpdateJob 只更新标题、描述、状态
func (m *MySQL) UpdateJob(ctx context.Context, job *models.Job) error {
	// MySQL 值未变化时 RowsAffected 为 0，先确认存在
	if _, err := m.GetJob(ctx, job.JobID); err != nil {
		return err
	}
	return translateError(m.db.WithContext(ctx).Model(&models.Job{}).Where("job_id = ?", job.JobID).
		Updates(map[string]interface{}{
			"title":       job.Title,
			"description": job.Description,
			"status":      job.Status,
		}).Error)
}

func (m *MySQL) DeleteJob(ctx context.Context, jobID string) error {
	res := m.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&models.Job{})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
