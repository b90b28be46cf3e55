// Package jobs 岗位目录
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-hiring-go/internal/apperr"
	"ai-hiring-go/internal/constants"
	"ai-hiring-go/internal/evaluator"
	"ai-hiring-go/internal/logger"
	"ai-hiring-go/internal/storage"
	"ai-hiring-go/internal/storage/models"

	"github.com/gofrs/uuid/v5"
)

// Store 岗位持久化
type Store interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, status string) ([]models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error
	DeleteJob(ctx context.Context, jobID string) error
}

// Cache 岗位上下文缓存，由 storage.Redis 实现
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Del(ctx context.Context, key string) error
}

// Input 创建和更新岗位的请求体
type Input struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// PublicJob 申请页展示的岗位
type PublicJob struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Service 岗位服务
type Service struct {
	store Store
	cache Cache
}

// NewService cache 可以为 nil
func NewService(store Store, cache Cache) *Service {
	return &Service{store: store, cache: cache}
}

func (in Input) validate(op string) error {
	if strings.TrimSpace(in.Title) == "" || in.Status == "" {
		return apperr.Validation(op, "Title and status are required")
	}
	if in.Status != models.JobStatusOpen && in.Status != models.JobStatusClosed {
		return apperr.Validation(op, "Status must be 'open' or 'closed'")
	}
	return nil
}

// Create 新建岗位
func (s *Service) Create(ctx context.Context, in Input) (*models.Job, error) {
	const op = "jobs.Create"
	if err := in.validate(op); err != nil {
		return nil, err
	}
	job := &models.Job{
		JobID:       uuid.Must(uuid.NewV7()).String(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Status:      in.Status,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, apperr.Dependency(op, "Failed to create job", err)
	}
	logger.Ctx(ctx).Info().Str("job_id", job.JobID).Msg("岗位已创建")
	return job, nil
}

// Get 按 ID 查询
func (s *Service) Get(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("jobs.Get", "Job not found")
	}
	if err != nil {
		return nil, apperr.Dependency("jobs.Get", "", err)
	}
	return job, nil
}

// List 全部岗位，最新的在前
func (s *Service) List(ctx context.Context) ([]models.Job, error) {
	jobs, err := s.store.ListJobs(ctx, "")
	if err != nil {
		return nil, apperr.Dependency("jobs.List", "Failed to fetch jobs", err)
	}
	return jobs, nil
}

// ListOpen 申请页可选的岗位
func (s *Service) ListOpen(ctx context.Context) ([]PublicJob, error) {
	jobs, err := s.store.ListJobs(ctx, models.JobStatusOpen)
	if err != nil {
		return nil, apperr.Dependency("jobs.ListOpen", "Failed to fetch jobs", err)
	}
	out := make([]PublicJob, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, PublicJob{ID: j.JobID, Title: j.Title, Description: j.Description})
	}
	return out, nil
}

// Update 覆盖标题、描述和状态
func (s *Service) Update(ctx context.Context, jobID string, in Input) (*models.Job, error) {
	const op = "jobs.Update"
	if err := in.validate(op); err != nil {
		return nil, err
	}
	job := &models.Job{
		JobID:       jobID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Status:      in.Status,
	}
	err := s.store.UpdateJob(ctx, job)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound(op, "Job not found")
	}
	if err != nil {
		return nil, apperr.Dependency(op, "Failed to update job", err)
	}
	s.invalidate(ctx, jobID)
	return s.Get(ctx, jobID)
}

// Delete 删除岗位
func (s *Service) Delete(ctx context.Context, jobID string) error {
	err := s.store.DeleteJob(ctx, jobID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("jobs.Delete", "Job not found")
	}
	if err != nil {
		return apperr.Dependency("jobs.Delete", "Failed to delete job", err)
	}
	s.invalidate(ctx, jobID)
	return nil
}

// Context 评分、出题和面试评分使用的岗位上下文。
// 岗位不存在时返回空上下文，由提示词使用默认岗位描述
func (s *Service) Context(ctx context.Context, jobID string) (evaluator.JobContext, error) {
	if jobID == "" {
		return evaluator.JobContext{}, nil
	}
	key := fmt.Sprintf(constants.KeyJobContext, jobID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var jc evaluator.JobContext
			if json.Unmarshal([]byte(raw), &jc) == nil {
				return jc, nil
			}
		} else if !errors.Is(err, storage.ErrCacheMiss) {
			logger.Ctx(ctx).Debug().Err(err).Str("job_id", jobID).Msg("读取岗位缓存失败")
		}
	}

	job, err := s.store.GetJob(ctx, jobID)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Ctx(ctx).Warn().Str("job_id", jobID).Msg("岗位不存在，使用默认上下文")
		return evaluator.JobContext{}, nil
	}
	if err != nil {
		return evaluator.JobContext{}, fmt.Errorf("查询岗位 %s 失败: %w", jobID, err)
	}

	jc := evaluator.JobContext{Title: job.Title, Description: job.Description}
	if s.cache != nil {
		if data, err := json.Marshal(jc); err == nil {
			if err := s.cache.Set(ctx, key, string(data), constants.JobContextTTL); err != nil {
				logger.Ctx(ctx).Debug().Err(err).Str("job_id", jobID).Msg("写入岗位缓存失败")
			}
		}
	}
	return jc, nil
}

func (s *Service) invalidate(ctx context.Context, jobID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, fmt.Sprintf(constants.KeyJobContext, jobID)); err != nil {
		apperr.Warn(ctx, "jobs.invalidate", err)
	}
}
