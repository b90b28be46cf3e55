// Package candidates 招聘方视角的候选人查询、状态流转和通知
package candidates

import (
	"context"
	"errors"
	"strings"
	"time"

	"ai-hiring-go/internal/apperr"
	"ai-hiring-go/internal/evaluation"
	"ai-hiring-go/internal/logger"
	"ai-hiring-go/internal/notify"
	"ai-hiring-go/internal/storage"
	"ai-hiring-go/internal/storage/models"
)

const defaultJobTitle = "Position"

// Store 候选人相关的查询和写入
type Store interface {
	GetCandidate(ctx context.Context, candidateID string) (*models.Candidate, error)
	ListCandidates(ctx context.Context, f storage.CandidateFilter) ([]models.Candidate, error)
	UpdateCandidateStatus(ctx context.Context, candidateID, status string, at time.Time) error
	ListCandidateDocuments(ctx context.Context, candidateID string) ([]models.CandidateDocument, error)
	LatestCandidateDocument(ctx context.Context, candidateID string) (*models.CandidateDocument, error)
	GetAIEvaluation(ctx context.Context, candidateID string) (*models.AIEvaluation, error)
	UpsertAIEvaluation(ctx context.Context, e *models.AIEvaluation) error
	LatestInterviewSession(ctx context.Context, candidateID string) (*models.InterviewSession, error)
	GetInterviewEvaluation(ctx context.Context, sessionID string) (*models.AIInterviewEvaluation, error)
}

// Jobs 由 jobs.Service 实现
type Jobs interface {
	Get(ctx context.Context, jobID string) (*models.Job, error)
	List(ctx context.Context) ([]models.Job, error)
}

// Presigner 生成下载地址，由 storage.MinIO 实现
type Presigner interface {
	PresignedURL(ctx context.Context, ref storage.ObjectRef, expiry time.Duration) (string, error)
}

// Interviews 由 interview.Service 实现
type Interviews interface {
	CreateOrResume(ctx context.Context, candidateID, jobID string) (*models.InterviewSession, error)
}

// Notifier 由 notify.Notifier 实现
type Notifier interface {
	InterviewURL(accessToken string) string
	SendApproval(ctx context.Context, email, jobTitle, message, accessToken string) error
	SendRejection(ctx context.Context, email, jobTitle, message string) error
	SendOffer(ctx context.Context, email, jobTitle, message string) error
}

// Requeuer 由 evaluation.Dispatcher 实现
type Requeuer interface {
	Requeue(ctx context.Context, store evaluation.RequeueStore, candidateID string) error
}

// Summary 列表项
type Summary struct {
	models.Candidate
	JobTitle string `json:"job_title"`
}

// DocumentView 简历及其临时下载地址
type DocumentView struct {
	models.CandidateDocument
	URL string `json:"url,omitempty"`
}

// InterviewView 面试会话及媒体下载地址
type InterviewView struct {
	models.InterviewSession
	VideoDownloadURL      string `json:"video_download_url,omitempty"`
	TranscriptDownloadURL string `json:"transcript_download_url,omitempty"`
}

// Detail 候选人详情
type Detail struct {
	models.Candidate
	Job             *models.Job                   `json:"job"`
	Documents       []DocumentView                `json:"documents"`
	Evaluation      *models.AIEvaluation          `json:"evaluation"`
	Interview       *InterviewView                `json:"interview"`
	InterviewReport *models.AIInterviewEvaluation `json:"ai_interview_report"`
}

// StatusResult 状态更新结果
type StatusResult struct {
	Message       string `json:"message"`
	InterviewLink string `json:"interview_link"`
}

// Config 媒体所在的桶
type Config struct {
	MediaBucket       string
	TranscriptsBucket string
}

// Service 候选人服务
type Service struct {
	store      Store
	jobs       Jobs
	presigner  Presigner
	interviews Interviews
	notifier   Notifier
	requeuer   Requeuer
	cfg        Config
	now        func() time.Time
}

// Deps 构造 Service 需要的协作者，presigner 和 notifier 可以为 nil
type Deps struct {
	Store      Store
	Jobs       Jobs
	Presigner  Presigner
	Interviews Interviews
	Notifier   Notifier
	Requeuer   Requeuer
}

func NewService(deps Deps, cfg Config) *Service {
	return &Service{
		store:      deps.Store,
		jobs:       deps.Jobs,
		presigner:  deps.Presigner,
		interviews: deps.Interviews,
		notifier:   deps.Notifier,
		requeuer:   deps.Requeuer,
		cfg:        cfg,
		now:        time.Now,
	}
}

// List 按创建时间倒序，附带岗位标题
func (s *Service) List(ctx context.Context, f storage.CandidateFilter) ([]Summary, error) {
	const op = "candidates.List"
	if f.Status != "" {
		f.Status = strings.ToUpper(strings.TrimSpace(f.Status))
		if !validStatus(f.Status) {
			return nil, apperr.Validation(op, "Invalid status")
		}
	}
	cands, err := s.store.ListCandidates(ctx, f)
	if err != nil {
		return nil, apperr.Dependency(op, "Failed to fetch candidates", err)
	}

	titles := map[string]string{}
	if jobs, err := s.jobs.List(ctx); err != nil {
		apperr.Warn(ctx, "candidates.JobTitles", err)
	} else {
		for _, j := range jobs {
			titles[j.JobID] = j.Title
		}
	}

	out := make([]Summary, 0, len(cands))
	for _, c := range cands {
		out = append(out, Summary{Candidate: c, JobTitle: titles[c.JobID]})
	}
	return out, nil
}

// Get 汇总候选人、简历、评估、面试和面试报告。除候选人本身外，其余部分读取失败只记日志
func (s *Service) Get(ctx context.Context, candidateID string) (*Detail, error) {
	const op = "candidates.Get"
	cand, err := s.store.GetCandidate(ctx, candidateID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound(op, "Candidate not found")
	}
	if err != nil {
		return nil, apperr.Dependency(op, "", err)
	}

	d := &Detail{Candidate: *cand, Documents: []DocumentView{}}

	if job, err := s.jobs.Get(ctx, cand.JobID); err == nil {
		d.Job = job
	} else if !apperr.Is(err, apperr.KindNotFound) {
		apperr.Warn(ctx, "candidates.Job", err)
	}

	docs, err := s.store.ListCandidateDocuments(ctx, candidateID)
	if err != nil {
		apperr.Warn(ctx, "candidates.Documents", err)
	}
	for _, doc := range docs {
		d.Documents = append(d.Documents, DocumentView{
			CandidateDocument: doc,
			URL:               s.presign(ctx, doc.StorageBucket, doc.StoragePath),
		})
	}

	if eval, err := s.store.GetAIEvaluation(ctx, candidateID); err == nil {
		d.Evaluation = eval
	} else if !errors.Is(err, storage.ErrNotFound) {
		apperr.Warn(ctx, "candidates.Evaluation", err)
	}

	session, err := s.store.LatestInterviewSession(ctx, candidateID)
	switch {
	case err == nil:
		d.Interview = &InterviewView{
			InterviewSession:      *session,
			VideoDownloadURL:      s.presign(ctx, s.cfg.MediaBucket, session.VideoURL),
			TranscriptDownloadURL: s.presign(ctx, s.cfg.TranscriptsBucket, session.TranscriptURL),
		}
		if report, err := s.store.GetInterviewEvaluation(ctx, session.SessionID); err == nil {
			d.InterviewReport = report
		} else if !errors.Is(err, storage.ErrNotFound) {
			apperr.Warn(ctx, "candidates.InterviewReport", err)
		}
	case !errors.Is(err, storage.ErrNotFound):
		apperr.Warn(ctx, "candidates.Interview", err)
	}
	return d, nil
}

func (s *Service) presign(ctx context.Context, bucket, objectPath string) string {
	if s.presigner == nil || bucket == "" || objectPath == "" {
		return ""
	}
	url, err := s.presigner.PresignedURL(ctx, storage.ObjectRef{Bucket: bucket, Path: objectPath}, 0)
	if err != nil {
		apperr.Warn(ctx, "candidates.Presign", err)
		return ""
	}
	return url
}

// UpdateStatus 更新状态后发送对应邮件；邮件和面试会话的失败不影响状态更新
func (s *Service) UpdateStatus(ctx context.Context, candidateID, status, message string) (*StatusResult, error) {
	const op = "candidates.UpdateStatus"
	status = strings.ToUpper(strings.TrimSpace(status))
	if !validStatus(status) {
		return nil, apperr.Validation(op, "Invalid status")
	}
	if err := s.store.UpdateCandidateStatus(ctx, candidateID, status, s.now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound(op, "Candidate not found")
		}
		return nil, apperr.Dependency(op, "Failed to update status", err)
	}
	log := logger.Ctx(ctx).With().Str("candidate_id", candidateID).Str("status", status).Logger()
	log.Info().Msg("候选人状态已更新")

	res := &StatusResult{Message: "Status updated to " + status}
	if status == models.CandidateStatusPending || s.notifier == nil {
		return res, nil
	}

	cand, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		log.Error().Err(err).Msg("读取候选人失败，未发送通知")
		res.Message = "Status updated to " + status + ", but email failed."
		return res, nil
	}
	jobTitle := defaultJobTitle
	if job, err := s.jobs.Get(ctx, cand.JobID); err == nil && job.Title != "" {
		jobTitle = job.Title
	}

	var sendErr error
	switch status {
	case models.CandidateStatusRejected:
		sendErr = s.notifier.SendRejection(ctx, cand.Email, jobTitle, message)
	case models.CandidateStatusApproved:
		if s.interviewCompleted(ctx, candidateID) {
			log.Info().Msg("面试已完成，发送录用通知")
			sendErr = s.notifier.SendOffer(ctx, cand.Email, jobTitle, message)
			break
		}
		session, err := s.interviews.CreateOrResume(ctx, candidateID, cand.JobID)
		if err != nil {
			log.Error().Err(err).Msg("创建面试会话失败，未发送面试邀请")
			return res, nil
		}
		accessToken := ""
		if session.AccessToken != nil {
			accessToken = *session.AccessToken
		}
		res.InterviewLink = s.notifier.InterviewURL(accessToken)
		sendErr = s.notifier.SendApproval(ctx, cand.Email, jobTitle, message, accessToken)
	}

	switch {
	case sendErr == nil:
		log.Info().Msg("状态通知已发送")
	case notify.IsSoftFailure(sendErr):
		log.Warn().Err(sendErr).Msg("[mailgun] 状态通知软失败")
	default:
		log.Error().Err(sendErr).Msg("状态通知发送失败")
	}
	return res, nil
}

func (s *Service) interviewCompleted(ctx context.Context, candidateID string) bool {
	session, err := s.store.LatestInterviewSession(ctx, candidateID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			apperr.Warn(ctx, "candidates.InterviewStatus", err)
		}
		return false
	}
	return session.Status == models.SessionStatusCompleted
}

// Requeue 手动重新投递评估任务
func (s *Service) Requeue(ctx context.Context, candidateID string) error {
	const op = "candidates.Requeue"
	if err := s.requeuer.Requeue(ctx, s.store, candidateID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound(op, "Candidate or resume not found")
		}
		return apperr.Dependency(op, "Failed to requeue evaluation", err)
	}
	logger.Ctx(ctx).Info().Str("candidate_id", candidateID).Msg("评估任务已重新排队")
	return nil
}

func validStatus(status string) bool {
	switch status {
	case models.CandidateStatusPending, models.CandidateStatusApproved, models.CandidateStatusRejected:
		return true
	}
	return false
}
