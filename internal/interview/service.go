// Package interview 面试会话状态机。
//
// 会话状态只前进：PENDING -> IN_PROGRESS -> COMPLETED。题库按岗位懒生成，
// 回答必须按题目顺序提交，进度由数据库中的 last_question_id 条件更新保证。
package interview

import (
	"context"
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
	"ai-hiring-go/internal/token"
	"ai-hiring-go/internal/tracing"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("ai-hiring-go/interview")

const (
	MsgSessionNotFound  = "Interview session not found"
	MsgInvalidLink      = "Invalid interview link"
	MsgAlreadyCompleted = "Interview session already completed"
	MsgOutOfOrder       = "question out of order"
)

// Store 会话与题库的持久化
type Store interface {
	CountInterviewQuestions(ctx context.Context, jobID string) (int64, error)
	CreateInterviewQuestions(ctx context.Context, questions []models.InterviewQuestion) error
	GetInterviewQuestion(ctx context.Context, questionID string) (*models.InterviewQuestion, error)
	NextInterviewQuestion(ctx context.Context, jobID string, afterOrder int) (*models.InterviewQuestion, error)

	FindOpenInterviewSession(ctx context.Context, candidateID, jobID string) (*models.InterviewSession, error)
	CreateInterviewSession(ctx context.Context, s *models.InterviewSession) error
	GetInterviewSession(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	GetInterviewSessionByAccessToken(ctx context.Context, accessToken string) (*models.InterviewSession, error)
	SetInterviewAccessToken(ctx context.Context, sessionID, accessToken string) error

	AppendInterviewResponse(ctx context.Context, resp *models.InterviewResponse, expectedLast *string) error
	CompleteInterviewSession(ctx context.Context, sessionID string, durationSeconds *int, at time.Time) error
	SetInterviewMedia(ctx context.Context, sessionID, videoURL, transcriptURL string) error
}

// Locker 题库生成锁，由 storage.Redis 实现
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error)
}

// JobContexts 由 jobs.Service 实现
type JobContexts interface {
	Context(ctx context.Context, jobID string) (evaluator.JobContext, error)
}

// QuestionGenerator 由 evaluator.QuestionGenerator 实现
type QuestionGenerator interface {
	Generate(ctx context.Context, job evaluator.JobContext) ([]string, error)
}

// Transcriber 由 agent.Transcriber 实现
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// ObjectStore 面试媒体写入
type ObjectStore interface {
	Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (*storage.PutResult, error)
}

// Grader 由 grading.Orchestrator 实现
type Grader interface {
	Grade(ctx context.Context, sessionID string) (*evaluator.InterviewGrade, error)
}

// Config 依赖之外的参数
type Config struct {
	MediaBucket       string
	TranscriptsBucket string
	LockTTL           time.Duration
	// LockWait 没拿到锁时等待其他实例生成题库的最长时间
	LockWait time.Duration
}

// Service 面试会话服务。locker、transcriber、objects、grader 可以为 nil
type Service struct {
	store       Store
	locker      Locker
	jobs        JobContexts
	generator   QuestionGenerator
	transcriber Transcriber
	objects     ObjectStore
	grader      Grader
	cfg         Config

	now      func() time.Time
	newID    func() string
	newToken func() (string, error)
}

// Deps 构造 Service 需要的协作者
type Deps struct {
	Store       Store
	Locker      Locker
	Jobs        JobContexts
	Generator   QuestionGenerator
	Transcriber Transcriber
	Objects     ObjectStore
	Grader      Grader
}

func NewService(deps Deps, cfg Config) *Service {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 10 * time.Second
	}
	return &Service{
		store:       deps.Store,
		locker:      deps.Locker,
		jobs:        deps.Jobs,
		generator:   deps.Generator,
		transcriber: deps.Transcriber,
		objects:     deps.Objects,
		grader:      deps.Grader,
		cfg:         cfg,
		now:         time.Now,
		newID:       func() string { return uuid.Must(uuid.NewV7()).String() },
		newToken:    token.Generate,
	}
}

// CreateOrResume 返回 (candidate, job) 下未完成的会话，没有则新建。
// 岗位题库不存在时先生成；生成失败只记日志，会话照常创建
func (s *Service) CreateOrResume(ctx context.Context, candidateID, jobID string) (*models.InterviewSession, error) {
	const op = "interview.CreateOrResume"
	candidateID = strings.TrimSpace(candidateID)
	jobID = strings.TrimSpace(jobID)
	if candidateID == "" || jobID == "" {
		return nil, apperr.Validation(op, "Missing IDs")
	}
	log := logger.Ctx(ctx).With().Str("candidate_id", candidateID).Str("job_id", jobID).Logger()

	if err := s.ensureQuestionBank(ctx, jobID); err != nil {
		log.Warn().Err(err).Msg("题库生成失败，会话仍然创建")
	}

	existing, err := s.store.FindOpenInterviewSession(ctx, candidateID, jobID)
	switch {
	case err == nil:
		if existing.AccessToken != nil && *existing.AccessToken != "" {
			return existing, nil
		}
		tok, err := s.newToken()
		if err != nil {
			return nil, apperr.Dependency(op, "", err)
		}
		if err := s.store.SetInterviewAccessToken(ctx, existing.SessionID, tok); err != nil {
			if !errors.Is(err, storage.ErrStaleState) {
				return nil, apperr.Dependency(op, "Failed to create session", err)
			}
			// 其他请求已补写，重新读取
			return s.getSession(ctx, op, existing.SessionID)
		}
		existing.AccessToken = &tok
		log.Info().Str("session_id", existing.SessionID).Msg("已为旧会话补写访问令牌")
		return existing, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, apperr.Dependency(op, "Failed to create session", err)
	}

	tok, err := s.newToken()
	if err != nil {
		return nil, apperr.Dependency(op, "", err)
	}
	session := &models.InterviewSession{
		SessionID:   s.newID(),
		CandidateID: candidateID,
		JobID:       jobID,
		Status:      models.SessionStatusPending,
		AccessToken: &tok,
	}
	if err := s.store.CreateInterviewSession(ctx, session); err != nil {
		return nil, apperr.Dependency(op, "Failed to create session", err)
	}
	log.Info().Str("session_id", session.SessionID).Msg("面试会话已创建")
	return session, nil
}

// ensureQuestionBank 题库为空时在分布式锁内生成；没拿到锁就等待其他实例写完
func (s *Service) ensureQuestionBank(ctx context.Context, jobID string) error {
	n, err := s.store.CountInterviewQuestions(ctx, jobID)
	if err != nil {
		return fmt.Errorf("统计题库失败: %w", err)
	}
	if n > 0 {
		return nil
	}
	if s.generator == nil {
		return errors.New("未配置出题模型")
	}

	if s.locker != nil {
		key := fmt.Sprintf(constants.KeyQuestionBankLock, jobID)
		lockValue, err := s.locker.AcquireLock(ctx, key, s.cfg.LockTTL)
		switch {
		case err != nil:
			// 锁不可用时直接生成，唯一索引保证最终只保留一份
			logger.Ctx(ctx).Warn().Err(err).Str("job_id", jobID).Msg("获取题库锁失败，直接生成")
		case lockValue == "":
			return s.waitForQuestionBank(ctx, jobID)
		default:
			defer func() {
				if _, err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, lockValue); err != nil {
					logger.Ctx(ctx).Warn().Err(err).Str("job_id", jobID).Msg("释放题库锁失败")
				}
			}()
			// 拿到锁后再确认一次
			if n, err := s.store.CountInterviewQuestions(ctx, jobID); err == nil && n > 0 {
				return nil
			}
		}
	}
	return s.generateQuestionBank(ctx, jobID)
}

func (s *Service) generateQuestionBank(ctx context.Context, jobID string) error {
	job, err := s.jobs.Context(ctx, jobID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(job.Title) == "" {
		return fmt.Errorf("岗位 %s 不存在，跳过出题", jobID)
	}
	texts, err := s.generator.Generate(ctx, job)
	if err != nil {
		return fmt.Errorf("生成面试题失败: %w", err)
	}
	questions := make([]models.InterviewQuestion, 0, len(texts))
	for i, text := range texts {
		questions = append(questions, models.InterviewQuestion{
			QuestionID:    s.newID(),
			JobID:         jobID,
			QuestionText:  text,
			QuestionOrder: i + 1,
		})
	}
	if err := s.store.CreateInterviewQuestions(ctx, questions); err != nil {
		return fmt.Errorf("保存面试题失败: %w", err)
	}
	logger.Ctx(ctx).Info().Str("job_id", jobID).Int("count", len(questions)).Msg("岗位题库已生成")
	return nil
}

func (s *Service) waitForQuestionBank(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LockWait)
	defer cancel()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("等待题库生成超时: %w", ctx.Err())
		case <-ticker.C:
			n, err := s.store.CountInterviewQuestions(ctx, jobID)
			if err == nil && n > 0 {
				return nil
			}
		}
	}
}

// NextQuestion 返回 order 严格大于 lastQuestionID 的第一题；lastQuestionID 未知时从头开始。
// 没有下一题时返回 nil
func (s *Service) NextQuestion(ctx context.Context, jobID, lastQuestionID string) (*models.InterviewQuestion, error) {
	const op = "interview.NextQuestion"
	if strings.TrimSpace(jobID) == "" {
		return nil, apperr.Validation(op, "job_id is required")
	}
	after := 0
	if lastQuestionID != "" {
		last, err := s.store.GetInterviewQuestion(ctx, lastQuestionID)
		switch {
		case err == nil && last.JobID == jobID:
			after = last.QuestionOrder
		case err == nil, errors.Is(err, storage.ErrNotFound):
			logger.Ctx(ctx).Warn().Str("job_id", jobID).Str("last_question_id", lastQuestionID).Msg("未知的上一题，从第一题开始")
		default:
			return nil, apperr.Dependency(op, "", err)
		}
	}
	q, err := s.store.NextInterviewQuestion(ctx, jobID, after)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Dependency(op, "", err)
	}
	return q, nil
}

// SessionQuestion 按会话记录的进度返回下一题
func (s *Service) SessionQuestion(ctx context.Context, sessionID string) (*models.InterviewQuestion, error) {
	session, err := s.getSession(ctx, "interview.SessionQuestion", sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusCompleted {
		return nil, nil
	}
	return s.NextQuestion(ctx, session.JobID, deref(session.LastQuestionID))
}

// Answer 一次回答；AnswerText 为空且带音频时由 Transcriber 转写
type Answer struct {
	SessionID      string
	QuestionID     string
	AnswerText     string
	AnswerVideoURL string
	Audio          []byte
	AudioFilename  string
}

// RecordResponse 追加回答并推进会话进度。只接受当前进度的下一题
func (s *Service) RecordResponse(ctx context.Context, a Answer) (resp *models.InterviewResponse, err error) {
	const op = "interview.RecordResponse"
	ctx, span := tracer.Start(ctx, "interview.RecordResponse")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", a.SessionID), attribute.String("question.id", a.QuestionID))
	defer func() {
		if err != nil {
			errType := tracing.ErrorTypeDB
			switch apperr.KindOf(err) {
			case apperr.KindValidation, apperr.KindNotFound:
				errType = tracing.ErrorTypeValidation
			case apperr.KindConflict:
				errType = tracing.ErrorTypeConflict
			}
			tracing.RecordError(span, err, errType)
			return
		}
		span.SetStatus(codes.Ok, "")
	}()

	if strings.TrimSpace(a.SessionID) == "" || strings.TrimSpace(a.QuestionID) == "" {
		return nil, apperr.Validation(op, "session_id and question_id are required")
	}
	if strings.TrimSpace(a.AnswerText) == "" && len(a.Audio) == 0 {
		return nil, apperr.Validation(op, "answer_text or audio is required")
	}

	session, err := s.getSession(ctx, op, a.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusCompleted {
		return nil, apperr.Conflict(op, MsgAlreadyCompleted)
	}
	expected, err := s.NextQuestion(ctx, session.JobID, deref(session.LastQuestionID))
	if err != nil {
		return nil, err
	}
	if expected == nil || expected.QuestionID != a.QuestionID {
		return nil, apperr.Conflict(op, MsgOutOfOrder)
	}

	resp = &models.InterviewResponse{
		SessionID:      a.SessionID,
		QuestionID:     a.QuestionID,
		AnswerText:     strings.TrimSpace(a.AnswerText),
		AnswerVideoURL: a.AnswerVideoURL,
	}
	if len(a.Audio) > 0 {
		if err := s.attachAudio(ctx, op, a, resp); err != nil {
			return nil, err
		}
	}

	if err := s.store.AppendInterviewResponse(ctx, resp, session.LastQuestionID); err != nil {
		if errors.Is(err, storage.ErrStaleState) {
			// 并发提交或会话刚被完成
			return nil, apperr.Conflict(op, MsgOutOfOrder)
		}
		return nil, apperr.Dependency(op, "Failed to save answer", err)
	}
	logger.Ctx(ctx).Info().Str("session_id", a.SessionID).Str("question_id", a.QuestionID).
		Int("question_order", expected.QuestionOrder).Msg("面试回答已保存")
	return resp, nil
}

// attachAudio 保存音频并在需要时转写
func (s *Service) attachAudio(ctx context.Context, op string, a Answer, resp *models.InterviewResponse) error {
	if s.objects != nil {
		path := MediaObjectPath(a.SessionID, a.QuestionID, s.newID(), a.AudioFilename, ".webm")
		put, err := s.objects.Put(ctx, s.cfg.MediaBucket, path, a.Audio, AudioContentType(a.AudioFilename))
		if err != nil {
			apperr.Warn(ctx, "interview.AudioUpload", err)
		} else {
			resp.AnswerAudioURL = put.Path
		}
	}
	if resp.AnswerText != "" {
		return nil
	}
	if s.transcriber == nil {
		return apperr.Validation(op, "answer_text is required")
	}
	filename := a.AudioFilename
	if filename == "" {
		filename = "answer.webm"
	}
	text, err := s.transcriber.Transcribe(ctx, a.Audio, filename)
	if err != nil {
		return apperr.Dependency(op, "Failed to save answer", err)
	}
	resp.AnswerText = strings.TrimSpace(text)
	return nil
}

// Completion 完成结果；评分失败不影响完成状态
type Completion struct {
	Session      *models.InterviewSession
	Grade        *evaluator.InterviewGrade
	GradingError string
}

// Complete 标记会话完成并触发评分。已完成的会话返回冲突
func (s *Service) Complete(ctx context.Context, sessionID string, durationSeconds *int) (*Completion, error) {
	const op = "interview.Complete"
	if strings.TrimSpace(sessionID) == "" {
		return nil, apperr.Validation(op, "session_id required")
	}
	session, err := s.getSession(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusCompleted {
		return nil, apperr.Conflict(op, MsgAlreadyCompleted)
	}

	at := s.now()
	if err := s.store.CompleteInterviewSession(ctx, sessionID, durationSeconds, at); err != nil {
		if errors.Is(err, storage.ErrStaleState) {
			return nil, apperr.Conflict(op, MsgAlreadyCompleted)
		}
		return nil, apperr.Dependency(op, "Failed to complete session", err)
	}
	session.Status = models.SessionStatusCompleted
	session.CompletedAt = &at
	session.DurationSeconds = durationSeconds
	logger.Ctx(ctx).Info().Str("session_id", sessionID).Msg("面试已完成")

	out := &Completion{Session: session}
	if s.grader == nil {
		return out, nil
	}
	grade, err := s.grader.Grade(ctx, sessionID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("session_id", sessionID).Msg("面试评分失败，会话保持已完成")
		out.GradingError = apperr.PublicMessage(err)
		return out, nil
	}
	out.Grade = grade
	return out, nil
}

// ValidateAccessToken 按访问令牌查找会话
func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (*models.InterviewSession, error) {
	const op = "interview.ValidateAccessToken"
	if strings.TrimSpace(accessToken) == "" {
		return nil, apperr.NotFound(op, MsgInvalidLink)
	}
	session, err := s.store.GetInterviewSessionByAccessToken(ctx, accessToken)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound(op, MsgInvalidLink)
	}
	if err != nil {
		return nil, apperr.Dependency(op, "", err)
	}
	return session, nil
}

func (s *Service) getSession(ctx context.Context, op, sessionID string) (*models.InterviewSession, error) {
	session, err := s.store.GetInterviewSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound(op, MsgSessionNotFound)
	}
	if err != nil {
		return nil, apperr.Dependency(op, "", err)
	}
	return session, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
