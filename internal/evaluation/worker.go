package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"ai-hiring-go/internal/constants"
	"ai-hiring-go/internal/evaluator"
	"ai-hiring-go/internal/logger"
	"ai-hiring-go/internal/storage"
	"ai-hiring-go/internal/storage/models"
	"ai-hiring-go/internal/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("ai-hiring-go/evaluation")

// Store worker 读写的数据
type Store interface {
	GetCandidate(ctx context.Context, candidateID string) (*models.Candidate, error)
	UpsertAIEvaluation(ctx context.Context, e *models.AIEvaluation) error
}

// Fetcher 读取简历字节
type Fetcher interface {
	Fetch(ctx context.Context, msg *storage.EvaluationJobMessage) ([]byte, error)
}

// TextExtractor 简历文本提取，由 parser.ResumeTextExtractor 实现
type TextExtractor interface {
	ExtractClean(ctx context.Context, data []byte, filename string) (string, error)
}

// JobContexts 岗位上下文，由 jobs.Service 实现
type JobContexts interface {
	Context(ctx context.Context, jobID string) (evaluator.JobContext, error)
}

// Scorer 简历评分，由 evaluator.ResumeScorer 实现
type Scorer interface {
	Score(ctx context.Context, job evaluator.JobContext, resumeText string) (*evaluator.ResumeScore, error)
}

// Worker 执行简历评估任务。以 candidate_id 为键覆盖写入，重复执行安全
type Worker struct {
	store     Store
	fetcher   Fetcher
	extractor TextExtractor
	jobs      JobContexts
	scorer    Scorer
	timeout   time.Duration
}

// NewWorker timeout 是单个任务的最长执行时间
func NewWorker(store Store, fetcher Fetcher, extractor TextExtractor, jobs JobContexts, scorer Scorer, timeout time.Duration) *Worker {
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	return &Worker{
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		jobs:      jobs,
		scorer:    scorer,
		timeout:   timeout,
	}
}

// HandleDelivery 适配 storage.DeliveryHandler
func (w *Worker) HandleDelivery(ctx context.Context, body []byte) error {
	var msg storage.EvaluationJobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// 无法解析的消息重试也不会成功
		logger.Ctx(ctx).Error().Err(err).Int("bytes", len(body)).Msg("评估消息格式错误，丢弃")
		return nil
	}
	timeout := w.timeout
	if msg.TimeoutSeconds > 0 {
		timeout = time.Duration(msg.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return w.Process(ctx, &msg)
}

// Process 评估一份简历。任何失败都会把评估记录写成 FAILED 后再返回错误，交给队列重试或进入死信
func (w *Worker) Process(ctx context.Context, msg *storage.EvaluationJobMessage) (err error) {
	ctx, span := tracer.Start(ctx, "evaluation.Process")
	defer span.End()
	span.SetAttributes(attribute.String("candidate.id", msg.CandidateID))

	log := logger.Ctx(ctx).With().Str("candidate_id", msg.CandidateID).Logger()
	start := time.Now()
	log.Info().Str("job_id", msg.JobID).Msg("开始评估简历")

	defer func() {
		if err == nil {
			span.SetStatus(codes.Ok, "")
			return
		}
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("简历评估失败")
		// 原上下文可能已超时，失败记录用独立的短超时写入
		markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if markErr := w.store.UpsertAIEvaluation(markCtx, FailedEvaluation(msg.CandidateID, err)); markErr != nil {
			log.Error().Err(markErr).Msg("写入失败状态失败")
		}
	}()
	// 先于上面的 defer 执行：panic 转成错误，照常写 FAILED 并交给队列 nack
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluation panicked: %v", r)
			log.Error().Str("stack", string(debug.Stack())).Msg("简历评估发生 panic")
		}
	}()

	jobID := msg.JobID
	if jobID == "" {
		cand, cerr := w.store.GetCandidate(ctx, msg.CandidateID)
		if cerr != nil {
			return fmt.Errorf("could not find job_id for candidate %s: %w", msg.CandidateID, cerr)
		}
		jobID = cand.JobID
		log.Warn().Str("job_id", jobID).Msg("消息缺少 job_id，已从候选人记录补全")
	}
	span.SetAttributes(attribute.String("job.id", jobID))

	text, err := w.resumeText(ctx, msg)
	if err != nil {
		return err
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < constants.MinResumeTextLength {
		return fmt.Errorf("resume text too short (%d characters)", utf8.RuneCountInString(strings.TrimSpace(text)))
	}

	job, err := w.jobs.Context(ctx, jobID)
	if err != nil {
		return err
	}

	score, err := w.scorer.Score(ctx, job, text)
	if err != nil {
		return fmt.Errorf("ai evaluation failed: %w", err)
	}

	eval := &models.AIEvaluation{
		CandidateID:    msg.CandidateID,
		Score:          score.Score,
		Recommendation: score.Recommendation,
		MatchedSkills:  models.MustJSON(score.MatchedSkills),
		MissingSkills:  models.MustJSON(score.MissingSkills),
		Strengths:      models.MustJSON(score.Strengths),
		Weaknesses:     models.MustJSON(score.Weaknesses),
		Summary:        score.Summary,
		Status:         models.EvaluationStatusCompleted,
	}
	if err := w.store.UpsertAIEvaluation(ctx, eval); err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}

	span.SetAttributes(attribute.Int("evaluation.score", score.Score))
	log.Info().Int("score", score.Score).Str("recommendation", score.Recommendation).
		Dur("elapsed", time.Since(start)).Msg("简历评估完成")
	return nil
}

// resumeText 优先使用提交时已提取的文本
func (w *Worker) resumeText(ctx context.Context, msg *storage.EvaluationJobMessage) (string, error) {
	if strings.TrimSpace(msg.ResumeText) != "" {
		return msg.ResumeText, nil
	}
	data, err := w.fetcher.Fetch(ctx, msg)
	if err != nil {
		return "", err
	}
	name := msg.OriginalName
	if name == "" {
		name = msg.ResumePath
	}
	text, err := w.extractor.ExtractClean(ctx, data, name)
	if err != nil {
		return "", fmt.Errorf("提取简历文本失败: %w", err)
	}
	return text, nil
}
