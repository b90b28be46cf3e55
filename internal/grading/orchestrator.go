// Package grading 面试评分编排：选取问答来源、调用评分模型、写入评分结果。
package grading

import (
	"context"
	"errors"
	"strings"

	"ai-hiring-go/internal/apperr"
	"ai-hiring-go/internal/evaluator"
	"ai-hiring-go/internal/logger"
	"ai-hiring-go/internal/parser"
	"ai-hiring-go/internal/storage"
	"ai-hiring-go/internal/storage/models"
	"ai-hiring-go/internal/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("ai-hiring-go/grading")

// Store 评分读写的数据
type Store interface {
	GetInterviewSession(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	ListTranscriptRows(ctx context.Context, sessionID string) ([]storage.TranscriptRow, error)
	UpsertInterviewEvaluation(ctx context.Context, e *models.AIInterviewEvaluation) error
}

// ObjectSource 读取转写稿对象
type ObjectSource interface {
	Get(ctx context.Context, ref storage.ObjectRef) ([]byte, error)
}

// PDFExtractor 由 parser.EinoPDFTextExtractor 实现
type PDFExtractor interface {
	ExtractTextFromBytes(ctx context.Context, data []byte, uri string) (string, error)
}

// JobContexts 由 jobs.Service 实现
type JobContexts interface {
	Context(ctx context.Context, jobID string) (evaluator.JobContext, error)
}

// Grader 由 evaluator.InterviewGrader 实现
type Grader interface {
	Grade(ctx context.Context, job evaluator.JobContext, transcript []parser.QAPair) (*evaluator.InterviewGrade, error)
}

// Orchestrator 面试评分编排
type Orchestrator struct {
	store             Store
	objects           ObjectSource
	pdf               PDFExtractor
	jobs              JobContexts
	grader            Grader
	transcriptsBucket string
}

// NewOrchestrator objects 或 pdf 为 nil 时只用数据库中的回答还原问答
func NewOrchestrator(store Store, objects ObjectSource, pdf PDFExtractor, jobs JobContexts, grader Grader, transcriptsBucket string) *Orchestrator {
	return &Orchestrator{
		store:             store,
		objects:           objects,
		pdf:               pdf,
		jobs:              jobs,
		grader:            grader,
		transcriptsBucket: transcriptsBucket,
	}
}

// Grade 给会话打分并以 session_id 为键覆盖写入结果。
// 失败不会改变会话状态
func (o *Orchestrator) Grade(ctx context.Context, sessionID string) (grade *evaluator.InterviewGrade, err error) {
	const op = "grading.Grade"
	ctx, span := tracer.Start(ctx, "grading.Grade")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))
	defer func() {
		if err != nil {
			errType := tracing.ErrorTypeLLM
			if apperr.Is(err, apperr.KindNotFound) || apperr.Is(err, apperr.KindValidation) {
				errType = tracing.ErrorTypeValidation
			}
			tracing.RecordError(span, err, errType)
			return
		}
		span.SetStatus(codes.Ok, "")
	}()

	session, err := o.store.GetInterviewSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound(op, "Interview session not found")
		}
		return nil, apperr.Dependency(op, "", err)
	}
	log := logger.Ctx(ctx).With().Str("session_id", sessionID).Logger()

	transcript, source, err := o.transcript(ctx, session)
	if err != nil {
		return nil, apperr.Dependency(op, "Failed to load interview transcript", err)
	}
	if len(transcript) == 0 {
		return nil, apperr.Validation(op, "No interview responses to grade")
	}
	span.SetAttributes(attribute.String("transcript.source", source), attribute.Int("transcript.pairs", len(transcript)))

	job, err := o.jobs.Context(ctx, session.JobID)
	if err != nil {
		log.Warn().Err(err).Msg("读取岗位信息失败，使用通用岗位描述")
		job = evaluator.JobContext{}
	}

	grade, err = o.grader.Grade(ctx, job, transcript)
	if err != nil {
		if errors.Is(err, evaluator.ErrEmptyTranscript) {
			return nil, apperr.Validation(op, "No interview responses to grade")
		}
		return nil, apperr.Dependency(op, "Failed to grade interview", err)
	}

	eval := &models.AIInterviewEvaluation{
		SessionID:           sessionID,
		Score:               grade.Score,
		Recommendation:      grade.Recommendation,
		Summary:             grade.Summary,
		MatchedSkills:       models.MustJSON(grade.MatchedSkills),
		MissingSkills:       models.MustJSON(grade.MissingSkills),
		Strengths:           models.MustJSON(grade.Strengths),
		AreasForImprovement: models.MustJSON(grade.AreasForImprovement),
	}
	if err := o.store.UpsertInterviewEvaluation(ctx, eval); err != nil {
		return nil, apperr.Dependency(op, "Failed to save interview evaluation", err)
	}

	log.Info().Int("score", grade.Score).Str("recommendation", grade.Recommendation).
		Str("source", source).Msg("面试评分完成")
	return grade, nil
}

// Regrade 只允许对已完成的会话重新评分
func (o *Orchestrator) Regrade(ctx context.Context, sessionID string) (*evaluator.InterviewGrade, error) {
	const op = "grading.Regrade"
	session, err := o.store.GetInterviewSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound(op, "Interview session not found")
		}
		return nil, apperr.Dependency(op, "", err)
	}
	if session.Status != models.SessionStatusCompleted {
		return nil, apperr.Conflict(op, "Interview session is not completed")
	}
	return o.Grade(ctx, sessionID)
}

// transcript 优先解析上传的转写稿，取不到或解析为空时退回数据库中的回答
func (o *Orchestrator) transcript(ctx context.Context, session *models.InterviewSession) ([]parser.QAPair, string, error) {
	if pairs := o.artifactTranscript(ctx, session); len(pairs) > 0 {
		return pairs, "artifact", nil
	}
	rows, err := o.store.ListTranscriptRows(ctx, session.SessionID)
	if err != nil {
		return nil, "", err
	}
	return RowsToPairs(rows), "responses", nil
}

func (o *Orchestrator) artifactTranscript(ctx context.Context, session *models.InterviewSession) []parser.QAPair {
	if session.TranscriptURL == "" || o.objects == nil || o.pdf == nil {
		return nil
	}
	log := logger.Ctx(ctx).With().Str("session_id", session.SessionID).Str("transcript", session.TranscriptURL).Logger()

	data, err := o.objects.Get(ctx, storage.ObjectRef{Bucket: o.transcriptsBucket, Path: session.TranscriptURL})
	if err != nil {
		log.Warn().Err(err).Msg("读取转写稿失败，改用数据库回答")
		return nil
	}
	text, err := o.pdf.ExtractTextFromBytes(ctx, data, session.TranscriptURL)
	if err != nil {
		log.Warn().Err(err).Msg("转写稿 PDF 解析失败，改用数据库回答")
		return nil
	}
	pairs := parser.ParseTranscript(text)
	if len(pairs) == 0 {
		log.Warn().Msg("转写稿中没有识别到问答，改用数据库回答")
	}
	return pairs
}

// RowsToPairs 数据库回答按创建顺序转换为问答
func RowsToPairs(rows []storage.TranscriptRow) []parser.QAPair {
	pairs := make([]parser.QAPair, 0, len(rows))
	for _, r := range rows {
		q := strings.TrimSpace(r.QuestionText)
		if q == "" {
			q = "Unknown Question"
		}
		a := strings.TrimSpace(r.AnswerText)
		if a == "" {
			a = "[No Answer]"
		}
		pairs = append(pairs, parser.QAPair{Question: q, Answer: a})
	}
	return pairs
}
