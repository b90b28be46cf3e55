// Package evaluation 简历评估任务的投递与消费
package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-hiring-go/internal/config"
	"ai-hiring-go/internal/constants"
	"ai-hiring-go/internal/logger"
	"ai-hiring-go/internal/storage"
	"ai-hiring-go/internal/storage/models"
)

// Publisher 直接投递，由 storage.RabbitMQ 实现
type Publisher interface {
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error
}

// OutboxWriter 投递失败时暂存消息
type OutboxWriter interface {
	CreateOutboxMessage(ctx context.Context, msg *models.OutboxMessage) error
}

// Dispatcher 评估任务投递器，只负责交出任务，不等待执行
type Dispatcher struct {
	publisher  Publisher
	outbox     OutboxWriter
	exchange   string
	routingKey string
	timeout    time.Duration
	now        func() time.Time
}

// NewDispatcher publisher 为 nil 时所有任务都写入 outbox
func NewDispatcher(publisher Publisher, outbox OutboxWriter, cfg config.RabbitMQConfig) *Dispatcher {
	return &Dispatcher{
		publisher:  publisher,
		outbox:     outbox,
		exchange:   cfg.EvaluationExchange,
		routingKey: cfg.EvaluationRoutingKey,
		timeout:    config.GetDuration(cfg.JobTimeout, 600*time.Second),
		now:        time.Now,
	}
}

// Enqueue 优先直接发布到 RabbitMQ，失败时落到 outbox 由 relay 补发
func (d *Dispatcher) Enqueue(ctx context.Context, msg *storage.EvaluationJobMessage) error {
	if msg == nil || msg.CandidateID == "" {
		return errors.New("评估任务缺少 candidate_id")
	}
	msg.EnqueuedAt = d.now()
	msg.TimeoutSeconds = int(d.timeout / time.Second)

	log := logger.Ctx(ctx).With().Str("candidate_id", msg.CandidateID).Str("job_id", msg.JobID).Logger()

	var pubErr error
	if d.publisher != nil {
		pubErr = d.publisher.PublishJSON(ctx, d.exchange, d.routingKey, msg, true)
		if pubErr == nil {
			log.Info().Msg("评估任务已投递")
			return nil
		}
		log.Warn().Err(pubErr).Msg("直接投递失败，写入 outbox")
	} else {
		pubErr = errors.New("消息队列不可用")
	}

	if d.outbox == nil {
		return fmt.Errorf("投递评估任务失败: %w", pubErr)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化评估任务失败: %w", err)
	}
	err = d.outbox.CreateOutboxMessage(ctx, &models.OutboxMessage{
		AggregateID:      msg.CandidateID,
		EventType:        constants.EvaluationEventType,
		Payload:          string(payload),
		TargetExchange:   d.exchange,
		TargetRoutingKey: d.routingKey,
		Status:           models.OutboxStatusPending,
	})
	if err != nil {
		return fmt.Errorf("投递评估任务失败: %v; 写入 outbox 失败: %w", pubErr, err)
	}
	log.Info().Msg("评估任务已写入 outbox")
	return nil
}

// PendingEvaluation 排队中的占位评估
func PendingEvaluation(candidateID string) *models.AIEvaluation {
	return placeholder(candidateID, models.EvaluationStatusPending, constants.PendingEvaluationSummary, "")
}

// FailedEvaluation 失败的评估，错误信息截断到 1000 字符
func FailedEvaluation(candidateID string, cause error) *models.AIEvaluation {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return placeholder(candidateID, models.EvaluationStatusFailed, constants.FailedEvaluationSummary,
		truncateRunes(msg, constants.MaxErrorMessageLength))
}

func placeholder(candidateID, status, summary, errMsg string) *models.AIEvaluation {
	empty := models.MustJSON(map[string]string{})
	return &models.AIEvaluation{
		CandidateID:    candidateID,
		Score:          0,
		Recommendation: models.RecommendationPotential,
		MatchedSkills:  empty,
		MissingSkills:  empty,
		Strengths:      empty,
		Weaknesses:     empty,
		Summary:        summary,
		Status:         status,
		ErrorMessage:   errMsg,
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// RequeueStore 手动重新排队需要的数据
type RequeueStore interface {
	GetCandidate(ctx context.Context, candidateID string) (*models.Candidate, error)
	LatestCandidateDocument(ctx context.Context, candidateID string) (*models.CandidateDocument, error)
	UpsertAIEvaluation(ctx context.Context, e *models.AIEvaluation) error
}

// Requeue 按最新简历重建 PENDING 记录并重新投递，补上投递失败后候选人卡在 PENDING 的缺口
func (d *Dispatcher) Requeue(ctx context.Context, store RequeueStore, candidateID string) error {
	cand, err := store.GetCandidate(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("查询候选人失败: %w", err)
	}
	doc, err := store.LatestCandidateDocument(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("查询简历失败: %w", err)
	}
	if err := store.UpsertAIEvaluation(ctx, PendingEvaluation(candidateID)); err != nil {
		return fmt.Errorf("重置评估记录失败: %w", err)
	}
	return d.Enqueue(ctx, &storage.EvaluationJobMessage{
		CandidateID:   cand.CandidateID,
		JobID:         cand.JobID,
		ResumePath:    doc.StoragePath,
		StorageBucket: doc.StorageBucket,
		OriginalName:  doc.OriginalFilename,
	})
}
