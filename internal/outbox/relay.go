// Package outbox 补发直接投递失败的评估任务
package outbox

import (
	"context"
	"time"

	"ai-hiring-go/internal/logger"
	"ai-hiring-go/internal/storage/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	maxRetryCount          = 5
)

// Publisher 消息发布器，由 storage.RabbitMQ 实现
type Publisher interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
}

// MessageRelay 轮询 outbox 表并将消息发布到消息代理
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	pollingInterval time.Duration
	batchSize       int
	done            chan struct{}
	tracer          trace.Tracer
}

// NewMessageRelay 创建一个新的 MessageRelay 实例
func NewMessageRelay(db *gorm.DB, publisher Publisher) *MessageRelay {
	return &MessageRelay{
		db:              db,
		publisher:       publisher,
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		done:            make(chan struct{}),
		tracer:          otel.Tracer("outbox-relay"),
	}
}

// Start 开始后台轮询
func (r *MessageRelay) Start() {
	logger.Info().Dur("interval", r.pollingInterval).Msg("MessageRelay 启动")
	ticker := time.NewTicker(r.pollingInterval)

	go func() {
		for {
			select {
			case <-r.done:
				ticker.Stop()
				logger.Info().Msg("MessageRelay 已停止")
				return
			case <-ticker.C:
				if err := r.processPendingMessages(context.Background()); err != nil {
					logger.Error().Err(err).Msg("处理 outbox 消息失败")
				}
			}
		}
	}()
}

// Stop 停止后台轮询
func (r *MessageRelay) Stop() {
	close(r.done)
}

// processPendingMessages 取一批 PENDING 消息发布；FOR UPDATE SKIP LOCKED 允许多实例并行
func (r *MessageRelay) processPendingMessages(ctx context.Context) error {
	if r.publisher == nil {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var messages []models.OutboxMessage
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", models.OutboxStatusPending).
			Order("created_at asc").
			Limit(r.batchSize).
			Find(&messages).Error
		if err != nil {
			return err
		}
		// 空轮询不创建 span
		if len(messages) == 0 {
			return nil
		}

		ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
			trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))))
		defer span.End()

		for i := range messages {
			msg := &messages[i]
			pubErr := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey, []byte(msg.Payload), true)
			if pubErr != nil {
				logger.Warn().Err(pubErr).
					Uint64("outbox_id", msg.ID).
					Str("aggregate_id", msg.AggregateID).
					Int("retry", msg.RetryCount+1).
					Msg("outbox 消息发布失败")
			}
			applyPublishResult(msg, pubErr, time.Now())

			// 更新失败则整个事务回滚，下次轮询重新拾取
			if err := tx.Save(msg).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// applyPublishResult 根据发布结果推进消息状态
func applyPublishResult(msg *models.OutboxMessage, pubErr error, now time.Time) {
	if pubErr != nil {
		msg.RetryCount++
		msg.ErrorMessage = pubErr.Error()
		if msg.RetryCount >= maxRetryCount {
			msg.Status = models.OutboxStatusFailed
		}
		return
	}
	msg.Status = models.OutboxStatusSent
	msg.ProcessedAt = &now
	msg.ErrorMessage = ""
}
