package storage

import (
	"context"
	"time"

	"ai-hiring-go/internal/storage/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm/clause"
)

// CandidateFilter 候选人列表过滤条件
type CandidateFilter struct {
	JobID  string
	Status string
	Limit  int
	Offset int
}

// CreateCandidate 唯一键 (email, job_id) 冲突时返回 ErrDuplicateKey
func (m *MySQL) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	return translateError(m.db.WithContext(ctx).Create(c).Error)
}

// DeleteCandidate 用于 intake 补偿，不存在时不报错
func (m *MySQL) DeleteCandidate(ctx context.Context, candidateID string) error {
	return translateError(m.db.WithContext(ctx).Where("candidate_id = ?", candidateID).Delete(&models.Candidate{}).Error)
}

func (m *MySQL) GetCandidate(ctx context.Context, candidateID string) (*models.Candidate, error) {
	var c models.Candidate
	if err := m.db.WithContext(ctx).Where("candidate_id = ?", candidateID).First(&c).Error; err != nil {
		return nil, translateError(err)
	}
	return &c, nil
}

func (m *MySQL) ListCandidates(ctx context.Context, f CandidateFilter) ([]models.Candidate, error) {
	var list []models.Candidate
	q := m.db.WithContext(ctx).Order("created_at DESC")
	if f.JobID != "" {
		q = q.Where("job_id = ?", f.JobID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, translateError(err)
	}
	return list, nil
}

// UpdateCandidateStatus 更新状态并记录更新时间
func (m *MySQL) UpdateCandidateStatus(ctx context.Context, candidateID, status string, at time.Time) error {
	if _, err := m.GetCandidate(ctx, candidateID); err != nil {
		return err
	}
	return translateError(m.db.WithContext(ctx).Model(&models.Candidate{}).
		Where("candidate_id = ?", candidateID).
		Updates(map[string]interface{}{
			"status":            status,
			"status_updated_at": at,
		}).Error)
}

// AttachDocumentAndConsumeToken 同一事务内写入简历记录并消费令牌；
// 令牌已不是 PENDING 时整个事务回滚并返回 ErrStaleState
func (m *MySQL) AttachDocumentAndConsumeToken(ctx context.Context, doc *models.CandidateDocument, token string, usedAt time.Time) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.AttachDocumentAndConsumeToken",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("candidate.id", doc.CandidateID)))
	defer span.End()

	err := m.Transaction(ctx, func(tx *MySQL) error {
		if err := translateError(tx.db.WithContext(ctx).Create(doc).Error); err != nil {
			return err
		}
		return tx.ConsumeApplicationToken(ctx, token, usedAt)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// ListCandidateDocuments 最新上传的在前
func (m *MySQL) ListCandidateDocuments(ctx context.Context, candidateID string) ([]models.CandidateDocument, error) {
	var docs []models.CandidateDocument
	err := m.db.WithContext(ctx).Where("candidate_id = ?", candidateID).
		Order("uploaded_at DESC, id DESC").Find(&docs).Error
	if err != nil {
		return nil, translateError(err)
	}
	return docs, nil
}

// LatestCandidateDocument 当前有效简历
func (m *MySQL) LatestCandidateDocument(ctx context.Context, candidateID string) (*models.CandidateDocument, error) {
	var doc models.CandidateDocument
	err := m.db.WithContext(ctx).Where("candidate_id = ?", candidateID).
		Order("uploaded_at DESC, id DESC").First(&doc).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &doc, nil
}

// UpsertAIEvaluation 以 candidate_id 为键覆盖写入，后写者胜
func (m *MySQL) UpsertAIEvaluation(ctx context.Context, e *models.AIEvaluation) error {
	return translateError(m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "candidate_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"score", "recommendation", "matched_skills", "missing_skills",
			"strengths", "weaknesses", "summary", "status", "error_message", "updated_at",
		}),
	}).Create(e).Error)
}

func (m *MySQL) GetAIEvaluation(ctx context.Context, candidateID string) (*models.AIEvaluation, error) {
	var e models.AIEvaluation
	if err := m.db.WithContext(ctx).Where("candidate_id = ?", candidateID).First(&e).Error; err != nil {
		return nil, translateError(err)
	}
	return &e, nil
}

// CreateOutboxMessage 暂存待补发的消息
func (m *MySQL) CreateOutboxMessage(ctx context.Context, msg *models.OutboxMessage) error {
	return translateError(m.db.WithContext(ctx).Create(msg).Error)
}

// ListStaleEvaluations 长时间停在 PENDING 的评估，includeFailed 时也包含 FAILED，最旧的在前
func (m *MySQL) ListStaleEvaluations(ctx context.Context, pendingBefore time.Time, includeFailed bool, limit int) ([]string, error) {
	q := m.db.WithContext(ctx).Model(&models.AIEvaluation{}).
		Where("status = ? AND updated_at < ?", models.EvaluationStatusPending, pendingBefore)
	if includeFailed {
		q = q.Or("status = ?", models.EvaluationStatusFailed)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ids []string
	if err := q.Order("updated_at ASC").Pluck("candidate_id", &ids).Error; err != nil {
		return nil, translateError(err)
	}
	return ids, nil
}
