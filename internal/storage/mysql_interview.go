package storage

import (
	"context"
	"time"

	"ai-hiring-go/internal/storage/models"

	"gorm.io/gorm/clause"
)

// TranscriptRow 回答与题目联表后的一行
type TranscriptRow struct {
	QuestionID    string
	QuestionText  string
	QuestionOrder int
	AnswerText    string
	CreatedAt     time.Time
}

// CountInterviewQuestions 岗位题库中的题目数
func (m *MySQL) CountInterviewQuestions(ctx context.Context, jobID string) (int64, error) {
	var row struct{ N int64 }
	err := m.FetchOne(ctx, &row, "SELECT COUNT(*) AS n FROM interview_questions WHERE job_id = ?", jobID)
	if err != nil {
		return 0, err
	}
	return row.N, nil
}

// CreateInterviewQuestions (job_id, question_order) 冲突时跳过，并发生成只保留先写入的一份
func (m *MySQL) CreateInterviewQuestions(ctx context.Context, questions []models.InterviewQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	return translateError(m.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&questions).Error)
}

func (m *MySQL) GetInterviewQuestion(ctx context.Context, questionID string) (*models.InterviewQuestion, error) {
	var q models.InterviewQuestion
	if err := m.db.WithContext(ctx).Where("question_id = ?", questionID).First(&q).Error; err != nil {
		return nil, translateError(err)
	}
	return &q, nil
}

// NextInterviewQuestion 返回 question_order 严格大于 afterOrder 的最小一题；没有时返回 ErrNotFound
func (m *MySQL) NextInterviewQuestion(ctx context.Context, jobID string, afterOrder int) (*models.InterviewQuestion, error) {
	var q models.InterviewQuestion
	err := m.db.WithContext(ctx).
		Where("job_id = ? AND question_order > ?", jobID, afterOrder).
		Order("question_order ASC").First(&q).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &q, nil
}

// FindOpenInterviewSession 查找 (candidate, job) 下尚未完成的会话
func (m *MySQL) FindOpenInterviewSession(ctx context.Context, candidateID, jobID string) (*models.InterviewSession, error) {
	var s models.InterviewSession
	err := m.db.WithContext(ctx).
		Where("candidate_id = ? AND job_id = ? AND status <> ?", candidateID, jobID, models.SessionStatusCompleted).
		Order("created_at DESC").First(&s).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &s, nil
}

// LatestInterviewSession 候选人最近一次会话，不区分状态
func (m *MySQL) LatestInterviewSession(ctx context.Context, candidateID string) (*models.InterviewSession, error) {
	var s models.InterviewSession
	err := m.db.WithContext(ctx).Where("candidate_id = ?", candidateID).
		Order("created_at DESC").First(&s).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &s, nil
}

func (m *MySQL) CreateInterviewSession(ctx context.Context, s *models.InterviewSession) error {
	return translateError(m.db.WithContext(ctx).Create(s).Error)
}

func (m *MySQL) GetInterviewSession(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	var s models.InterviewSession
	if err := m.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&s).Error; err != nil {
		return nil, translateError(err)
	}
	return &s, nil
}

func (m *MySQL) GetInterviewSessionByAccessToken(ctx context.Context, accessToken string) (*models.InterviewSession, error) {
	var s models.InterviewSession
	if err := m.db.WithContext(ctx).Where("access_token = ?", accessToken).First(&s).Error; err != nil {
		return nil, translateError(err)
	}
	return &s, nil
}

// SetInterviewAccessToken 只在缺失时补写访问令牌
func (m *MySQL) SetInterviewAccessToken(ctx context.Context, sessionID, accessToken string) error {
	res := m.db.WithContext(ctx).Model(&models.InterviewSession{}).
		Where("session_id = ? AND (access_token IS NULL OR access_token = '')", sessionID).
		Update("access_token", accessToken)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// AppendInterviewResponse 同一事务内追加回答并推进会话进度。
// 会话已完成，或 last_question_id 已不是 expectedLast 时返回 ErrStaleState
func (m *MySQL) AppendInterviewResponse(ctx context.Context, resp *models.InterviewResponse, expectedLast *string) error {
	return m.Transaction(ctx, func(tx *MySQL) error {
		q := tx.db.WithContext(ctx).Model(&models.InterviewSession{}).
			Where("session_id = ? AND status <> ?", resp.SessionID, models.SessionStatusCompleted)
		if expectedLast == nil {
			q = q.Where("last_question_id IS NULL")
		} else {
			q = q.Where("last_question_id = ?", *expectedLast)
		}
		res := q.Updates(map[string]interface{}{
			"last_question_id": resp.QuestionID,
			"status":           models.SessionStatusInProgress,
		})
		if res.Error != nil {
			return translateError(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}
		return translateError(tx.db.WithContext(ctx).Create(resp).Error)
	})
}

// CompleteInterviewSession 未完成 -> COMPLETED，已完成时返回 ErrStaleState
func (m *MySQL) CompleteInterviewSession(ctx context.Context, sessionID string, durationSeconds *int, at time.Time) error {
	updates := map[string]interface{}{
		"status":       models.SessionStatusCompleted,
		"completed_at": at,
	}
	if durationSeconds != nil {
		updates["duration_seconds"] = *durationSeconds
	}
	res := m.db.WithContext(ctx).Model(&models.InterviewSession{}).
		Where("session_id = ? AND status <> ?", sessionID, models.SessionStatusCompleted).
		Updates(updates)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// SetInterviewMedia 记录整场录像或转写稿的对象路径，空字符串的字段不更新
func (m *MySQL) SetInterviewMedia(ctx context.Context, sessionID, videoURL, transcriptURL string) error {
	updates := map[string]interface{}{}
	if videoURL != "" {
		updates["video_url"] = videoURL
	}
	if transcriptURL != "" {
		updates["transcript_url"] = transcriptURL
	}
	if len(updates) == 0 {
		return nil
	}
	return translateError(m.db.WithContext(ctx).Model(&models.InterviewSession{}).
		Where("session_id = ?", sessionID).Updates(updates).Error)
}

// ListTranscriptRows 按回答创建顺序还原问答
func (m *MySQL) ListTranscriptRows(ctx context.Context, sessionID string) ([]TranscriptRow, error) {
	var rows []TranscriptRow
	err := m.FetchAll(ctx, &rows, `
SELECT r.question_id, q.question_text, q.question_order, r.answer_text, r.created_at
FROM interview_responses r
JOIN interview_questions q ON q.question_id = r.question_id
WHERE r.session_id = ?
ORDER BY r.created_at ASC, r.id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertInterviewEvaluation 以 session_id 为键覆盖写入
func (m *MySQL) UpsertInterviewEvaluation(ctx context.Context, e *models.AIInterviewEvaluation) error {
	return translateError(m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"score", "recommendation", "summary", "matched_skills", "missing_skills",
			"strengths", "areas_for_improvement", "updated_at",
		}),
	}).Create(e).Error)
}

func (m *MySQL) GetInterviewEvaluation(ctx context.Context, sessionID string) (*models.AIInterviewEvaluation, error) {
	var e models.AIInterviewEvaluation
	if err := m.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&e).Error; err != nil {
		return nil, translateError(err)
	}
	return &e, nil
}
