package storage

import (
	"context"
	"time"

	"ai-hiring-go/internal/storage/models"
)

// CreateApplicationToken 保存新签发的申请令牌
func (m *MySQL) CreateApplicationToken(ctx context.Context, t *models.ApplicationToken) error {
	return translateError(m.db.WithContext(ctx).Create(t).Error)
}

// GetApplicationToken 按令牌值查找
func (m *MySQL) GetApplicationToken(ctx context.Context, token string) (*models.ApplicationToken, error) {
	var t models.ApplicationToken
	if err := m.db.WithContext(ctx).Where("token = ?", token).First(&t).Error; err != nil {
		return nil, translateError(err)
	}
	return &t, nil
}

// ExpireApplicationToken PENDING -> EXPIRED，重复调用不会产生第二次状态迁移
func (m *MySQL) ExpireApplicationToken(ctx context.Context, token string) (bool, error) {
	res := m.db.WithContext(ctx).Model(&models.ApplicationToken{}).
		Where("token = ? AND status = ?", token, models.TokenStatusPending).
		Update("status", models.TokenStatusExpired)
	if res.Error != nil {
		return false, translateError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ConsumeApplicationToken PENDING -> USED，未命中返回 ErrStaleState
func (m *MySQL) ConsumeApplicationToken(ctx context.Context, token string, usedAt time.Time) error {
	res := m.db.WithContext(ctx).Model(&models.ApplicationToken{}).
		Where("token = ? AND status = ?", token, models.TokenStatusPending).
		Updates(map[string]interface{}{
			"status":  models.TokenStatusUsed,
			"used_at": usedAt,
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// ListApplicationTokens 列出某个签发人发出的令牌，issuedBy 为空时列出全部
func (m *MySQL) ListApplicationTokens(ctx context.Context, issuedBy string) ([]models.ApplicationToken, error) {
	var tokens []models.ApplicationToken
	q := m.db.WithContext(ctx).Order("created_at DESC")
	if issuedBy != "" {
		q = q.Where("issued_by = ?", issuedBy)
	}
	if err := q.Find(&tokens).Error; err != nil {
		return nil, translateError(err)
	}
	return tokens, nil
}
