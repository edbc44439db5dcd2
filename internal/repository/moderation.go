package repository

import (
	"context"

	"weebchat/internal/models"

	"gorm.io/gorm"
)

// ModerationRepository defines persistence operations for moderation logs and
// user reports.
type ModerationRepository interface {
	CreateLog(ctx context.Context, log *models.ModerationLog) error
	ListLogsForUser(ctx context.Context, uid string, limit int) ([]models.ModerationLog, error)
	CreateReport(ctx context.Context, report *models.Report) error
}

type moderationRepository struct {
	db *gorm.DB
}

// NewModerationRepository returns a new ModerationRepository implementation.
func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db}
}

func (r *moderationRepository) CreateLog(ctx context.Context, log *models.ModerationLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *moderationRepository) ListLogsForUser(ctx context.Context, uid string, limit int) ([]models.ModerationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []models.ModerationLog
	if err := r.db.WithContext(ctx).
		Where("sender_uid = ?", uid).
		Order("id DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return logs, nil
}

func (r *moderationRepository) CreateReport(ctx context.Context, report *models.Report) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
