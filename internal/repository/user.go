// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"weebchat/internal/cache"
	"weebchat/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByUid(ctx context.Context, uid string) (*models.User, error)
	UpsertByUid(ctx context.Context, uid, email string) (*models.User, error)
	SetDisplayName(ctx context.Context, uid, displayName string) (*models.User, error)
	IncrementViolation(ctx context.Context, uid string, banThreshold int) (*models.User, error)
	IncrementReport(ctx context.Context, uid string, banThreshold int) (*models.User, error)
	Ban(ctx context.Context, uid string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByUid(ctx context.Context, uid string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", uid)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// UpsertByUid returns the user row for the verified subject, creating it on
// first contact with the default display name.
func (r *userRepository) UpsertByUid(ctx context.Context, uid, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&user).Error
	if err == nil {
		updates := map[string]interface{}{"last_login_at": time.Now()}
		if email != "" && email != user.Email {
			updates["email"] = email
			user.Email = email
		}
		if updateErr := r.db.WithContext(ctx).Model(&user).Updates(updates).Error; updateErr != nil {
			return nil, models.NewInternalError(updateErr)
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewInternalError(err)
	}

	user = models.User{
		Uid:         uid,
		Email:       email,
		DisplayName: models.DefaultDisplayName,
		LastLoginAt: time.Now(),
	}
	if createErr := r.db.WithContext(ctx).Create(&user).Error; createErr != nil {
		if isUniqueConstraintError(createErr) {
			// Lost a creation race: the row exists now.
			return r.GetByUid(ctx, uid)
		}
		return nil, models.NewInternalError(createErr)
	}
	return &user, nil
}

func (r *userRepository) SetDisplayName(ctx context.Context, uid, displayName string) (*models.User, error) {
	user, err := r.UpsertByUid(ctx, uid, "")
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(user).Update("display_name", displayName).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	user.DisplayName = displayName
	cache.InvalidateUser(ctx, uid)
	return user, nil
}

// IncrementViolation bumps the violation counter in a single SQL statement so
// concurrent sends cannot lose increments, and flips is_banned when the new
// count reaches the threshold. The returned row reflects the post-increment
// state.
func (r *userRepository) IncrementViolation(ctx context.Context, uid string, banThreshold int) (*models.User, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("uid = ?", uid).
		Updates(map[string]interface{}{
			"violation_count": gorm.Expr("violation_count + 1"),
			"is_banned":       gorm.Expr("is_banned OR (violation_count + 1 >= ?)", banThreshold),
		})
	if res.Error != nil {
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("User", uid)
	}
	cache.InvalidateUser(ctx, uid)
	return r.GetByUid(ctx, uid)
}

// IncrementReport bumps the report counter atomically and flips is_banned when
// the new count reaches the threshold.
func (r *userRepository) IncrementReport(ctx context.Context, uid string, banThreshold int) (*models.User, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("uid = ?", uid).
		Updates(map[string]interface{}{
			"report_count": gorm.Expr("report_count + 1"),
			"is_banned":    gorm.Expr("is_banned OR (report_count + 1 >= ?)", banThreshold),
		})
	if res.Error != nil {
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("User", uid)
	}
	cache.InvalidateUser(ctx, uid)
	return r.GetByUid(ctx, uid)
}

func (r *userRepository) Ban(ctx context.Context, uid string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("uid = ?", uid).
		Update("is_banned", true)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", uid)
	}
	cache.InvalidateUser(ctx, uid)
	return nil
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	// PostgreSQL unique violation SQLSTATE 23505
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}
