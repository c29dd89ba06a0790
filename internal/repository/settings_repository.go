package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mission-board/internal/model"
)

// SettingsRepository stores per-user bookkeeping.
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// LastWeeklyReset returns the unix time of the last reset, 0 if it never ran.
func (r *SettingsRepository) LastWeeklyReset(ctx context.Context, userID uint) (int64, error) {
	var settings model.Settings
	err := conn(ctx, r.db).Where("user_id = ?", userID).First(&settings).Error
	switch {
	case err == nil:
		return settings.LastWeeklyReset, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return 0, nil
	default:
		return 0, fmt.Errorf("find settings: %w", err)
	}
}

func (r *SettingsRepository) SetLastWeeklyReset(ctx context.Context, userID uint, unix int64) error {
	settings := model.Settings{UserID: userID, LastWeeklyReset: unix}
	err := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_weekly_reset", "updated_at"}),
	}).Create(&settings).Error
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
