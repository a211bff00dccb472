package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"InactivityBot/errorhandler"
	"InactivityBot/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var userGuildColumns = []clause.Column{{Name: "user_id"}, {Name: "guild_id"}}

// ActivityStore persists UserActivity records.
type ActivityStore struct {
	db *gorm.DB
}

func NewActivityStore(db *gorm.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

// Touch sets the member's last activity to at, creating the record if needed.
func (s *ActivityStore) Touch(ctx context.Context, userID, guildID string, at time.Time) error {
	record := models.UserActivity{UserID: userID, GuildID: guildID, LastActivity: at}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   userGuildColumns,
		DoUpdates: clause.AssignmentColumns([]string{"last_activity", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return errorhandler.NewDatabaseError(err, fmt.Sprintf("failed to upsert activity for user %s in guild %s", userID, guildID))
	}
	return nil
}

// CreateIfAbsent inserts a record with at as last activity unless one exists.
// It reports whether a record was created.
func (s *ActivityStore) CreateIfAbsent(ctx context.Context, userID, guildID string, at time.Time) (bool, error) {
	record := models.UserActivity{UserID: userID, GuildID: guildID, LastActivity: at}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   userGuildColumns,
		DoNothing: true,
	}).Create(&record)
	if result.Error != nil {
		return false, errorhandler.NewDatabaseError(result.Error, fmt.Sprintf("failed to create activity for user %s in guild %s", userID, guildID))
	}
	return result.RowsAffected > 0, nil
}

// Find returns the member's record, or nil when the member is not tracked.
func (s *ActivityStore) Find(ctx context.Context, userID, guildID string) (*models.UserActivity, error) {
	var record models.UserActivity
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errorhandler.NewDatabaseError(err, fmt.Sprintf("failed to find activity for user %s in guild %s", userID, guildID))
	}
	return &record, nil
}

func (s *ActivityStore) Delete(ctx context.Context, userID, guildID string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		Delete(&models.UserActivity{}).Error
	if err != nil {
		return errorhandler.NewDatabaseError(err, fmt.Sprintf("failed to delete activity for user %s in guild %s", userID, guildID))
	}
	return nil
}

// CountByGuild returns how many members of guildID are tracked.
func (s *ActivityStore) CountByGuild(ctx context.Context, guildID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.UserActivity{}).
		Where("guild_id = ?", guildID).
		Count(&count).Error
	if err != nil {
		return 0, errorhandler.NewDatabaseError(err, fmt.Sprintf("failed to count activity records for guild %s", guildID))
	}
	return count, nil
}
