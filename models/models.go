package models

import (
	"time"
)

// UserActivity is the last time a member was seen acting in a guild.
type UserActivity struct {
	ID           uint      `gorm:"primaryKey"`
	UserID       string    `gorm:"size:32;not null;uniqueIndex:idx_user_guild"`       // The Discord ID of the member.
	GuildID      string    `gorm:"size:32;not null;uniqueIndex:idx_user_guild;index"` // The Discord ID of the guild.
	LastActivity time.Time `gorm:"not null"`                                          // The last time the member was observed acting.
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ServerConfig is the moderation setup of one guild.
type ServerConfig struct {
	ID           string   `mapstructure:"id"`
	Status       bool     `mapstructure:"status"`       // Only active servers are tracked and swept.
	Duration     float64  `mapstructure:"duration"`     // Inactivity threshold, in threshold units. May be fractional.
	LogChannelID string   `mapstructure:"logChannelId"` // Channel receiving kick audit entries.
	SafeRoles    []string `mapstructure:"safeRoles"`    // Roles exempt from removal.
	NonSafeRoles []string `mapstructure:"nonSafeRoles"` // Roles subject to removal.
}

// Threshold converts Duration into a time.Duration using unit.
func (c ServerConfig) Threshold(unit time.Duration) time.Duration {
	return time.Duration(c.Duration * float64(unit))
}
