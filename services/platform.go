package services

import (
	"context"
	"time"

	"InactivityBot/models"

	"github.com/bwmarrin/discordgo"
)

// Platform is the subset of the Discord API the moderation services use.
type Platform interface {
	// GuildMembers returns every member of the guild.
	GuildMembers(ctx context.Context, guildID string) ([]*discordgo.Member, error)
	GuildName(guildID string) string
	GuildMemberCount(guildID string) (int, error)
	SendDirectMessage(ctx context.Context, userID, content string) error
	KickMember(ctx context.Context, guildID, userID, reason string) error
	SendChannelEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
	SetWatchingStatus(name string) error
}

// ActivityStore persists last-activity records keyed by (user, guild).
type ActivityStore interface {
	Touch(ctx context.Context, userID, guildID string, at time.Time) error
	CreateIfAbsent(ctx context.Context, userID, guildID string, at time.Time) (bool, error)
	Find(ctx context.Context, userID, guildID string) (*models.UserActivity, error)
	Delete(ctx context.Context, userID, guildID string) error
	CountByGuild(ctx context.Context, guildID string) (int64, error)
}

// ServerDirectory resolves guild configuration.
type ServerDirectory interface {
	ActiveServers() []models.ServerConfig
	ActiveServer(guildID string) (models.ServerConfig, bool)
}
