package services

import (
	"context"
	"time"

	"InactivityBot/logger"
	"InactivityBot/metrics"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const (
	SourceMessage = "message"
	SourceJoin    = "join"
)

// Tracker refreshes last-activity records when members act.
type Tracker struct {
	store   ActivityStore
	servers ServerDirectory
	now     func() time.Time
}

func NewTracker(store ActivityStore, servers ServerDirectory) *Tracker {
	return &Tracker{
		store:   store,
		servers: servers,
		now:     time.Now,
	}
}

// RecordActivity sets the member's last activity in guildID to now. Failures
// are logged and reported but never retried.
func (t *Tracker) RecordActivity(ctx context.Context, memberID, guildID, source string) bool {
	if err := t.store.Touch(ctx, memberID, guildID, t.now()); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"user":   memberID,
			"guild":  guildID,
			"source": source,
		}).Error("Error updating activity")
		metrics.ActivityWritesTotal.WithLabelValues(source, "error").Inc()
		return false
	}
	metrics.ActivityWritesTotal.WithLabelValues(source, "ok").Inc()
	return true
}

// OnMessage records activity for the author of a guild message.
func (t *Tracker) OnMessage(ctx context.Context, message *discordgo.Message) {
	if message == nil || message.Author == nil || message.Author.Bot || message.GuildID == "" {
		return
	}
	if _, ok := t.servers.ActiveServer(message.GuildID); !ok {
		return
	}
	t.RecordActivity(ctx, message.Author.ID, message.GuildID, SourceMessage)
}

// OnMemberJoin starts tracking a new member who is subject to monitoring.
func (t *Tracker) OnMemberJoin(ctx context.Context, member *discordgo.Member) {
	if member == nil || member.User == nil {
		return
	}
	cfg, ok := t.servers.ActiveServer(member.GuildID)
	if !ok || !isTrackable(member, cfg) {
		return
	}
	if t.RecordActivity(ctx, member.User.ID, member.GuildID, SourceJoin) {
		logger.Log.WithFields(logrus.Fields{
			"user":  member.User.String(),
			"guild": member.GuildID,
		}).Info("New member tracked")
	}
}
