package services

import (
	"context"
	"fmt"
	"time"

	"InactivityBot/errorhandler"
	"InactivityBot/logger"
	"InactivityBot/metrics"
	"InactivityBot/models"
	"InactivityBot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// Remover kicks inactive members and cleans up after them.
type Remover struct {
	platform      Platform
	store         ActivityStore
	kickPolicy    utils.RetryPolicy
	thresholdUnit time.Duration
	now           func() time.Time
}

func NewRemover(platform Platform, store ActivityStore, kickPolicy utils.RetryPolicy, thresholdUnit time.Duration) *Remover {
	if kickPolicy.Retryable == nil {
		kickPolicy.Retryable = errorhandler.IsRetryable
	}
	return &Remover{
		platform:      platform,
		store:         store,
		kickPolicy:    kickPolicy,
		thresholdUnit: thresholdUnit,
		now:           time.Now,
	}
}

// Remove notifies, kicks and logs an inactive member, then forgets their
// activity record. lastActive is nil for members that were never seen. It
// reports whether the member was kicked; on failure the record is untouched.
func (r *Remover) Remove(ctx context.Context, member *discordgo.Member, cfg models.ServerConfig, lastActive *time.Time) bool {
	now := r.now()
	elapsed := cfg.Threshold(r.thresholdUnit)
	if lastActive != nil {
		elapsed = now.Sub(*lastActive)
	}
	inactivity := FormatInactivity(elapsed, r.thresholdUnit)
	guildName := r.platform.GuildName(cfg.ID)

	log := logger.Log.WithFields(logrus.Fields{
		"user":  member.User.String(),
		"guild": cfg.ID,
	})
	log.Infof("Member inactive for %s", inactivity)

	dm := fmt.Sprintf("You have been removed from **%s** for inactivity (%s since last message).", guildName, inactivity)
	if err := r.platform.SendDirectMessage(ctx, member.User.ID, dm); err != nil {
		log.WithError(err).Info("Could not DM member before removal")
	} else {
		log.Debug("Sent removal DM")
	}

	reason := fmt.Sprintf("Inactivity: %s without a message", inactivity)
	policy := r.kickPolicy
	policy.OnRetry = func(attempt int, err error) {
		log.WithError(err).WithField("attempt", attempt).
			Warnf("Failed to kick member (attempt %d/%d)", attempt, policy.MaxAttempts)
	}
	err := utils.Retry(ctx, policy, func() error {
		return r.platform.KickMember(ctx, cfg.ID, member.User.ID, reason)
	})
	if err != nil {
		errorhandler.HandleError(errorhandler.NewDiscordError(err,
			fmt.Sprintf("failed to kick %s from %s after %d attempts", member.User.String(), cfg.ID, policy.MaxAttempts)))
		metrics.KickFailuresTotal.WithLabelValues(cfg.ID).Inc()
		return false
	}

	r.logKick(ctx, member, cfg, reason, lastActive, now)

	if err := r.store.Delete(ctx, member.User.ID, cfg.ID); err != nil {
		log.WithError(err).Error("Error deleting activity record")
	} else {
		log.Debug("Removed activity record")
	}

	metrics.MembersKickedTotal.WithLabelValues(cfg.ID).Inc()
	log.Infof("Kicked member from %s for %s of inactivity", guildName, inactivity)
	return true
}

func (r *Remover) logKick(ctx context.Context, member *discordgo.Member, cfg models.ServerConfig, reason string, lastActive *time.Time, now time.Time) {
	if cfg.LogChannelID == "" {
		logger.Log.WithField("guild", cfg.ID).Warn("No log channel configured, kick not logged")
		return
	}

	embed := CreateKickLogEmbed(member, reason, lastActive, now)
	if err := r.platform.SendChannelEmbed(ctx, cfg.LogChannelID, embed); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"guild":   cfg.ID,
			"channel": cfg.LogChannelID,
		}).Error("Error logging kick")
		return
	}
	logger.Log.WithField("channel", cfg.LogChannelID).Debug("Kick logged")
}
