package services

import (
	"context"
	"fmt"
	"time"

	"InactivityBot/logger"
	"InactivityBot/models"
	"InactivityBot/utils"

	"github.com/sirupsen/logrus"
)

// Syncer gives every monitored member a baseline activity record.
type Syncer struct {
	platform    Platform
	store       ActivityStore
	servers     ServerDirectory
	fetchPolicy utils.RetryPolicy
	now         func() time.Time
}

func NewSyncer(platform Platform, store ActivityStore, servers ServerDirectory, fetchPolicy utils.RetryPolicy) *Syncer {
	return &Syncer{
		platform:    platform,
		store:       store,
		servers:     servers,
		fetchPolicy: fetchPolicy,
		now:         time.Now,
	}
}

// SyncAll seeds records in every active guild and returns how many were created.
func (s *Syncer) SyncAll(ctx context.Context) int {
	logger.Log.Info("Starting to track all existing members...")

	total := 0
	for _, cfg := range s.servers.ActiveServers() {
		if ctx.Err() != nil {
			break
		}
		created, err := s.SyncGuild(ctx, cfg)
		if err != nil {
			logger.Log.WithError(err).WithField("guild", cfg.ID).Error("Error processing guild tracking")
			continue
		}
		total += created
	}

	logger.Log.Infof("Completed tracking all existing members, %d new records", total)
	return total
}

// SyncGuild creates a record dated now for each monitored member of the guild
// that has none. Existing records are left untouched.
func (s *Syncer) SyncGuild(ctx context.Context, cfg models.ServerConfig) (int, error) {
	guildName := s.platform.GuildName(cfg.ID)
	log := logger.Log.WithField("guild", cfg.ID)
	log.Infof("Tracking members in %s", guildName)

	members, err := fetchMembers(ctx, s.platform, cfg.ID, s.fetchPolicy)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch members in %s: %w", guildName, err)
	}

	trackCount := 0
	candidates := 0
	for _, member := range members {
		if !isTrackable(member, cfg) {
			continue
		}
		candidates++

		created, err := s.store.CreateIfAbsent(ctx, member.User.ID, cfg.ID, s.now())
		if err != nil {
			log.WithError(err).WithField("user", member.User.String()).Error("Error tracking member")
			continue
		}
		if created {
			trackCount++
		}
	}

	log.WithFields(logrus.Fields{
		"members":    len(members),
		"candidates": candidates,
	}).Infof("Added %d new members to tracking database in %s", trackCount, guildName)
	return trackCount, nil
}
