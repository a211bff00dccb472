package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"InactivityBot/errorhandler"
	"InactivityBot/logger"
	"InactivityBot/metrics"
	"InactivityBot/models"
	"InactivityBot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/panics"
)

// SweepReport summarises one sweep cycle.
type SweepReport struct {
	Checked        int
	Kicked         int
	FailedKicks    int
	SkippedServers []string
}

// Sweeper periodically removes members whose inactivity exceeds their
// guild's threshold.
type Sweeper struct {
	platform      Platform
	store         ActivityStore
	servers       ServerDirectory
	remover       *Remover
	fetchPolicy   utils.RetryPolicy
	thresholdUnit time.Duration
	now           func() time.Time
	running       atomic.Bool
}

func NewSweeper(platform Platform, store ActivityStore, servers ServerDirectory, remover *Remover, fetchPolicy utils.RetryPolicy, thresholdUnit time.Duration) *Sweeper {
	return &Sweeper{
		platform:      platform,
		store:         store,
		servers:       servers,
		remover:       remover,
		fetchPolicy:   fetchPolicy,
		thresholdUnit: thresholdUnit,
		now:           time.Now,
	}
}

// Start runs a cycle after initialDelay and then every interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context, initialDelay, interval time.Duration) {
	logger.Log.Infof("Starting inactive user check schedule (every %v, first run in %v)", interval, initialDelay)

	timer := time.NewTimer(initialDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		logger.Log.Info("Running inactive user check...")
		go s.RunCycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunCycle sweeps every active guild once. It returns false without doing
// anything when another cycle is still in progress.
func (s *Sweeper) RunCycle(ctx context.Context) (SweepReport, bool) {
	var report SweepReport

	if !s.running.CompareAndSwap(false, true) {
		logger.Log.Warn("Previous inactive user check still running, skipping this one")
		metrics.SweepsTotal.WithLabelValues("skipped").Inc()
		return report, false
	}
	defer s.running.Store(false)

	started := time.Now()
	logger.Log.Info("Starting inactive user check...")

	for _, cfg := range s.servers.ActiveServers() {
		if ctx.Err() != nil {
			logger.Log.WithError(ctx.Err()).Warn("Inactive user check interrupted")
			break
		}

		var pc panics.Catcher
		pc.Try(func() {
			if err := s.sweepGuild(ctx, cfg, &report); err != nil {
				errorhandler.HandleError(err)
				report.SkippedServers = append(report.SkippedServers, cfg.ID)
				metrics.GuildFetchFailuresTotal.WithLabelValues(cfg.ID).Inc()
			}
		})
		if recovered := pc.Recovered(); recovered != nil {
			logger.Log.WithError(recovered.AsError()).WithField("guild", cfg.ID).Error("Error processing guild")
		}
	}

	metrics.SweepsTotal.WithLabelValues("completed").Inc()
	metrics.SweepDuration.Observe(time.Since(started).Seconds())
	logger.Log.Infof("Inactive user check complete. Checked %d members, kicked %d members.", report.Checked, report.Kicked)
	return report, true
}

// Running reports whether a cycle is in progress.
func (s *Sweeper) Running() bool {
	return s.running.Load()
}

func (s *Sweeper) sweepGuild(ctx context.Context, cfg models.ServerConfig, report *SweepReport) error {
	guildName := s.platform.GuildName(cfg.ID)
	log := logger.Log.WithField("guild", cfg.ID)
	log.Infof("Checking server: %s", guildName)

	members, err := fetchMembers(ctx, s.platform, cfg.ID, s.fetchPolicy)
	if err != nil {
		return errorhandler.NewDiscordError(err,
			fmt.Sprintf("could not fetch members for %s after %d attempts, skipping", guildName, s.fetchPolicy.MaxAttempts))
	}

	var toCheck []*discordgo.Member
	for _, member := range members {
		if isTrackable(member, cfg) {
			toCheck = append(toCheck, member)
		}
	}
	log.Infof("Found %d members to check in %s", len(toCheck), guildName)
	report.Checked += len(toCheck)
	metrics.MembersCheckedTotal.WithLabelValues(cfg.ID).Add(float64(len(toCheck)))

	threshold := cfg.Threshold(s.thresholdUnit)
	kicked := 0
	for _, member := range toCheck {
		if ctx.Err() != nil {
			break
		}

		record, err := s.store.Find(ctx, member.User.ID, cfg.ID)
		if err != nil {
			log.WithError(err).WithField("user", member.User.String()).Error("Error checking member")
			continue
		}

		var lastActive *time.Time
		if record != nil {
			lastActive = &record.LastActivity
		}
		if !Exceeds(lastActive, s.now(), threshold) {
			continue
		}

		if s.remover.Remove(ctx, member, cfg, lastActive) {
			kicked++
		} else {
			report.FailedKicks++
		}
	}

	log.WithFields(logrus.Fields{"checked": len(toCheck)}).Infof("Kicked %d members from %s", kicked, guildName)
	report.Kicked += kicked

	if count, err := s.store.CountByGuild(ctx, cfg.ID); err == nil {
		metrics.TrackedMembers.WithLabelValues(cfg.ID).Set(float64(count))
	}
	return nil
}

// Exceeds reports whether a member last active at lastActive is past
// threshold at now. Members never seen are always past it.
func Exceeds(lastActive *time.Time, now time.Time, threshold time.Duration) bool {
	if lastActive == nil {
		return true
	}
	return now.Sub(*lastActive) > threshold
}

func fetchMembers(ctx context.Context, platform Platform, guildID string, policy utils.RetryPolicy) ([]*discordgo.Member, error) {
	if policy.Retryable == nil {
		policy.Retryable = errorhandler.IsRetryable
	}
	policy.OnRetry = func(attempt int, err error) {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"guild":   guildID,
			"attempt": attempt,
		}).Warnf("Failed to fetch members (attempt %d/%d)", attempt, policy.MaxAttempts)
	}

	return utils.RetryValue(ctx, policy, func() ([]*discordgo.Member, error) {
		return platform.GuildMembers(ctx, guildID)
	})
}
