package services

import (
	"fmt"

	"InactivityBot/logger"
)

// UpdatePresence sets the bot status to the number of members watched
// across the active guilds.
func UpdatePresence(platform Platform, servers ServerDirectory) {
	total := 0
	for _, cfg := range servers.ActiveServers() {
		count, err := platform.GuildMemberCount(cfg.ID)
		if err != nil {
			logger.Log.WithError(err).WithField("guild", cfg.ID).Warn("Error counting guild members")
			continue
		}
		total += count
	}

	status := fmt.Sprintf("%d members", total)
	if err := platform.SetWatchingStatus(status); err != nil {
		logger.Log.WithError(err).Error("Error updating status")
		return
	}
	logger.Log.Infof("Status updated: Watching %s", status)
}
