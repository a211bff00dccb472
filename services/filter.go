package services

import (
	"strings"

	"InactivityBot/models"

	"github.com/bwmarrin/discordgo"
)

// ShouldCheckMember reports whether a member holding roles is subject to
// inactivity removal. Safe roles win over monitored roles; members holding
// neither are exempt.
func ShouldCheckMember(roles []string, cfg models.ServerConfig) bool {
	if len(roles) == 0 {
		return false
	}

	if hasAnyRole(roles, normalizeRoles(cfg.SafeRoles)) {
		return false
	}
	return hasAnyRole(roles, normalizeRoles(cfg.NonSafeRoles))
}

// ShouldCheckGuildMember applies ShouldCheckMember to a Discord member.
// Members whose user or roles cannot be read are exempt.
func ShouldCheckGuildMember(member *discordgo.Member, cfg models.ServerConfig) bool {
	if member == nil || member.User == nil {
		return false
	}
	return ShouldCheckMember(member.Roles, cfg)
}

// isTrackable is ShouldCheckGuildMember restricted to human accounts.
func isTrackable(member *discordgo.Member, cfg models.ServerConfig) bool {
	if member == nil || member.User == nil || member.User.Bot {
		return false
	}
	return ShouldCheckGuildMember(member, cfg)
}

func normalizeRoles(roles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		set[role] = struct{}{}
	}
	return set
}

func hasAnyRole(roles []string, set map[string]struct{}) bool {
	for _, role := range roles {
		if _, ok := set[strings.TrimSpace(role)]; ok {
			return true
		}
	}
	return false
}
