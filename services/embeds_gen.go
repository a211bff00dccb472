package services

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

const kickLogColor = 0xFF4040

// CreateKickLogEmbed builds the audit entry posted to a guild's log channel.
func CreateKickLogEmbed(member *discordgo.Member, reason string, lastActive *time.Time, now time.Time) *discordgo.MessageEmbed {
	lastActiveValue := "Never active"
	if lastActive != nil {
		lastActiveValue = fmt.Sprintf("<t:%d:F>", lastActive.Unix())
	}

	embed := &discordgo.MessageEmbed{
		Title: "Member Auto-Kicked",
		Color: kickLogColor,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "User",
				Value: fmt.Sprintf("%s (%s)", member.User.String(), member.User.ID),
			},
			{
				Name:  "Reason",
				Value: reason,
			},
			{
				Name:  "Last Active",
				Value: lastActiveValue,
			},
		},
		Timestamp: now.Format(time.RFC3339),
	}

	if avatar := member.User.AvatarURL(""); avatar != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: avatar}
	}

	return embed
}

// FormatInactivity renders elapsed as a whole number of units, e.g. "3 days".
func FormatInactivity(elapsed, unit time.Duration) string {
	name := unitName(unit)
	if name == "" {
		return FormatDuration(elapsed)
	}

	count := int64(elapsed / unit)
	if count == 1 {
		return fmt.Sprintf("1 %s", name)
	}
	return fmt.Sprintf("%d %ss", count, name)
}

func unitName(unit time.Duration) string {
	switch unit {
	case 7 * 24 * time.Hour:
		return "week"
	case 24 * time.Hour:
		return "day"
	case time.Hour:
		return "hour"
	case time.Minute:
		return "minute"
	case time.Second:
		return "second"
	}
	return ""
}

func FormatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	} else if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
