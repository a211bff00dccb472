package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

const membersPageSize = 1000

// SessionPlatform implements services.Platform on a discordgo session.
// Every REST call waits on a shared limiter.
type SessionPlatform struct {
	session *discordgo.Session
	limiter *rate.Limiter
}

func NewSessionPlatform(session *discordgo.Session, limit float64, burst int) *SessionPlatform {
	if burst < 1 {
		burst = 1
	}
	return &SessionPlatform{
		session: session,
		limiter: rate.NewLimiter(rate.Limit(limit), burst),
	}
}

func (p *SessionPlatform) GuildMembers(ctx context.Context, guildID string) ([]*discordgo.Member, error) {
	var members []*discordgo.Member
	after := ""

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := p.session.GuildMembers(guildID, after, membersPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch members of guild %s: %w", guildID, err)
		}
		members = append(members, page...)

		if len(page) < membersPageSize || page[len(page)-1].User == nil {
			break
		}
		after = page[len(page)-1].User.ID
	}

	for _, member := range members {
		member.GuildID = guildID
	}
	return members, nil
}

func (p *SessionPlatform) GuildName(guildID string) string {
	if guild, err := p.session.State.Guild(guildID); err == nil && guild.Name != "" {
		return guild.Name
	}
	return guildID
}

func (p *SessionPlatform) GuildMemberCount(guildID string) (int, error) {
	if guild, err := p.session.State.Guild(guildID); err == nil && guild.MemberCount > 0 {
		return guild.MemberCount, nil
	}

	guild, err := p.session.GuildWithCounts(guildID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch guild %s: %w", guildID, err)
	}
	return guild.ApproximateMemberCount, nil
}

func (p *SessionPlatform) SendDirectMessage(ctx context.Context, userID, content string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	channel, err := p.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to create DM channel: %w", err)
	}

	if _, err := p.session.ChannelMessageSend(channel.ID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send DM: %w", err)
	}
	return nil
}

func (p *SessionPlatform) KickMember(ctx context.Context, guildID, userID, reason string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	return p.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
}

func (p *SessionPlatform) SendChannelEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := p.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send embed to channel %s: %w", channelID, err)
	}
	return nil
}

func (p *SessionPlatform) SetWatchingStatus(name string) error {
	return p.session.UpdateWatchStatus(0, name)
}
