package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"InactivityBot/configuration"
	"InactivityBot/logger"
	"InactivityBot/services"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/panics"
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentMessageContent

// NewSession creates a Discord session with the intents the bot relies on.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	session.Identify.Intents = intents
	session.StateEnabled = true
	// Ready must be handled before the GuildCreate events that follow it.
	// Handlers that touch the database hand off to their own goroutine.
	session.SyncEvents = true
	return session, nil
}

// Bot routes gateway events to the moderation services.
type Bot struct {
	session  *discordgo.Session
	config   *configuration.Config
	tracker  *services.Tracker
	syncer   *services.Syncer
	sweeper  *services.Sweeper
	presence func()

	startOnce     sync.Once
	initialGuilds sync.Map
}

func New(session *discordgo.Session, cfg *configuration.Config, platform services.Platform, tracker *services.Tracker, syncer *services.Syncer, sweeper *services.Sweeper) *Bot {
	return &Bot{
		session:  session,
		config:   cfg,
		tracker:  tracker,
		syncer:   syncer,
		sweeper:  sweeper,
		presence: func() { services.UpdatePresence(platform, cfg) },
	}
}

// Start registers the event handlers and opens the gateway connection.
// Background work started by the handlers stops when ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		safely("ready", func() { b.onReady(ctx, r) })
	})
	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.onMessageCreate(ctx, m)
	})
	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
		b.onMemberAdd(ctx, m)
	})
	b.session.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if b.isInitialGuild(g.ID) {
			return
		}
		go safely("guild create", func() { b.onGuildCreate(ctx, g) })
	})
	b.session.AddHandler(func(s *discordgo.Session, g *discordgo.GuildDelete) {
		b.onGuildDelete(g)
	})
	b.session.AddHandler(func(s *discordgo.Session, _ *discordgo.Connect) {
		logger.Log.Info("Connected to Discord gateway")
	})
	b.session.AddHandler(func(s *discordgo.Session, _ *discordgo.Disconnect) {
		logger.Log.Warn("Bot disconnected from Discord, will automatically attempt to reconnect...")
	})
	b.session.AddHandler(func(s *discordgo.Session, _ *discordgo.Resumed) {
		logger.Log.Info("Bot reconnected to Discord, session resumed")
	})

	logger.Log.Info("Attempting to login to Discord...")
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("error connecting to gateway: %w", err)
	}
	return nil
}

func (b *Bot) onReady(ctx context.Context, r *discordgo.Ready) {
	logger.Log.Infof("Bot is online as %s", r.User.String())
	for _, guild := range r.Guilds {
		b.initialGuilds.Store(guild.ID, struct{}{})
	}

	b.startOnce.Do(func() {
		logger.Log.Infof("Monitoring %d active servers", len(b.config.ActiveServers()))

		go b.sweeper.Start(ctx, b.config.Sweep.InitialDelay, b.config.Sweep.Interval)

		go func() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.config.Sweep.SyncDelay):
			}
			safely("initial sync", func() {
				b.syncer.SyncAll(ctx)
				b.presence()
			})
		}()
	})
}

func (b *Bot) onMessageCreate(ctx context.Context, m *discordgo.MessageCreate) {
	go safely("message", func() { b.tracker.OnMessage(ctx, m.Message) })
}

func (b *Bot) onMemberAdd(ctx context.Context, m *discordgo.GuildMemberAdd) {
	go safely("member join", func() { b.tracker.OnMemberJoin(ctx, m.Member) })
}

// isInitialGuild reports whether guildID was part of the Ready payload and
// remembers it otherwise, so each guild is treated as new at most once.
func (b *Bot) isInitialGuild(guildID string) bool {
	_, known := b.initialGuilds.LoadOrStore(guildID, struct{}{})
	return known
}

// onGuildDelete forgets a guild the bot was removed from so that being added
// back is handled as a new join. Outages keep the guild known.
func (b *Bot) onGuildDelete(g *discordgo.GuildDelete) {
	if g.Guild == nil || g.Unavailable {
		return
	}
	b.initialGuilds.Delete(g.ID)
	logger.Log.WithField("guild", g.ID).Info("Bot was removed from a server")
}

// onGuildCreate seeds records for guilds the bot joins after startup.
func (b *Bot) onGuildCreate(ctx context.Context, g *discordgo.GuildCreate) {
	log := logger.Log.WithFields(logrus.Fields{"guild": g.ID, "name": g.Name})
	log.Info("Bot joined a new server")

	cfg, ok := b.config.ActiveServer(g.ID)
	if !ok {
		log.Warn("Server is not in active configuration, skipping member tracking")
		return
	}

	created, err := b.syncer.SyncGuild(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("Error tracking members in new server")
		return
	}
	log.Infof("Added %d members to tracking in new server", created)
	b.presence()
}

// Close closes the gateway connection.
func (b *Bot) Close() error {
	return b.session.Close()
}

func safely(handler string, fn func()) {
	var pc panics.Catcher
	pc.Try(fn)
	if recovered := pc.Recovered(); recovered != nil {
		logger.Log.WithError(recovered.AsError()).WithField("handler", handler).Error("Recovered from panic in event handler")
	}
}
