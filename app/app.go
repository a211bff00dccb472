package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"InactivityBot/bot"
	"InactivityBot/configuration"
	"InactivityBot/database"
	"InactivityBot/logger"
	"InactivityBot/services"
	"InactivityBot/utils"
	"InactivityBot/webserver"

	"github.com/bwmarrin/discordgo"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// App owns the process-wide connections and the services built on them.
type App struct {
	Config  *configuration.Config
	DB      *gorm.DB
	Session *discordgo.Session
	Bot     *bot.Bot
	Sweeper *services.Sweeper

	server *http.Server
}

// New connects to the database and prepares the Discord session. It blocks
// until the database is reachable or ctx is cancelled.
func New(ctx context.Context, cfg *configuration.Config) (*App, error) {
	db, err := database.Connect(ctx, cfg.DSN(), cfg.Database.ReconnectDelay)
	if err != nil {
		return nil, err
	}

	session, err := bot.NewSession(cfg.Discord.Token)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}

	store := database.NewActivityStore(db)
	platform := bot.NewSessionPlatform(session, cfg.Discord.RESTRateLimit, cfg.Discord.RESTBurst)

	fetchPolicy := utils.RetryPolicy{
		MaxAttempts: cfg.Sweep.FetchRetryAttempts,
		Delay:       cfg.Sweep.FetchRetryDelay,
	}
	kickPolicy := utils.RetryPolicy{
		MaxAttempts: cfg.Sweep.KickRetryAttempts,
		Delay:       cfg.Sweep.KickRetryDelay,
	}

	tracker := services.NewTracker(store, cfg)
	syncer := services.NewSyncer(platform, store, cfg, fetchPolicy)
	remover := services.NewRemover(platform, store, kickPolicy, cfg.Sweep.ThresholdUnit)
	sweeper := services.NewSweeper(platform, store, cfg, remover, fetchPolicy, cfg.Sweep.ThresholdUnit)

	return &App{
		Config:  cfg,
		DB:      db,
		Session: session,
		Bot:     bot.New(session, cfg, platform, tracker, syncer, sweeper),
		Sweeper: sweeper,
	}, nil
}

// Start opens the gateway, the database health monitor and the web server.
func (a *App) Start(ctx context.Context) error {
	go database.MonitorHealth(ctx, a.DB, a.Config.Database.ReconnectDelay)

	a.server = webserver.Start(a.Config.Port, func(ctx context.Context) error {
		return database.Ping(ctx, a.DB)
	})

	if err := a.Bot.Start(ctx); err != nil {
		return fmt.Errorf("failed to start Discord bot: %w", err)
	}
	logger.Log.Info("Discord bot started successfully")
	return nil
}

// Close shuts down the web server, the database and the Discord session.
func (a *App) Close() error {
	var errs []error

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("error stopping web server: %w", err))
		}
	}

	if err := database.Close(a.DB); err != nil {
		errs = append(errs, fmt.Errorf("error closing database connection: %w", err))
	} else {
		logger.Log.Info("Database connection closed.")
	}

	if err := a.Bot.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing Discord session: %w", err))
	} else {
		logger.Log.Info("Discord session closed.")
	}

	return errors.Join(errs...)
}
