package configuration

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"InactivityBot/errorhandler"
	"InactivityBot/logger"
	"InactivityBot/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultDBVar = "?charset=utf8mb4&parseTime=True&loc=Local"

type Config struct {
	// Environment
	Environment string
	LogDir      string
	LogLevel    string
	Port        string
	ConfigFile  string

	// Database Settings
	Database struct {
		DSN            string
		User           string
		Password       string
		Name           string
		Host           string
		Port           string
		Var            string
		ReconnectDelay time.Duration
	}

	// Discord Settings
	Discord struct {
		Token         string
		RESTRateLimit float64
		RESTBurst     int
	}

	// Sweep timing and retry settings
	Sweep struct {
		Interval           time.Duration
		InitialDelay       time.Duration
		SyncDelay          time.Duration
		ThresholdUnit      time.Duration
		FetchRetryAttempts int
		FetchRetryDelay    time.Duration
		KickRetryAttempts  int
		KickRetryDelay     time.Duration
	}

	Servers []models.ServerConfig
}

// Load reads .env, the environment and the server list file named by CONFIG_FILE.
func Load() (*Config, error) {
	logger.Log.Info("Loading configuration...")

	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
		logger.Log.Warn("No .env file found, using process environment")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{}
	cfg.Environment = v.GetString("environment")
	cfg.LogDir = v.GetString("log_dir")
	cfg.LogLevel = v.GetString("log_level")
	cfg.Port = v.GetString("port")
	cfg.ConfigFile = v.GetString("config_file")

	cfg.Database.DSN = v.GetString("database_dsn")
	cfg.Database.User = v.GetString("db_user")
	cfg.Database.Password = v.GetString("db_password")
	cfg.Database.Name = v.GetString("db_name")
	cfg.Database.Host = v.GetString("db_host")
	cfg.Database.Port = v.GetString("db_port")
	cfg.Database.Var = v.GetString("db_var")
	cfg.Database.ReconnectDelay = v.GetDuration("db_reconnect_delay")

	cfg.Discord.Token = v.GetString("discord_token")
	cfg.Discord.RESTRateLimit = v.GetFloat64("rest_rate_limit")
	cfg.Discord.RESTBurst = v.GetInt("rest_burst")

	cfg.Sweep.Interval = v.GetDuration("sweep_interval")
	cfg.Sweep.InitialDelay = v.GetDuration("sweep_initial_delay")
	cfg.Sweep.SyncDelay = v.GetDuration("sync_delay")
	cfg.Sweep.ThresholdUnit = v.GetDuration("threshold_unit")
	cfg.Sweep.FetchRetryAttempts = v.GetInt("fetch_retry_attempts")
	cfg.Sweep.FetchRetryDelay = v.GetDuration("fetch_retry_delay")
	cfg.Sweep.KickRetryAttempts = v.GetInt("kick_retry_attempts")
	cfg.Sweep.KickRetryDelay = v.GetDuration("kick_retry_delay")

	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel(cfg.Environment)
	}

	servers, err := LoadServers(cfg.ConfigFile)
	if err != nil {
		return nil, errorhandler.NewConfigurationError(err, "server list")
	}
	cfg.Servers = servers

	if err := cfg.validate(); err != nil {
		return nil, errorhandler.NewConfigurationError(err, "validation failed")
	}

	cfg.logConfigurationValues()
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "production")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("port", "3000")
	v.SetDefault("config_file", "config.yaml")
	v.SetDefault("db_var", defaultDBVar)
	v.SetDefault("db_reconnect_delay", 5*time.Second)
	v.SetDefault("rest_rate_limit", 5.0)
	v.SetDefault("rest_burst", 5)
	v.SetDefault("sweep_interval", time.Hour)
	v.SetDefault("sweep_initial_delay", 5*time.Minute)
	v.SetDefault("sync_delay", 10*time.Second)
	v.SetDefault("threshold_unit", 24*time.Hour)
	v.SetDefault("fetch_retry_attempts", 3)
	v.SetDefault("fetch_retry_delay", 5*time.Second)
	v.SetDefault("kick_retry_attempts", 3)
	v.SetDefault("kick_retry_delay", 2*time.Second)
}

// defaultLogLevel is used when LOG_LEVEL is unset.
func defaultLogLevel(environment string) string {
	if strings.EqualFold(environment, "development") {
		return "debug"
	}
	return "info"
}

// LoadServers reads the servers list from a YAML, JSON or TOML file.
func LoadServers(path string) ([]models.ServerConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read server configuration %s: %w", path, err)
	}

	var servers []models.ServerConfig
	if err := v.UnmarshalKey("servers", &servers); err != nil {
		return nil, fmt.Errorf("failed to parse server configuration %s: %w", path, err)
	}

	for i := range servers {
		servers[i].ID = strings.TrimSpace(servers[i].ID)
		servers[i].LogChannelID = strings.TrimSpace(servers[i].LogChannelID)
	}
	return servers, nil
}

// DSN returns the MySQL connection string.
func (c *Config) DSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name, c.Database.Var)
}

// ActiveServers returns the servers with the active flag set.
func (c *Config) ActiveServers() []models.ServerConfig {
	var active []models.ServerConfig
	for _, server := range c.Servers {
		if server.Status {
			active = append(active, server)
		}
	}
	return active
}

// ActiveServer returns the configuration of guildID if it is active.
func (c *Config) ActiveServer(guildID string) (models.ServerConfig, bool) {
	for _, server := range c.Servers {
		if server.ID == guildID {
			return server, server.Status
		}
	}
	return models.ServerConfig{}, false
}

func (c *Config) validate() error {
	var missingVars []string

	if c.Discord.Token == "" {
		missingVars = append(missingVars, "DISCORD_TOKEN")
	}
	if c.Database.DSN == "" {
		requiredDbVars := map[string]string{
			"DB_USER": c.Database.User,
			"DB_NAME": c.Database.Name,
			"DB_HOST": c.Database.Host,
			"DB_PORT": c.Database.Port,
		}
		for key, value := range requiredDbVars {
			if value == "" {
				missingVars = append(missingVars, key)
			}
		}
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.Sweep.ThresholdUnit <= 0 {
		return fmt.Errorf("THRESHOLD_UNIT must be positive")
	}

	return ValidateServers(c.Servers)
}

// ValidateServers checks ids are present and unique and active thresholds positive.
func ValidateServers(servers []models.ServerConfig) error {
	seen := make(map[string]bool, len(servers))
	for i, server := range servers {
		if server.ID == "" {
			return fmt.Errorf("server entry %d has no id", i)
		}
		if seen[server.ID] {
			return fmt.Errorf("server %s is configured more than once", server.ID)
		}
		seen[server.ID] = true

		if server.Status && server.Duration <= 0 {
			return fmt.Errorf("server %s is active but has a non-positive duration", server.ID)
		}
	}
	return nil
}

func (c *Config) logConfigurationValues() {
	logger.Log.Infof("Environment: %s, log level: %s", c.Environment, c.LogLevel)
	logger.Log.Infof("Loaded sweep settings: SWEEP_INTERVAL=%v, SWEEP_INITIAL_DELAY=%v, SYNC_DELAY=%v, "+
		"THRESHOLD_UNIT=%v, FETCH_RETRY_ATTEMPTS=%d, FETCH_RETRY_DELAY=%v, KICK_RETRY_ATTEMPTS=%d, KICK_RETRY_DELAY=%v",
		c.Sweep.Interval,
		c.Sweep.InitialDelay,
		c.Sweep.SyncDelay,
		c.Sweep.ThresholdUnit,
		c.Sweep.FetchRetryAttempts,
		c.Sweep.FetchRetryDelay,
		c.Sweep.KickRetryAttempts,
		c.Sweep.KickRetryDelay)

	active := c.ActiveServers()
	logger.Log.Infof("Monitoring %d active servers", len(active))
	for _, server := range c.Servers {
		status := "INACTIVE"
		if server.Status {
			status = "ACTIVE"
		}
		logger.Log.Infof("Server %s: %s (%g x %v inactivity threshold)", server.ID, status, server.Duration, c.Sweep.ThresholdUnit)
	}
}
