package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// Current version of each config file.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
	CurrentWorkerVersion = 1
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig
	Bot    BotConfig
	Worker WorkerConfig
}

// CommonConfig contains configuration shared between bot and worker.
type CommonConfig struct {
	// Version of the common config.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	Retry      Retry      `koanf:"retry"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
}

// BotConfig contains Discord bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version int `koanf:"version"`
	// Discord configuration.
	Discord Discord `koanf:"discord"`
	// Leaderboard rendering and refresh configuration.
	Leaderboard Leaderboard `koanf:"leaderboard"`
	// In-memory result cache configuration.
	Cache Cache `koanf:"cache"`
	// Per-user event rate limiting.
	RateLimit RateLimit `koanf:"rate_limit"`
	// Tracking feature flags.
	Tracking Tracking `koanf:"tracking"`
	// Batched database write configuration.
	Batch Batch `koanf:"batch"`
}

// WorkerConfig contains worker specific configuration.
type WorkerConfig struct {
	// Version of the worker config.
	Version int `koanf:"version"`
	// Maintenance interval in seconds.
	MaintenanceInterval int `koanf:"maintenance_interval"`
	// Days to keep cached user names before purging.
	UserCacheRetentionDays int `koanf:"user_cache_retention_days"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Enable pprof debugging.
	EnablePprof bool `koanf:"enable_pprof"`
	// pprof server port.
	PprofPort int `koanf:"pprof_port"`
}

// Retry contains database retry configuration.
type Retry struct {
	// Maximum retry attempts.
	MaxRetries uint64 `koanf:"max_retries"`
	// Initial retry delay in milliseconds.
	Delay int `koanf:"delay"`
	// Maximum retry delay in milliseconds.
	MaxDelay int `koanf:"max_delay"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
	// Guild whose activity is tracked and rendered.
	GuildID uint64 `koanf:"guild_id"`
	// Channel where the message leaderboard is posted.
	MessageChannelID uint64 `koanf:"message_channel_id"`
	// Channel where the voice leaderboard is posted.
	VoiceChannelID uint64 `koanf:"voice_channel_id"`
	// User IDs allowed to run admin subcommands.
	AdminIDs []uint64 `koanf:"admin_ids"`
}

// Leaderboard contains leaderboard rendering configuration.
type Leaderboard struct {
	// Number of entries to render (capped at MaxSize).
	Size int `koanf:"size"`
	// Hard cap on entries per board.
	MaxSize int `koanf:"max_size"`
	// Seconds between scheduled board refreshes.
	UpdateInterval int `koanf:"update_interval"`
	// Days between full counter resets.
	RefreshDays int `koanf:"refresh_days"`
}

// Cache contains in-memory cache configuration.
type Cache struct {
	// Maximum number of cached entries.
	MaxSize int `koanf:"max_size"`
	// Default TTL in seconds.
	TTL int `koanf:"ttl"`
	// TTL in seconds for voice boards, which change while sessions are open.
	VoiceTTL int `koanf:"voice_ttl"`
}

// RateLimit contains per-user event rate limiting configuration.
type RateLimit struct {
	// Maximum tracked events per user per window.
	MaxEvents int `koanf:"max_events"`
	// Window length in seconds.
	Window int `koanf:"window"`
}

// Tracking contains feature flags for activity tracking.
type Tracking struct {
	// Enable message count tracking.
	Messages bool `koanf:"messages"`
	// Enable voice session tracking.
	Voice bool `koanf:"voice"`
}

// Batch contains batched database write configuration.
type Batch struct {
	// Pending operations that trigger an early flush.
	FlushSize int `koanf:"flush_size"`
	// Flush interval in seconds.
	FlushInterval int `koanf:"flush_interval"`
	// Queued operation buffer size.
	BufferSize int `koanf:"buffer_size"`
}

// LoadConfig loads the configuration from the specified file.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".pulseboard",
		homeDir + "/.pulseboard/config",
		"/etc/pulseboard/config",
		"/app/config",
		"config",
		".",
	}

	// Load all config files
	var usedConfigPath string

	configFiles := []string{"common", "bot", "worker"}
	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range configPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)
			if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
				configLoaded = true

				if usedConfigPath == "" {
					usedConfigPath = path
				}

				break
			}
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Check versions for each config file
	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("bot", config.Bot.Version, CurrentBotVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("worker", config.Worker.Version, CurrentWorkerVersion); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// IsAdmin checks whether a user ID is in the configured admin list.
func (d *Discord) IsAdmin(userID uint64) bool {
	for _, id := range d.AdminIDs {
		if id == userID {
			return true
		}
	}

	return false
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf("%w: %s.toml (got: %d, expected: %d)",
			ErrConfigVersionMismatch, name, current, expected)
	}

	return nil
}
