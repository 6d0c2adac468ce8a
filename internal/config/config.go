package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultListenAddr is where the daemon serves its control API
const DefaultListenAddr = "127.0.0.1:7878"

// Config holds application configuration
type Config struct {
	// Output format template for the now command
	// Default: "{{.Owner}} - {{.Title}}"
	OutputFormat string

	// Fixed output width for the now command (0 disables padding)
	OutputWidth int

	// Marquee scrolling for text longer than OutputWidth
	MarqueeEnabled   bool
	MarqueeSpeed     int // characters per second
	MarqueeSeparator string

	// Poll interval for progress updates (in seconds)
	PollInterval int

	// Playlist is the JSON file the catalog is loaded from
	Playlist string

	// ListenAddr is the control API address
	ListenAddr string

	SoundCloud SoundCloudConfig
	Discord    DiscordConfig
	History    HistoryConfig
}

// SoundCloudConfig holds SoundCloud API settings
type SoundCloudConfig struct {
	ClientID string
	BaseURL  string
}

// DiscordConfig holds Rich Presence settings. An empty AppID disables it.
type DiscordConfig struct {
	AppID string
}

// HistoryConfig holds play history settings
type HistoryConfig struct {
	// MinDuration is the shortest track worth recording
	MinDuration time.Duration
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	return load(getConfigDir())
}

func load(configDir string) (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	// Set defaults
	v.SetDefault("output_format", "{{.Owner}} - {{.Title}}")
	v.SetDefault("output_width", 0)
	v.SetDefault("marquee.enabled", false)
	v.SetDefault("marquee.speed", 2)
	v.SetDefault("marquee.separator", " • ")
	v.SetDefault("poll_interval", 3)
	v.SetDefault("playlist", filepath.Join(configDir, "playlist.json"))
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("soundcloud.client_id", "")
	v.SetDefault("soundcloud.base_url", "")
	v.SetDefault("discord.app_id", "")
	v.SetDefault("history.min_duration", 30*time.Second)

	// Read config file (optional - don't fail if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Read from environment variables, e.g. SCPLAYER_SOUNDCLOUD_CLIENT_ID
	v.SetEnvPrefix("SCPLAYER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map config to struct
	cfg := &Config{
		OutputFormat:     v.GetString("output_format"),
		OutputWidth:      v.GetInt("output_width"),
		MarqueeEnabled:   v.GetBool("marquee.enabled"),
		MarqueeSpeed:     v.GetInt("marquee.speed"),
		MarqueeSeparator: v.GetString("marquee.separator"),
		PollInterval:     v.GetInt("poll_interval"),
		Playlist:         v.GetString("playlist"),
		ListenAddr:       v.GetString("listen_addr"),
		SoundCloud: SoundCloudConfig{
			ClientID: v.GetString("soundcloud.client_id"),
			BaseURL:  v.GetString("soundcloud.base_url"),
		},
		Discord: DiscordConfig{
			AppID: v.GetString("discord.app_id"),
		},
		History: HistoryConfig{
			MinDuration: v.GetDuration("history.min_duration"),
		},
	}

	return cfg, nil
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "scplayer")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// Save writes configuration to file
func (c *Config) Save() error {
	return c.saveTo(filepath.Join(getConfigDir(), "config.yaml"))
}

func (c *Config) saveTo(configFile string) error {
	v := viper.New()

	// Set values in viper
	v.Set("output_format", c.OutputFormat)
	v.Set("output_width", c.OutputWidth)
	v.Set("marquee.enabled", c.MarqueeEnabled)
	v.Set("marquee.speed", c.MarqueeSpeed)
	v.Set("marquee.separator", c.MarqueeSeparator)
	v.Set("poll_interval", c.PollInterval)
	v.Set("playlist", c.Playlist)
	v.Set("listen_addr", c.ListenAddr)
	v.Set("soundcloud.client_id", c.SoundCloud.ClientID)
	v.Set("soundcloud.base_url", c.SoundCloud.BaseURL)
	v.Set("discord.app_id", c.Discord.AppID)
	v.Set("history.min_duration", c.History.MinDuration.String())

	// Write to file
	return v.WriteConfigAs(configFile)
}
