package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Library LibraryConfig `toml:"library"`
	Player  PlayerConfig  `toml:"player"`
	Artists ArtistsConfig `toml:"artists"`
	Logging LoggingConfig `toml:"logging"`
	Tunnel  TunnelConfig  `toml:"tunnel"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port           string `toml:"port"`
	Host           string `toml:"host"`
	StaticDir      string `toml:"static_dir"`
	EnableCORS     bool   `toml:"enable_cors"`
	ReadTimeout    int    `toml:"read_timeout_seconds"`
	RequestLogging bool   `toml:"request_logging"`
}

// LibraryConfig contains music library configuration
type LibraryConfig struct {
	MediaPath        string   `toml:"media_path"`
	DatabasePath     string   `toml:"database_path"`
	SupportedFormats []string `toml:"supported_formats"`
	ScanOnStartup    bool     `toml:"scan_on_startup"`
	WatchForChanges  bool     `toml:"watch_for_changes"`
}

// PlayerConfig tunes the playback session
type PlayerConfig struct {
	LoadTimeoutSeconds int `toml:"load_timeout_seconds"`
	SearchDebounceMs   int `toml:"search_debounce_ms"`
	DefaultVolume      int `toml:"default_volume"`
}

// ArtistsConfig controls static artist page generation
type ArtistsConfig struct {
	Enabled   bool   `toml:"enabled"`
	OutputDir string `toml:"output_dir"`
	InfoPath  string `toml:"info_path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// TunnelConfig contains ngrok tunnel configuration
type TunnelConfig struct {
	Enabled   bool   `toml:"enabled"`
	AuthToken string `toml:"auth_token"`
	Domain    string `toml:"domain"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Host:           "0.0.0.0",
			StaticDir:      "./static",
			EnableCORS:     true,
			ReadTimeout:    30,
			RequestLogging: true,
		},
		Library: LibraryConfig{
			MediaPath:        "./music",
			DatabasePath:     "./player.db",
			SupportedFormats: []string{".mp3", ".flac", ".wav"},
			ScanOnStartup:    true,
			WatchForChanges:  true,
		},
		Player: PlayerConfig{
			LoadTimeoutSeconds: 15,
			SearchDebounceMs:   300,
			DefaultVolume:      100,
		},
		Artists: ArtistsConfig{
			Enabled:   true,
			OutputDir: "./static/artists",
			InfoPath:  "./static/artistInfo.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
		Tunnel: TunnelConfig{
			Enabled:   false,
			AuthToken: "",
			Domain:    "",
		},
	}
}

// LoadConfig loads configuration from a TOML file. A missing file is created
// with defaults so a fresh install starts with a documented config on disk.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
		return cfg, nil
	}

	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# Player Configuration
# All options for the music player server. Edit the values below to
# customize your setup.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Library.MediaPath == "" {
		return fmt.Errorf("library media path cannot be empty")
	}
	if c.Library.DatabasePath == "" {
		return fmt.Errorf("library database path cannot be empty")
	}
	if len(c.Library.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported audio format must be specified")
	}

	if c.Player.LoadTimeoutSeconds < 1 {
		return fmt.Errorf("player load timeout must be at least 1 second")
	}
	if c.Player.SearchDebounceMs < 0 {
		return fmt.Errorf("search debounce cannot be negative")
	}
	if c.Player.DefaultVolume < 0 || c.Player.DefaultVolume > 100 {
		return fmt.Errorf("default volume must be between 0 and 100")
	}

	if c.Artists.Enabled {
		if c.Artists.OutputDir == "" {
			return fmt.Errorf("artist page output directory cannot be empty")
		}
		if c.Artists.InfoPath == "" {
			return fmt.Errorf("artist info path cannot be empty")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	if c.Tunnel.Enabled && c.Tunnel.AuthToken == "" {
		return fmt.Errorf("tunnel auth token is required when the tunnel is enabled")
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// IsFormatSupported checks if an audio format is supported
func (c *Config) IsFormatSupported(format string) bool {
	for _, supported := range c.Library.SupportedFormats {
		if supported == format {
			return true
		}
	}
	return false
}
