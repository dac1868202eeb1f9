package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"tinyme-go/internal/compressor"
	"tinyme-go/internal/logger"
	"tinyme-go/internal/options"
	"tinyme-go/internal/preset"
)

// Config represents the main configuration structure
type Config struct {
	OutputDirectory     string         `mapstructure:"output_directory"`
	SupportedExtensions []string       `mapstructure:"supported_extensions"`
	Defaults            DefaultsConfig `mapstructure:"defaults"`
	Backend             BackendConfig  `mapstructure:"backend"`
	Server              ServerConfig   `mapstructure:"server"`
	Previews            PreviewsConfig `mapstructure:"previews"`
	Logging             LoggingConfig  `mapstructure:"logging"`
}

// DefaultsConfig holds the starting compression options
type DefaultsConfig struct {
	Quality             int    `mapstructure:"quality"`
	Preset              string `mapstructure:"preset"`
	MaintainAspectRatio bool   `mapstructure:"maintain_aspect_ratio"`
	Format              string `mapstructure:"format"`
	MaxWidth            int    `mapstructure:"max_width"`
	MaxHeight           int    `mapstructure:"max_height"`
}

// BackendConfig tunes the compression backend
type BackendConfig struct {
	Workers          int    `mapstructure:"workers"`
	FFmpegPath       string `mapstructure:"ffmpeg_path"`
	PreserveMetadata bool   `mapstructure:"preserve_metadata"`
	ProgressBuffer   int    `mapstructure:"progress_buffer"`
}

// ServerConfig contains web server settings
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// PreviewsConfig controls whether compressed bytes are kept in memory
type PreviewsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		SupportedExtensions: []string{".jpg", ".jpeg", ".png", ".webp"},
		Defaults: DefaultsConfig{
			Quality:             80,
			MaintainAspectRatio: true,
		},
		Backend: BackendConfig{
			FFmpegPath:       "ffmpeg",
			PreserveMetadata: true,
			ProgressBuffer:   256,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Previews: PreviewsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "tinyme.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.tinyme")
		v.AddConfigPath("/etc/tinyme")
	}

	v.SetEnvPrefix("TINYME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	// Decode into a zero Config: mapstructure merges slices by index, so a
	// prefilled default list could never shrink. Defaults come from bindDefaults.
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// bindDefaults registers every key so AutomaticEnv can override values that
// are absent from the config file.
func bindDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("output_directory", c.OutputDirectory)
	v.SetDefault("supported_extensions", c.SupportedExtensions)
	v.SetDefault("defaults.quality", c.Defaults.Quality)
	v.SetDefault("defaults.preset", c.Defaults.Preset)
	v.SetDefault("defaults.maintain_aspect_ratio", c.Defaults.MaintainAspectRatio)
	v.SetDefault("defaults.format", c.Defaults.Format)
	v.SetDefault("defaults.max_width", c.Defaults.MaxWidth)
	v.SetDefault("defaults.max_height", c.Defaults.MaxHeight)
	v.SetDefault("backend.workers", c.Backend.Workers)
	v.SetDefault("backend.ffmpeg_path", c.Backend.FFmpegPath)
	v.SetDefault("backend.preserve_metadata", c.Backend.PreserveMetadata)
	v.SetDefault("backend.progress_buffer", c.Backend.ProgressBuffer)
	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("previews.enabled", c.Previews.Enabled)
	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.file_path", c.Logging.FilePath)
	v.SetDefault("logging.max_size", c.Logging.MaxSize)
	v.SetDefault("logging.max_backups", c.Logging.MaxBackups)
	v.SetDefault("logging.max_age", c.Logging.MaxAge)
	v.SetDefault("logging.compress", c.Logging.Compress)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.OutputDirectory != "" && !isValidPath(c.OutputDirectory) {
		return fmt.Errorf("output_directory does not exist or is not accessible: %s", c.OutputDirectory)
	}

	if c.Defaults.Preset != "" {
		if _, err := preset.Resolve(preset.ID(c.Defaults.Preset)); err != nil {
			return fmt.Errorf("defaults.preset: %w", err)
		}
	}

	if _, err := c.BaseOptions(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}

	c.SupportedExtensions = normalizeExtensions(c.SupportedExtensions)
	if len(c.SupportedExtensions) == 0 {
		c.SupportedExtensions = DefaultConfig().SupportedExtensions
	}

	if c.Backend.Workers < 0 {
		c.Backend.Workers = 0
	}
	if c.Backend.ProgressBuffer <= 0 {
		c.Backend.ProgressBuffer = 256
	}
	if c.Backend.FFmpegPath == "" {
		c.Backend.FFmpegPath = "ffmpeg"
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging.level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// BaseOptions resolves the defaults section, applying defaults.preset first
// when one is set.
func (c *Config) BaseOptions() (options.Options, error) {
	format, err := options.ParseFormat(c.Defaults.Format)
	if err != nil {
		return options.Options{}, err
	}
	base := options.Options{
		Quality:             c.Defaults.Quality,
		MaxWidth:            c.Defaults.MaxWidth,
		MaxHeight:           c.Defaults.MaxHeight,
		Format:              format,
		MaintainAspectRatio: c.Defaults.MaintainAspectRatio,
	}
	return options.Resolve(base, preset.ID(c.Defaults.Preset))
}

// BackendSettings converts the backend section for compressor.NewImagingBackend.
func (c *Config) BackendSettings() compressor.Config {
	return compressor.Config{
		Workers:          c.Backend.Workers,
		FFmpegPath:       c.Backend.FFmpegPath,
		PreserveMetadata: c.Backend.PreserveMetadata,
		ProgressBuffer:   c.Backend.ProgressBuffer,
	}
}

// LoggerSettings converts the logging section for logger.NewLogger.
func (c *Config) LoggerSettings(console bool) logger.LoggerConfig {
	return logger.LoggerConfig{
		Level:      strings.ToLower(c.Logging.Level),
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
		Compress:   c.Logging.Compress,
		Console:    console,
	}
}

// normalizeExtensions ensures all extensions start with a dot and are lowercase
func normalizeExtensions(extensions []string) []string {
	seen := make(map[string]bool, len(extensions))
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if seen[ext] {
			continue
		}
		seen[ext] = true
		normalized = append(normalized, ext)
	}
	return normalized
}

// isValidPath checks that path exists and is a directory
func isValidPath(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}
