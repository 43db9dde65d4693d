package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	DataDir     string `yaml:"data_dir"`
	Concurrency int    `yaml:"concurrency"`

	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Detection DetectionConfig `yaml:"detection"`
	Shots     ShotsConfig     `yaml:"shots"`
	Export    ExportConfig    `yaml:"export"`
	Server    ServerConfig    `yaml:"server"`
}

type FFmpegConfig struct {
	Threads int `yaml:"threads"`
}

// DetectionConfig tunes scene-cut detection. Threshold is on a 0-100 scale.
type DetectionConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// ShotsConfig holds the defaults applied to newly detected shots.
type ShotsConfig struct {
	Prefix   string `yaml:"prefix"`
	NewStart int    `yaml:"new_start"`
}

// ExportConfig selects which media and timeline files an export writes.
type ExportConfig struct {
	Directory      string `yaml:"directory"`
	Thumbnails     bool   `yaml:"thumbnails"`
	Movies         bool   `yaml:"movies"`
	Audio          bool   `yaml:"audio"`
	EDL            bool   `yaml:"edl"`
	OTIO           bool   `yaml:"otio"`
	FCPXML         bool   `yaml:"fcp_xml"`
	ShotList       bool   `yaml:"shot_list"`
	ThumbnailWidth int    `yaml:"thumbnail_width"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv copies a .env file in the working directory into the process
// environment. Variables already set win. It reports whether a file was read.
func LoadDotEnv() bool {
	return godotenv.Load() == nil
}

// applyEnv overrides file values with SHOTLIST_* environment variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv("SHOTLIST_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("SHOTLIST_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SHOTLIST_EXPORT_DIR"); v != "" {
		c.Export.Directory = v
	}
	if v := os.Getenv("SHOTLIST_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SHOTLIST_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	if v := os.Getenv("SHOTLIST_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SHOTLIST_THRESHOLD: %w", err)
		}
		c.Detection.Threshold = f
	}
	return nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects values the pipeline cannot work with.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Detection.Threshold < 0 || c.Detection.Threshold > 100 {
		return fmt.Errorf("detection.threshold must be within 0-100, got %v", c.Detection.Threshold)
	}
	if c.Export.ThumbnailWidth < 0 {
		return fmt.Errorf("export.thumbnail_width must not be negative, got %d", c.Export.ThumbnailWidth)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		DataDir:     filepath.Join(homeDir(), ".shotlist"),
		Concurrency: 4,
		FFmpeg: FFmpegConfig{
			Threads: 0,
		},
		Detection: DetectionConfig{
			Threshold: 45,
		},
		Shots: ShotsConfig{
			Prefix:   "",
			NewStart: 101,
		},
		Export: ExportConfig{
			Thumbnails:     true,
			Movies:         true,
			Audio:          true,
			EDL:            true,
			OTIO:           true,
			ShotList:       true,
			ThumbnailWidth: 320,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8765",
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./shotlist.yaml",
		"./shotlist.yml",
		filepath.Join(homeDir(), ".shotlist", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
