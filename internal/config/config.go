// Package config loads the server configuration from defaults, an optional
// YAML file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Content sources.
const (
	SourceGiphy  = "giphy"
	SourceStatic = "static"
)

// Sensor modes.
const (
	SensorSimulated = "simulated"
	SensorFeed      = "feed"
)

// Config is the complete server configuration.
//
// Env tags carry no defaults so values from the YAML file survive unless the
// variable is actually set.
type Config struct {
	Addr    string      `yaml:"addr" env:"HTTP_ADDR"`
	Game    GameConfig  `yaml:"game"`
	Content ContentConf `yaml:"content"`
	Sensor  SensorConf  `yaml:"sensor"`
	Limits  LimitConf   `yaml:"limits"`
	Redis   RedisConf   `yaml:"redis"`
	OTel    OTelConf    `yaml:"otel"`
	Log     LogConf     `yaml:"log"`
}

// GameConfig tunes the state machine and scoring.
type GameConfig struct {
	RoundDuration time.Duration `yaml:"round_duration" env:"ROUND_DURATION"`
	LossThreshold float64       `yaml:"loss_threshold" env:"LOSS_THRESHOLD"`
	WindowSize    int           `yaml:"window_size" env:"SCORE_WINDOW"`
	Categories    []string      `yaml:"categories" env:"CATEGORIES" envSeparator:","`
	// Seed of 0 picks a random seed at startup.
	Seed int64 `yaml:"seed" env:"SEED"`
}

// ContentConf selects and configures the content source.
type ContentConf struct {
	Source        string        `yaml:"source" env:"CONTENT_SOURCE"`
	BaseURL       string        `yaml:"base_url" env:"GIPHY_BASE_URL"`
	APIKey        string        `yaml:"api_key" env:"GIPHY_API_KEY"`
	Limit         int           `yaml:"limit" env:"GIPHY_LIMIT"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT"`
	LoadTimeout   time.Duration `yaml:"load_timeout" env:"LOAD_TIMEOUT"`
	MaxMediaBytes int           `yaml:"max_media_bytes" env:"MAX_MEDIA_BYTES"`
	// StaticItems are media URLs served by the static source.
	StaticItems   []string      `yaml:"static_items" env:"STATIC_ITEMS" envSeparator:","`
}

// SensorConf selects the camera and its sampling parameters.
type SensorConf struct {
	Mode             string  `yaml:"mode" env:"SENSOR_MODE"`
	FPS              float64 `yaml:"fps" env:"SENSOR_FPS"`
	SmileProbability float64 `yaml:"smile_probability" env:"SENSOR_SMILE_PROBABILITY"`
	Decimation       int     `yaml:"decimation" env:"SENSOR_DECIMATION"`
	SmileThreshold   float64 `yaml:"smile_threshold" env:"SMILE_THRESHOLD"`
}

// LimitConf bounds POST request rates per client.
type LimitConf struct {
	RPS   float64 `yaml:"rps" env:"RATE_LIMIT_RPS"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST"`
}

// RedisConf enables the Redis view sink when Addr is set.
type RedisConf struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Channel  string `yaml:"channel" env:"REDIS_CHANNEL"`
}

// OTelConf enables trace export when Endpoint is set.
type OTelConf struct {
	Endpoint    string `yaml:"endpoint" env:"OTEL_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
}

// LogConf controls the root logger.
type LogConf struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr: ":8080",
		Game: GameConfig{
			RoundDuration: 5 * time.Second,
			LossThreshold: 0.5,
			WindowSize:    5,
			Categories:    []string{"funny dog", "funny cat", "funny falls", "funny animals"},
		},
		Content: ContentConf{
			Source:        SourceGiphy,
			BaseURL:       "https://api.giphy.com/v1/gifs",
			Limit:         50,
			FetchTimeout:  10 * time.Second,
			LoadTimeout:   15 * time.Second,
			MaxMediaBytes: 16 << 20,
		},
		Sensor: SensorConf{
			Mode:             SensorSimulated,
			FPS:              30,
			SmileProbability: 0.05,
			Decimation:       4,
			SmileThreshold:   0.5,
		},
		Limits: LimitConf{
			RPS:   2,
			Burst: 5,
		},
		Redis: RedisConf{
			Channel: "laughgame:views",
		},
		OTel: OTelConf{
			ServiceName: "laughgame",
		},
		Log: LogConf{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE, then environment variables (a .env file is read first when
// present). The result is validated.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Normalize trims the category list and drops blank and repeated entries.
func (c *Config) Normalize() {
	trimmed := lo.Map(c.Game.Categories, func(s string, _ int) string { return strings.TrimSpace(s) })
	c.Game.Categories = lo.Uniq(lo.Compact(trimmed))
}

// LoadFile overlays the YAML file at path onto cfg.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Addr != "", "addr is required")
	check(c.Game.RoundDuration > 0, "game.round_duration must be positive, got %v", c.Game.RoundDuration)
	check(c.Game.LossThreshold > 0 && c.Game.LossThreshold < 1, "game.loss_threshold must be in (0,1), got %v", c.Game.LossThreshold)
	check(c.Game.WindowSize > 0, "game.window_size must be positive, got %d", c.Game.WindowSize)

	categories := lo.Map(c.Game.Categories, func(s string, _ int) string { return strings.TrimSpace(s) })
	check(len(lo.Compact(categories)) > 0, "game.categories must not be empty")
	check(!lo.Contains(categories, ""), "game.categories has blank entries")
	check(len(lo.Uniq(categories)) == len(categories), "game.categories has duplicates")

	check(lo.Contains([]string{SourceGiphy, SourceStatic}, c.Content.Source), "content.source %q is not one of giphy, static", c.Content.Source)
	if c.Content.Source == SourceGiphy {
		check(c.Content.BaseURL != "", "content.base_url is required for giphy")
		check(c.Content.APIKey != "", "content.api_key (GIPHY_API_KEY) is required for giphy")
	}
	check(c.Content.Limit > 0, "content.limit must be positive, got %d", c.Content.Limit)
	check(c.Content.FetchTimeout > 0, "content.fetch_timeout must be positive")
	check(c.Content.LoadTimeout > 0, "content.load_timeout must be positive")

	check(lo.Contains([]string{SensorSimulated, SensorFeed}, c.Sensor.Mode), "sensor.mode %q is not one of simulated, feed", c.Sensor.Mode)
	check(c.Sensor.FPS > 0, "sensor.fps must be positive, got %v", c.Sensor.FPS)
	check(c.Sensor.SmileProbability >= 0 && c.Sensor.SmileProbability <= 1, "sensor.smile_probability must be in [0,1]")
	check(c.Sensor.Decimation > 0, "sensor.decimation must be positive, got %d", c.Sensor.Decimation)
	check(c.Sensor.SmileThreshold > 0 && c.Sensor.SmileThreshold <= 1, "sensor.smile_threshold must be in (0,1]")

	check(c.Limits.RPS > 0 && c.Limits.Burst > 0, "limits.rps and limits.burst must be positive")
	if c.Redis.Addr != "" {
		check(c.Redis.Channel != "", "redis.channel is required when redis.addr is set")
	}
	check(lo.Contains([]string{"text", "json"}, strings.ToLower(c.Log.Format)), "log.format %q is not one of text, json", c.Log.Format)
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
