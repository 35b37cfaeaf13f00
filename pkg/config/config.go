package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the engine configuration
type Config struct {
	Engine EngineConfig `mapstructure:"engine"`
	Filter FilterConfig `mapstructure:"filter"`
	Coach  CoachConfig  `mapstructure:"coach"`
	Voice  VoiceConfig  `mapstructure:"voice"`
	Bus    BusConfig    `mapstructure:"bus"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Log    LogConfig    `mapstructure:"log"`
}

// EngineConfig holds run-loop configuration
type EngineConfig struct {
	EvalInterval   time.Duration `mapstructure:"eval_interval"`
	SampleBuffer   int           `mapstructure:"sample_buffer"`
	Environment    string        `mapstructure:"environment"`
	RunnerWeightKg float64       `mapstructure:"runner_weight_kg"`
}

// FilterConfig holds position-filter thresholds
type FilterConfig struct {
	MaxAccuracyM    float64       `mapstructure:"max_accuracy_m"`
	MinMovementM    float64       `mapstructure:"min_movement_m"`
	MaxJumpM        float64       `mapstructure:"max_jump_m"`
	MinSpeedMPS     float64       `mapstructure:"min_speed_mps"`
	StaleRebaseline time.Duration `mapstructure:"stale_rebaseline"`
}

// CoachConfig holds notification arbitration configuration
type CoachConfig struct {
	GlobalCooldown time.Duration `mapstructure:"global_cooldown"`
	Window         time.Duration `mapstructure:"window"`
	WindowMax      int           `mapstructure:"window_max"`
	MinHistoryRuns int           `mapstructure:"min_history_runs"`
}

// VoiceConfig holds playback and speech-synthesis configuration
type VoiceConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Voice           string        `mapstructure:"voice"`
	Language        string        `mapstructure:"language"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RequestsPerSec  float64       `mapstructure:"requests_per_sec"`
	RequestBurst    int           `mapstructure:"request_burst"`
	QueueCapacity   int           `mapstructure:"queue_capacity"`
	MinPayloadBytes int           `mapstructure:"min_payload_bytes"`
	SpeakCooldown   time.Duration `mapstructure:"speak_cooldown"`
}

// BusConfig holds event-bus transport configuration
type BusConfig struct {
	Transport string `mapstructure:"transport"` // channel or redis
}

// RedisConfig holds Redis-related configuration
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
	Encoding    string `mapstructure:"encoding"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Set default values
	setDefaults()

	// Setup Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/runcore")

	// Enable environment variable reading
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Try to read config file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, continue with env vars and defaults
	}

	// Unmarshal config
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Engine defaults
	viper.SetDefault("engine.eval_interval", "5s")
	viper.SetDefault("engine.sample_buffer", 64)
	viper.SetDefault("engine.environment", "development")
	viper.SetDefault("engine.runner_weight_kg", 70.0)

	// Filter defaults
	viper.SetDefault("filter.max_accuracy_m", 50.0)
	viper.SetDefault("filter.min_movement_m", 5.0)
	viper.SetDefault("filter.max_jump_m", 100.0)
	viper.SetDefault("filter.min_speed_mps", 0.6)
	viper.SetDefault("filter.stale_rebaseline", "3s")

	// Coach defaults
	viper.SetDefault("coach.global_cooldown", "18s")
	viper.SetDefault("coach.window", "5m")
	viper.SetDefault("coach.window_max", 3)
	viper.SetDefault("coach.min_history_runs", 5)

	// Voice defaults
	viper.SetDefault("voice.base_url", "http://localhost:8580")
	viper.SetDefault("voice.voice", "coach-female-1")
	viper.SetDefault("voice.language", "en-US")
	viper.SetDefault("voice.request_timeout", "30s")
	viper.SetDefault("voice.requests_per_sec", 1.0)
	viper.SetDefault("voice.request_burst", 3)
	viper.SetDefault("voice.queue_capacity", 16)
	viper.SetDefault("voice.min_payload_bytes", 512)
	viper.SetDefault("voice.speak_cooldown", "5s")

	// Bus defaults
	viper.SetDefault("bus.transport", "channel")

	// Redis defaults
	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.read_timeout", "3s")
	viper.SetDefault("redis.write_timeout", "3s")

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.environment", "development")
	viper.SetDefault("log.encoding", "console")
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	// Validate engine config
	if cfg.Engine.EvalInterval < time.Second {
		return fmt.Errorf("eval interval must be at least 1s, got %s", cfg.Engine.EvalInterval)
	}

	if cfg.Engine.SampleBuffer < 1 {
		return fmt.Errorf("sample buffer must be at least 1")
	}

	if cfg.Engine.RunnerWeightKg <= 0 {
		return fmt.Errorf("runner weight must be positive, got %f", cfg.Engine.RunnerWeightKg)
	}

	// Validate filter config
	if cfg.Filter.MaxAccuracyM <= 0 {
		return fmt.Errorf("max accuracy must be positive")
	}

	if cfg.Filter.MinMovementM <= 0 {
		return fmt.Errorf("min movement must be positive")
	}

	if cfg.Filter.MaxJumpM <= cfg.Filter.MinMovementM {
		return fmt.Errorf("max jump (%f) must exceed min movement (%f)",
			cfg.Filter.MaxJumpM, cfg.Filter.MinMovementM)
	}

	if cfg.Filter.MinSpeedMPS < 0 {
		return fmt.Errorf("min speed cannot be negative")
	}

	// Validate coach config
	if cfg.Coach.GlobalCooldown < time.Second {
		return fmt.Errorf("global cooldown must be at least 1s")
	}

	if cfg.Coach.Window < cfg.Coach.GlobalCooldown {
		return fmt.Errorf("sliding window must not be shorter than the global cooldown")
	}

	if cfg.Coach.WindowMax < 1 {
		return fmt.Errorf("window max must be at least 1")
	}

	// Validate voice config
	if cfg.Voice.BaseURL == "" {
		return fmt.Errorf("voice base URL cannot be empty")
	}

	if cfg.Voice.RequestTimeout < time.Second {
		return fmt.Errorf("voice request timeout must be at least 1s")
	}

	if cfg.Voice.QueueCapacity < 1 {
		return fmt.Errorf("voice queue capacity must be at least 1")
	}

	if cfg.Voice.MinPayloadBytes < 0 {
		return fmt.Errorf("voice min payload bytes cannot be negative")
	}

	// Validate bus config
	validTransports := []string{"channel", "redis"}
	if !contains(validTransports, cfg.Bus.Transport) {
		return fmt.Errorf("invalid bus transport: %s", cfg.Bus.Transport)
	}

	if cfg.Bus.Transport == "redis" && cfg.Redis.URL == "" {
		return fmt.Errorf("redis URL is required for the redis bus transport")
	}

	// Validate log config
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, cfg.Log.Level) {
		return fmt.Errorf("invalid log level: %s", cfg.Log.Level)
	}

	validEncodings := []string{"json", "console"}
	if !contains(validEncodings, cfg.Log.Encoding) {
		return fmt.Errorf("invalid log encoding: %s", cfg.Log.Encoding)
	}

	return nil
}

// IsProduction returns true if the environment is production
func (e *EngineConfig) IsProduction() bool {
	return strings.ToLower(e.Environment) == "production"
}

// IsDevelopment returns true if the environment is development
func (e *EngineConfig) IsDevelopment() bool {
	return strings.ToLower(e.Environment) == "development"
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
