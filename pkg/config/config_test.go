package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDefaults(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadDefaults(t)

	assert.Equal(t, 5*time.Second, cfg.Engine.EvalInterval)
	assert.Equal(t, 70.0, cfg.Engine.RunnerWeightKg)

	assert.Equal(t, 50.0, cfg.Filter.MaxAccuracyM)
	assert.Equal(t, 5.0, cfg.Filter.MinMovementM)
	assert.Equal(t, 100.0, cfg.Filter.MaxJumpM)
	assert.Equal(t, 0.6, cfg.Filter.MinSpeedMPS)
	assert.Equal(t, 3*time.Second, cfg.Filter.StaleRebaseline)

	assert.Equal(t, 18*time.Second, cfg.Coach.GlobalCooldown)
	assert.Equal(t, 5*time.Minute, cfg.Coach.Window)
	assert.Equal(t, 3, cfg.Coach.WindowMax)
	assert.Equal(t, 5, cfg.Coach.MinHistoryRuns)

	assert.Equal(t, 30*time.Second, cfg.Voice.RequestTimeout)
	assert.Equal(t, 512, cfg.Voice.MinPayloadBytes)
	assert.Equal(t, "channel", cfg.Bus.Transport)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("COACH_WINDOW_MAX", "5")
	cfg := loadDefaults(t)
	assert.Equal(t, 5, cfg.Coach.WindowMax)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name:    "eval interval too short",
			mutate:  func(cfg *Config) { cfg.Engine.EvalInterval = 100 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "negative accuracy gate",
			mutate:  func(cfg *Config) { cfg.Filter.MaxAccuracyM = -1 },
			wantErr: true,
		},
		{
			name:    "window shorter than global cooldown",
			mutate:  func(cfg *Config) { cfg.Coach.Window = 10 * time.Second },
			wantErr: true,
		},
		{
			name:    "zero window max",
			mutate:  func(cfg *Config) { cfg.Coach.WindowMax = 0 },
			wantErr: true,
		},
		{
			name:    "empty voice base URL",
			mutate:  func(cfg *Config) { cfg.Voice.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "unknown bus transport",
			mutate:  func(cfg *Config) { cfg.Bus.Transport = "kafka" },
			wantErr: true,
		},
		{
			name: "redis transport without URL",
			mutate: func(cfg *Config) {
				cfg.Bus.Transport = "redis"
				cfg.Redis.URL = ""
			},
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(cfg *Config) { cfg.Log.Level = "verbose" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadDefaults(t)
			tt.mutate(cfg)

			err := validateConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
