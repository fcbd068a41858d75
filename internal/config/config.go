package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Backend
	BackendURL string `mapstructure:"backend_url"`

	// Dashboard HTTP surface
	ListenAddr     string   `mapstructure:"listen_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// Polling
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	AnalysisPollInterval time.Duration `mapstructure:"analysis_poll_interval"`

	// Playback
	PlaybackFPS int `mapstructure:"playback_fps"`
}

// Load reads configuration from an optional yaml file and MOLVISTA_* env
// variables, falling back to defaults suitable for local development.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("backend_url", "http://localhost:8000")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("poll_interval", 2*time.Second)
	v.SetDefault("analysis_poll_interval", 3*time.Second)
	v.SetDefault("playback_fps", 10)

	v.SetConfigName("molvista")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("molvista")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// No file is fine; defaults and env cover everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.PlaybackFPS <= 0 {
		cfg.PlaybackFPS = 10
	}
	return &cfg, nil
}
