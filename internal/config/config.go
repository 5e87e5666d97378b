package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr           string `mapstructure:"LISTEN_ADDR"`
	DataDir              string `mapstructure:"DATA_DIR"`
	DatabasePath         string `mapstructure:"DATABASE_PATH"`
	RemoteProfile        string `mapstructure:"REMOTE_PROFILE"`
	RemoteURL            string `mapstructure:"REMOTE_URL"`
	SampleMinIntervalSec int    `mapstructure:"SAMPLE_MIN_INTERVAL_SEC"`
	SampleMinDistanceM   int    `mapstructure:"SAMPLE_MIN_DISTANCE_M"`
}

// RemoteProfiles maps named endpoint profiles to base URLs; the "custom"
// profile uses the user-supplied URL instead.
var RemoteProfiles = map[string]string{
	"local":      "http://localhost:7001",
	"tailscale":  "http://100.82.128.95:7001",
	"production": "https://recollect.example.com",
	"cloudflare": "https://recollect-tunnel.example.com",
}

func Load() Config {
	viper.AutomaticEnv()
	viper.SetDefault("LISTEN_ADDR", "127.0.0.1:7600")
	viper.SetDefault("DATA_DIR", "data")
	viper.SetDefault("DATABASE_PATH", "")
	viper.SetDefault("REMOTE_PROFILE", "local")
	viper.SetDefault("REMOTE_URL", "")
	viper.SetDefault("SAMPLE_MIN_INTERVAL_SEC", 10)
	viper.SetDefault("SAMPLE_MIN_DISTANCE_M", 20)

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "recollect.db")
	}
	return cfg
}

func (c Config) SampleMinInterval() time.Duration {
	return time.Duration(c.SampleMinIntervalSec) * time.Second
}

// RemoteBaseURL resolves the configured profile to a base URL. The persisted
// setting in the store takes precedence at runtime; this is the bootstrap
// default.
func (c Config) RemoteBaseURL() string {
	return ResolveBaseURL(c.RemoteProfile, c.RemoteURL)
}

// ResolveBaseURL maps an endpoint profile to its base URL. The "custom"
// profile uses the supplied URL; anything unrecognized falls back to local.
func ResolveBaseURL(profile, url string) string {
	if profile == "custom" && url != "" {
		return url
	}
	if base, ok := RemoteProfiles[profile]; ok {
		return base
	}
	return RemoteProfiles["local"]
}
