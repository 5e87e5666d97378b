package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ListenAddr == "" {
		t.Fatalf("expected default listen addr")
	}
	if cfg.DatabasePath == "" {
		t.Fatalf("expected derived database path")
	}
	if cfg.SampleMinIntervalSec != 10 || cfg.SampleMinDistanceM != 20 {
		t.Fatalf("unexpected sampler defaults: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", "127.0.0.1:7700")
	t.Setenv("DATABASE_PATH", "/tmp/x.db")
	t.Setenv("REMOTE_PROFILE", "tailscale")
	t.Setenv("SAMPLE_MIN_INTERVAL_SEC", "5")

	cfg := Load()
	if cfg.ListenAddr != "127.0.0.1:7700" {
		t.Fatalf("expected override listen addr")
	}
	if cfg.DatabasePath != "/tmp/x.db" {
		t.Fatalf("expected override database path")
	}
	if cfg.RemoteProfile != "tailscale" {
		t.Fatalf("expected override profile")
	}
	if cfg.SampleMinInterval().Seconds() != 5 {
		t.Fatalf("expected override interval")
	}
}

func TestRemoteBaseURL(t *testing.T) {
	cfg := Config{RemoteProfile: "tailscale"}
	if cfg.RemoteBaseURL() != RemoteProfiles["tailscale"] {
		t.Fatalf("expected profile url")
	}

	cfg = Config{RemoteProfile: "custom", RemoteURL: "http://10.0.0.5:7001"}
	if cfg.RemoteBaseURL() != "http://10.0.0.5:7001" {
		t.Fatalf("expected custom url")
	}

	cfg = Config{RemoteProfile: "nope"}
	if cfg.RemoteBaseURL() != RemoteProfiles["local"] {
		t.Fatalf("expected fallback to local")
	}
}
