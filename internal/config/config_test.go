package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected default addr %q", cfg.Addr)
	}
	if cfg.KeyframeIntervalTicks != 20 {
		t.Fatalf("unexpected default keyframe cadence %d", cfg.KeyframeIntervalTicks)
	}
	if len(cfg.LogSinks) != 1 || cfg.LogSinks[0] != "console" {
		t.Fatalf("unexpected default sinks %v", cfg.LogSinks)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("KEYFRAME_INTERVAL_TICKS", "40")
	t.Setenv("LOG_SINKS", "console, json")

	cfg := Load()
	if cfg.Addr != ":9090" {
		t.Fatalf("expected addr override, got %q", cfg.Addr)
	}
	if cfg.RedisURL != "redis://localhost:6379" {
		t.Fatalf("expected redis url override, got %q", cfg.RedisURL)
	}
	if cfg.KeyframeIntervalTicks != 40 {
		t.Fatalf("expected keyframe override, got %d", cfg.KeyframeIntervalTicks)
	}
	if len(cfg.LogSinks) != 2 || cfg.LogSinks[1] != "json" {
		t.Fatalf("expected sink list override, got %v", cfg.LogSinks)
	}
}
