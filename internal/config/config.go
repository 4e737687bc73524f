package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Addr                  string
	ClientDir             string
	AuthSecret            string
	RedisURL              string
	KeyframeIntervalTicks int
	LogSinks              []string
	LogJSONPath           string
}

// Load reads the process environment with sensible defaults. REDIS_URL and
// AUTH_SECRET are optional; leaving them empty selects the in-memory
// leaderboard and disables token checks.
func Load() Config {
	keyframeTicks, _ := strconv.Atoi(getEnv("KEYFRAME_INTERVAL_TICKS", "20"))

	return Config{
		Addr:                  getEnv("ADDR", ":8080"),
		ClientDir:             getEnv("CLIENT_DIR", ""),
		AuthSecret:            getEnv("AUTH_SECRET", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		KeyframeIntervalTicks: keyframeTicks,
		LogSinks:              splitList(getEnv("LOG_SINKS", "console")),
		LogJSONPath:           getEnv("LOG_JSON_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
