package config

import (
	"log/slog"
	"strings"
	"time"
)

// Setting keys.
const (
	KeyMetrics     = "metrics"
	KeyTracing     = "tracing"
	KeyLogLevel    = "log_level"
	KeyWaitTimeout = "wait_timeout"
	KeyIDPrefix    = "id_prefix"
)

// Config wraps a map[string]any for type-safe value extraction.
// All accessor methods return default values if the key is missing
// or the value cannot be converted to the requested type.
type Config struct {
	data map[string]any
}

// New creates a Config from the given settings map.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// String returns the string value for key, or defaultVal if missing or not a string.
func (c Config) String(key, defaultVal string) string {
	if s, ok := c.data[key].(string); ok {
		return s
	}
	return defaultVal
}

// Bool returns the boolean value for key, or defaultVal if missing or not a bool.
func (c Config) Bool(key string, defaultVal bool) bool {
	if b, ok := c.data[key].(bool); ok {
		return b
	}
	return defaultVal
}

// Duration returns the duration value for key, or defaultVal if missing or invalid.
//
// Accepts:
//   - string: parsed with time.ParseDuration
//   - int: interpreted as milliseconds
//   - float64: interpreted as milliseconds
//   - time.Duration: used directly
func (c Config) Duration(key string, defaultVal time.Duration) time.Duration {
	switch val := c.data[key].(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case int:
		return time.Duration(val) * time.Millisecond
	case float64:
		return time.Duration(val * float64(time.Millisecond))
	case time.Duration:
		return val
	}
	return defaultVal
}

// Level returns the slog level for key, or defaultVal if missing or unknown.
// Accepts "debug", "info", "warn", "error" in any case.
func (c Config) Level(key string, defaultVal slog.Level) slog.Level {
	s, ok := c.data[key].(string)
	if !ok {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return defaultVal
	}
	return level
}

// Has returns true if the key exists in the config.
func (c Config) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// Settings is the typed view of a statebus configuration.
type Settings struct {
	// Metrics enables OpenTelemetry metrics. Default: false
	Metrics bool

	// Tracing enables OpenTelemetry spans around producers and openers. Default: false
	Tracing bool

	// LogLevel is the minimum level for the hub's default logger. Default: info
	LogLevel slog.Level

	// WaitTimeout bounds Hub.Wait. Zero means no bound. Default: 0
	WaitTimeout time.Duration

	// IDPrefix is prepended to every generated subscription and hook id. Default: ""
	IDPrefix string
}

// Settings extracts Settings, applying defaults for anything missing.
func (c Config) Settings() Settings {
	return Settings{
		Metrics:     c.Bool(KeyMetrics, false),
		Tracing:     c.Bool(KeyTracing, false),
		LogLevel:    c.Level(KeyLogLevel, slog.LevelInfo),
		WaitTimeout: c.Duration(KeyWaitTimeout, 0),
		IDPrefix:    c.String(KeyIDPrefix, ""),
	}
}
