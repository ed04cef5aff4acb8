package ratelimit

import (
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// LoadConfig loads rate limiting configuration from RATE_LIMIT_* variables.
func LoadConfig(getenv func(string) string) *Config {
	env := envReader(getenv)
	enabled := env.bool("RATE_LIMIT_ENABLED", true)
	if !enabled {
		return &Config{
			Enabled: false,
		}
	}

	exportLimit := env.int("RATE_LIMIT_EXPORT_LIMIT", 30)
	exportWindow := env.duration("RATE_LIMIT_EXPORT_WINDOW", time.Hour)

	return &Config{
		Enabled:         enabled,
		DefaultLimit:    env.int("RATE_LIMIT_DEFAULT_LIMIT", 600),
		DefaultWindow:   env.duration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: env.duration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(env.string("RATE_LIMIT_WHITELIST", "")),
		Blacklist:       parseIPList(env.string("RATE_LIMIT_BLACKLIST", "")),
		EndpointConfigs: DefaultEndpointConfigs(exportLimit, exportWindow),
	}
}

// DefaultEndpointConfigs returns the endpoint-specific configurations. Every
// export renders a PDF, possibly many times, so exports share the strictest tier.
func DefaultEndpointConfigs(exportLimit int, exportWindow time.Duration) []EndpointConfig {
	burst := max(exportLimit/6, 1)
	return []EndpointConfig{
		// Tier 1: Rendering (strictest limits)
		{Path: "/export", Method: "POST", Limit: exportLimit, Window: exportWindow, Burst: burst},
		{Path: "/export/", Method: "GET", Limit: exportLimit, Window: exportWindow, Burst: burst},

		// Tier 2: Reads - handled by default limit
		// Tier 3: Health check (unlimited) - handled by special case in matcher
	}
}

type envReader func(string) string

func (e envReader) string(key string, defaultValue string) string {
	if value := e(key); value != "" {
		return value
	}
	return defaultValue
}

func (e envReader) int(key string, defaultValue int) int {
	if value := e(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (e envReader) bool(key string, defaultValue bool) bool {
	if value := e(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// duration falls back to defaultValue for unparsable or non-positive values.
func (e envReader) duration(key string, defaultValue time.Duration) time.Duration {
	if value := e(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
