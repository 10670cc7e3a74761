package utils

import (
	"strconv"
	"strings"
	"time"
)

// ParseDuration safely parses a duration string like "2m", returning fallback on error.
func ParseDuration(d string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(d) == "" {
		return fallback
	}
	duration, err := time.ParseDuration(strings.TrimSpace(d))
	if err != nil || duration <= 0 {
		return fallback
	}
	return duration
}

// ParseBool reads form-style booleans ("true", "1", "on", "yes"). Empty or
// unknown input returns fallback.
func ParseBool(s string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "on", "yes", "y":
		return true
	case "false", "0", "off", "no", "n":
		return false
	default:
		return fallback
	}
}

// ParseLimit parses a positive page size, clamped to max. Invalid input returns def.
func ParseLimit(s string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
