package helpers

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// ParseDuration parses a duration string, returns default duration on error.
func ParseDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		// Global logger: this may run before the configured logger is installed
		log.Warn().Err(err).Str("durationStr", durationStr).Dur("defaultDuration", defaultDuration).Msg("Failed to parse duration string, using default")
		return defaultDuration
	}
	return duration
}

// CookieMaxAge converts an expiry into a cookie Max-Age in whole seconds,
// rounded up. An expiry at or before now yields -1, which deletes the cookie.
func CookieMaxAge(expiresAt, now time.Time) int {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return -1
	}
	return int(math.Ceil(remaining.Seconds()))
}
