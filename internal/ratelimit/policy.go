package ratelimit

// Bounds on allocation periods and limits.
const (
	// MinRateLimitPeriodMinutes is the shortest accepted rate window.
	MinRateLimitPeriodMinutes = 1
	// MaxRateLimitPeriodMinutes is the longest accepted rate window.
	MaxRateLimitPeriodMinutes = 1440
	// DefaultRateLimitPeriodMinutes replaces out-of-range periods.
	DefaultRateLimitPeriodMinutes = 60
	// MaxRateLimit is the largest accepted limit value.
	MaxRateLimit = 1_000_000
	// fallbackRateLimit replaces out-of-range limit values.
	fallbackRateLimit = 15
)

// ClampLimit normalizes a limit value. Out-of-range input is silently
// replaced, never rejected; the same substitution is applied by the legacy
// file store on write and the two must stay consistent.
func ClampLimit(limit int) int {
	if limit < 0 || limit > MaxRateLimit {
		return fallbackRateLimit
	}
	return limit
}

// ClampPeriodMinutes normalizes a period value to the accepted window.
func ClampPeriodMinutes(minutes int) int {
	if minutes < MinRateLimitPeriodMinutes || minutes > MaxRateLimitPeriodMinutes {
		return DefaultRateLimitPeriodMinutes
	}
	return minutes
}
