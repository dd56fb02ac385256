package config

import "time"

// RateLimitConfig drives the Redis token bucket.  Login gets its own, much
// smaller bucket so password guessing is throttled separately from normal
// check-in traffic.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

func LoadRateLimitConfig() RateLimitConfig {
	v := env()
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_CAPACITY", 120)
	v.SetDefault("RATE_LIMIT_REFILL_TOKENS", 2)
	v.SetDefault("RATE_LIMIT_REFILL_INTERVAL", "1s")
	v.SetDefault("RATE_LIMIT_TTL", "10m")
	v.SetDefault("RATE_LIMIT_KEY_STRATEGY", "ip_user_route")
	v.SetDefault("RATE_LIMIT_PREFIX", "checkin:rl")
	return normalizeRateLimit(RateLimitConfig{
		Enabled:        v.GetBool("RATE_LIMIT_ENABLED"),
		Capacity:       v.GetInt("RATE_LIMIT_CAPACITY"),
		RefillTokens:   v.GetInt("RATE_LIMIT_REFILL_TOKENS"),
		RefillInterval: v.GetDuration("RATE_LIMIT_REFILL_INTERVAL"),
		TTL:            v.GetDuration("RATE_LIMIT_TTL"),
		KeyStrategy:    v.GetString("RATE_LIMIT_KEY_STRATEGY"),
		Prefix:         v.GetString("RATE_LIMIT_PREFIX"),
		Debug:          v.GetBool("RATE_LIMIT_DEBUG"),
	})
}

// LoadLoginRateLimitConfig returns the bucket applied to /v1/auth/*: five
// attempts, one more every 30 seconds, keyed by client IP.
func LoadLoginRateLimitConfig() RateLimitConfig {
	base := LoadRateLimitConfig()
	v := env()
	v.SetDefault("LOGIN_RATE_LIMIT_CAPACITY", 5)
	v.SetDefault("LOGIN_RATE_LIMIT_REFILL_INTERVAL", "30s")
	base.Capacity = v.GetInt("LOGIN_RATE_LIMIT_CAPACITY")
	base.RefillTokens = 1
	base.RefillInterval = v.GetDuration("LOGIN_RATE_LIMIT_REFILL_INTERVAL")
	base.KeyStrategy = "ip_route"
	base.Prefix = base.Prefix + ":login"
	return normalizeRateLimit(base)
}

func normalizeRateLimit(c RateLimitConfig) RateLimitConfig {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}
