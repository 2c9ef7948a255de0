package config

import "time"

// RefreshTokenConfig holds refresh token lifecycle configuration
type RefreshTokenConfig struct {
	// TTL of each refresh token; ISO 8601 or Go duration format
	Expiry string `env:"REFRESH_TOKEN_EXPIRY" env-default:"P30D"`
	// Number of random bytes in the raw token secret
	SecretBytes int `env:"REFRESH_TOKEN_SECRET_BYTES" env-default:"32"`
}

// ParseExpiry parses the refresh token TTL
func (r RefreshTokenConfig) ParseExpiry() (time.Duration, error) {
	return ParseDuration(r.Expiry)
}

// ImpersonationConfig holds impersonation session lifecycle configuration
type ImpersonationConfig struct {
	// Default session duration when the caller does not request one
	DefaultDuration string `env:"IMPERSONATION_DEFAULT_DURATION" env-default:"PT1H"`
	// Hard cap on caller-requested durations
	MaxDuration string `env:"IMPERSONATION_MAX_DURATION" env-default:"PT4H"`
}

// ParseDefaultDuration parses the default impersonation session duration
func (i ImpersonationConfig) ParseDefaultDuration() (time.Duration, error) {
	return ParseDuration(i.DefaultDuration)
}

// ParseMaxDuration parses the maximum impersonation session duration
func (i ImpersonationConfig) ParseMaxDuration() (time.Duration, error) {
	return ParseDuration(i.MaxDuration)
}
