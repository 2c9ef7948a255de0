package config

import (
	"net/http"
	"time"
)

// JWTConfig holds JWT authentication configuration
type JWTConfig struct {
	Secret            string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	CookieHttpOnly    bool   `env:"COOKIE_HTTP_ONLY" env-default:"true"`
	CookieSecure      bool   `env:"COOKIE_SECURE" env-default:"true"`
	AccessTokenExpiry string `env:"ACCESS_TOKEN_EXPIRY" env-default:"5m"`
	Issuer            string `env:"JWT_ISSUER" env-default:"admin-idm"`
	Audience          string `env:"JWT_AUDIENCE" env-default:"admin-idm"`
}

// ParseAccessTokenExpiry parses the access token expiry duration
func (j JWTConfig) ParseAccessTokenExpiry() (time.Duration, error) {
	return ParseDuration(j.AccessTokenExpiry)
}

// CookieSameSite returns the appropriate SameSite setting based on CookieSecure
func (j JWTConfig) CookieSameSite() http.SameSite {
	if j.CookieSecure {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}
