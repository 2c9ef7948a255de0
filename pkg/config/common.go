package config

import (
	"time"

	"github.com/sosodev/duration"
)

// ParseDuration tries to parse a duration as ISO 8601 first, then Go duration
func ParseDuration(s string) (time.Duration, error) {
	isoDuration, err := duration.Parse(s)
	if err == nil {
		return isoDuration.ToTimeDuration(), nil
	}

	return time.ParseDuration(s)
}
