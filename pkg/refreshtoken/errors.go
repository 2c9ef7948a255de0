package refreshtoken

import "errors"

var (
	// ErrInvalidToken indicates the presented secret matches no stored token
	ErrInvalidToken = errors.New("refresh token not recognized")
	// ErrTokenExpired indicates the token's lifetime has elapsed
	ErrTokenExpired = errors.New("refresh token expired")
	// ErrTokenRevoked indicates the token or its family was revoked
	ErrTokenRevoked = errors.New("refresh token revoked")
	// ErrReuseDetected indicates an already-rotated token was presented
	// again. The whole family has been revoked as a consequence.
	ErrReuseDetected = errors.New("refresh token reuse detected")
)

// IsUnauthorized reports whether err is one of the rotation failures that
// the HTTP boundary must collapse into a single generic 401. Distinguishing
// between them in a response would tell an attacker whether a stolen token
// was ever valid.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenRevoked) ||
		errors.Is(err, ErrReuseDetected)
}
