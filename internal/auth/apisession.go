package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// APISession is the bearer credential for the remote coworking API. The zero
// value means "not authenticated".
type APISession struct {
	Token string
}

func (s APISession) Present() bool { return s.Token != "" }

// Usable reports whether the session can back a booking call right now. A
// token whose exp claim has passed is as good as absent, so the expiry is
// checked locally instead of burning a request on a guaranteed 401. Opaque
// (non-JWT) tokens are assumed usable and left for the server to judge.
func (s APISession) Usable(now time.Time) bool {
	if !s.Present() {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return now.Before(exp.Time)
}
