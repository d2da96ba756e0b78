package utils // package utils provides helpers for session tokens and OTP codes

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSession is returned by ParseSessionToken for any token that
// cannot be trusted: bad signature, wrong algorithm, expired or malformed
// subject.
var ErrInvalidSession = errors.New("invalid session token")

// SessionToken is a signed HS256 JWT together with its expiry.  Clients
// send Token as a Bearer credential on every /v1 call.
type SessionToken struct {
	Token string    // serialized JWT
	Exp   time.Time // UTC expiration time
}

// SessionClaims are the claims carried by a session token.  The subject is
// the decimal profile id.
type SessionClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// ProfileID parses the subject claim.
func (c SessionClaims) ProfileID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// NewSessionToken signs a session for a profile.  now is injected so that
// expiry is deterministic in tests.
func NewSessionToken(secret string, profileID uint64, roles []string, ttl time.Duration, now time.Time) (SessionToken, error) {
	now = now.UTC()
	exp := now.Add(ttl)
	claims := SessionClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(profileID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken validates raw and returns its claims.  Only HS256 is
// accepted and expiry is checked against now.
func ParseSessionToken(secret, raw string, now time.Time) (SessionClaims, error) {
	var claims SessionClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !tok.Valid {
		return SessionClaims{}, ErrInvalidSession
	}
	if _, err := claims.ProfileID(); err != nil {
		return SessionClaims{}, ErrInvalidSession
	}
	return claims, nil
}
