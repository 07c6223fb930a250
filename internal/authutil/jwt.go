package authutil

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a token has no decodable payload.
var ErrMalformedToken = errors.New("malformed JWT")

// Claims is the decoded payload of an identity token.
type Claims jwt.MapClaims

// ParseJWT decodes the payload of token without verifying its signature.
// Callers must not treat the result as authenticated.
func ParseJWT(token string) (Claims, error) {
	if strings.Count(token, ".") != 2 {
		return nil, ErrMalformedToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	return Claims(claims), nil
}

// Issuer returns the "iss" claim.
func (c Claims) Issuer() string {
	iss, _ := jwt.MapClaims(c).GetIssuer()
	return iss
}

// Subject returns the "sub" claim.
func (c Claims) Subject() string {
	sub, _ := jwt.MapClaims(c).GetSubject()
	return sub
}

// Audience returns the "aud" claim. A single string audience is returned as
// a one element slice.
func (c Claims) Audience() []string {
	aud, _ := jwt.MapClaims(c).GetAudience()
	return aud
}

// ExpiresAt returns the "exp" claim, or the zero time when absent.
func (c Claims) ExpiresAt() time.Time {
	exp, err := jwt.MapClaims(c).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Email returns the "email" claim.
func (c Claims) Email() string {
	return c.stringClaim("email")
}

// HostedDomain returns the "hd" claim Google sets for Workspace accounts.
func (c Claims) HostedDomain() string {
	return c.stringClaim("hd")
}

func (c Claims) stringClaim(name string) string {
	v, _ := c[name].(string)
	return v
}
