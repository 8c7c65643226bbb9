package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const deactivatedScope = "com.atproto.deactivated"

// IsSessionExpired reports whether the stored access token is past its exp
// claim at the given instant. Tokens that cannot be parsed or carry no
// expiry are treated as expired so that resume goes through a real
// refresh instead of trusting garbage.
func IsSessionExpired(account Account, now time.Time) bool {
	claims, ok := decodeClaims(account.AccessJwt)
	if !ok {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}

	return !now.Before(exp.Time)
}

// SessionExpiry returns the access token's expiry instant when the token
// carries one.
func SessionExpiry(account Account) (time.Time, bool) {
	claims, ok := decodeClaims(account.AccessJwt)
	if !ok {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}

// IsSessionDeactivated reports whether the access token was issued for a
// deactivated account. The service signals this through the scope claim.
func IsSessionDeactivated(accessJwt string) bool {
	claims, ok := decodeClaims(accessJwt)
	if !ok {
		return false
	}

	scope, _ := claims["scope"].(string)
	return scope == deactivatedScope
}

// decodeClaims reads claims without verifying the signature. The tokens
// are opaque credentials for the remote service; locally we only inspect
// bookkeeping claims, we never trust them for authorization.
func decodeClaims(token string) (jwt.MapClaims, bool) {
	if token == "" {
		return nil, false
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, false
	}

	return claims, true
}
