package utils // package utils provides helper functions for token creation and hashing

import (
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT access token along with its
// expiry. The Token field contains the JWT string. Exp stores the
// expiration timestamp. Access tokens are encoded in the Authorization
// header when calling protected endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a holder. It takes
// the signing secret, the holder ID and a TTL in minutes. The JWT
// includes standard claims: subject (sub), expiration (exp) and issued
// at (iat).
func NewAccessToken(secret string, holderID uint64, ttlMin int) (AccessToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub": holderID,
		"exp": exp.Unix(),
		"iat": time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
