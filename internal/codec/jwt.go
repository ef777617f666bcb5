package codec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "mailgate"

// ErrInvalidToken covers every verification failure: bad signature, wrong
// algorithm, malformed input and expiry.
var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is the subset of a user encoded into a bearer token.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// Claims is the JWT payload issued to clients.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWT issues and verifies HS256 bearer tokens.
type JWT struct {
	secret  []byte
	ttl     time.Duration
	nowFunc func() time.Time
	parser  *jwt.Parser
}

// NewJWT builds a codec signing with secret. Tokens live for ttl.
func NewJWT(secret string, ttl time.Duration) *JWT {
	c := &JWT{
		secret:  []byte(secret),
		ttl:     ttl,
		nowFunc: time.Now,
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.nowFunc() }),
	)
	return c
}

// TTL reports how long issued tokens stay valid.
func (c *JWT) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for id. The returned time is the token expiry.
func (c *JWT) Issue(id Identity) (string, time.Time, error) {
	now := c.nowFunc()
	expiresAt := now.Add(c.ttl)

	claims := Claims{
		UserID: id.UserID,
		Email:  id.Email,
		Name:   id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and expiry of token and returns its claims.
func (c *JWT) Verify(token string) (Claims, error) {
	var claims Claims
	parsed, err := c.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.UserID == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
