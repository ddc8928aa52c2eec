package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrMalformed    = errors.New("malformed token")
	ErrBadSignature = errors.New("bad token signature")
	ErrExpired      = errors.New("token expired")
)

// Claims carried by both token kinds. TokenType discriminates them so an
// access token can never be replayed on the refresh endpoint and vice versa.
type Claims struct {
	Role      string `json:"role,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Codec mints and verifies HS256 tokens. Secrets and lifetimes come from
// configuration; the codec itself holds no mutable state.
type Codec struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func (c *Codec) MintAccess(subject, role string) (string, *Claims, error) {
	return c.mint(TypeAccess, subject, role, c.AccessSecret, c.AccessTTL)
}

func (c *Codec) MintRefresh(subject, role string) (string, *Claims, error) {
	return c.mint(TypeRefresh, subject, role, c.RefreshSecret, c.RefreshTTL)
}

func (c *Codec) mint(typ, subject, role string, secret []byte, ttl time.Duration) (string, *Claims, error) {
	now := time.Now().UTC()
	claims := &Claims{
		Role:      role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ParseAccess verifies signature and expiry of an access token.
func (c *Codec) ParseAccess(tokenStr string) (*Claims, error) {
	return parse(tokenStr, TypeAccess, c.AccessSecret, false)
}

// ParseRefresh verifies signature and expiry of a refresh token.
func (c *Codec) ParseRefresh(tokenStr string) (*Claims, error) {
	return parse(tokenStr, TypeRefresh, c.RefreshSecret, false)
}

// DecodeAccess verifies the signature but tolerates an elapsed expiry, for
// inspection endpoints that report on expired tokens.
func (c *Codec) DecodeAccess(tokenStr string) (*Claims, error) {
	return parse(tokenStr, TypeAccess, c.AccessSecret, true)
}

// DecodeRefresh verifies the signature but tolerates an elapsed expiry.
// Logout must still be able to locate the session row of an expired token.
func (c *Codec) DecodeRefresh(tokenStr string) (*Claims, error) {
	return parse(tokenStr, TypeRefresh, c.RefreshSecret, true)
}

func parse(tokenStr, wantType string, secret []byte, allowExpired bool) (*Claims, error) {
	keyfunc := func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return secret, nil
	}

	var opts []jwt.ParserOption
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	var claims Claims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, keyfunc, opts...)
	if err != nil {
		return nil, mapParseError(err)
	}
	if !tkn.Valid {
		return nil, ErrMalformed
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrMalformed, claims.TokenType)
	}
	return &claims, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
