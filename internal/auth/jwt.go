package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	// ErrServiceUnavailable means admin is disabled: no secret is configured.
	ErrServiceUnavailable = errors.New("admin not configured")
)

const RoleAdmin = "admin"

// Guard issues and verifies stateless admin session tokens.
type Guard struct {
	Secret []byte
	Issuer string
	TTL    time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (g Guard) Configured() bool {
	return len(g.Secret) > 0
}

func (g Guard) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g Guard) ttl() time.Duration {
	if g.TTL <= 0 {
		return 12 * time.Hour
	}
	return g.TTL
}

func (g Guard) Sign() (string, time.Time, error) {
	if !g.Configured() {
		return "", time.Time{}, ErrServiceUnavailable
	}
	now := g.now()
	exp := now.Add(g.ttl())

	claims := Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    g.Issuer,
			Subject:   RoleAdmin,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(g.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

func (g Guard) Parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(g.now),
		jwt.WithExpirationRequired(),
	}
	if g.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.Issuer))
	}

	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		// enforce HS256
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// Authorize returns nil for a valid admin token, ErrServiceUnavailable when
// no secret is configured and ErrUnauthorized otherwise.
func (g Guard) Authorize(tokenString string) error {
	if !g.Configured() {
		return ErrServiceUnavailable
	}
	if tokenString == "" {
		return ErrUnauthorized
	}
	claims, err := g.Parse(tokenString)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Role != RoleAdmin {
		return fmt.Errorf("%w: role %q", ErrUnauthorized, claims.Role)
	}
	return nil
}
