// Package auth resolves bearer credentials into callers. Accounts and logins are owned by
// the identity service that signs these tokens.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/models"

	"github.com/golang-jwt/jwt/v5"
)

// JWT claims
type Claims struct {
	Username string   `json:"username"`
	UserID   string   `json:"userId"`
	Role     []string `json:"role"`
	jwt.RegisteredClaims
}

// Resolver validates HS256 tokens signed with a shared secret.
type Resolver struct {
	secret []byte
}

func NewResolver(secret string) (*Resolver, error) {
	if secret == "" {
		return nil, errors.New("auth: empty signing secret")
	}
	return &Resolver{secret: []byte(secret)}, nil
}

// ResolveCaller turns an Authorization header value ("Bearer <token>") or a bare token into
// a Caller. Any failure is reported as models.ErrUnauthenticated.
func (r *Resolver) ResolveCaller(credential string) (models.Caller, error) {
	token := strings.TrimSpace(credential)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return models.Caller{}, fmt.Errorf("missing token: %w", models.ErrUnauthenticated)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return models.Caller{}, fmt.Errorf("invalid token: %w", models.ErrUnauthenticated)
	}
	if claims.UserID == "" {
		return models.Caller{}, fmt.Errorf("token without user: %w", models.ErrUnauthenticated)
	}

	return models.Caller{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     models.RoleFromClaims(claims.Role),
	}, nil
}

// IssueToken signs a token for c. The storefront never issues tokens to end users; this
// exists for service accounts and tests.
func (r *Resolver) IssueToken(c models.Caller, ttl time.Duration) (string, error) {
	roles := []string{"user"}
	if c.IsAdmin() {
		roles = append(roles, "admin")
	}
	claims := &Claims{
		Username: c.Username,
		UserID:   c.UserID,
		Role:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}
