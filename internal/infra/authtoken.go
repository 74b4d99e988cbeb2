// README: Bearer-token verification (JWT HS256).
package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"offpeak/internal/types"
)

// AuthToken holds the verified identity used by downstream middleware.
type AuthToken struct {
	UserID types.ID
	Claims map[string]interface{}
}

// TokenVerifier verifies a raw bearer token string and returns the identity.
// The core trusts the identity, not the transport; issuing tokens is the
// auth provider's job, not this service's.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*AuthToken, error)
}

type jwtVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a TokenVerifier for HS256-signed tokens.
func NewJWTVerifier(secret string) TokenVerifier {
	return &jwtVerifier{secret: []byte(secret)}
}

func (v *jwtVerifier) VerifyToken(_ context.Context, raw string) (*AuthToken, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("verify token: unexpected claims type")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("verify token: missing subject")
	}
	return &AuthToken{UserID: types.ID(sub), Claims: claims}, nil
}
