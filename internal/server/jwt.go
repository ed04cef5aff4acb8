package server

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jonathan/resume-onepage/internal/config"
	"github.com/jonathan/resume-onepage/internal/server/middleware"
)

// AdminRole is the role claim required on export routes.
const AdminRole = "admin"

// Claims represents the claims of a token issued by the admin application.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// GetUserID returns the user ID from the claims.
// This implements the middleware.UserIDGetter interface.
func (c *Claims) GetUserID() uuid.UUID {
	return c.UserID
}

// JWTVerifier validates HS256 tokens. It never issues tokens.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier creates a verifier from the given configuration.
func NewJWTVerifier(cfg *config.JWTConfig) *JWTVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &JWTVerifier{secret: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}
}

// AsTokenValidator returns a TokenValidator adapter for this verifier.
// This allows the verifier to be used with middleware without creating import cycles.
func (v *JWTVerifier) AsTokenValidator() middleware.TokenValidator {
	return &jwtVerifierValidator{verifier: v}
}

// jwtVerifierValidator adapts JWTVerifier to middleware.TokenValidator interface.
type jwtVerifierValidator struct {
	verifier *JWTVerifier
}

func (a *jwtVerifierValidator) ValidateToken(tokenString string) (middleware.UserIDGetter, error) {
	claims, err := a.verifier.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateToken validates a token and returns its claims. Tokens must be
// signed with the shared secret, unexpired, and carry the admin role.
func (v *JWTVerifier) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token string is empty")
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("invalid token signature: %w", err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("token expired: %w", err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("malformed token: %w", err)
		default:
			return nil, fmt.Errorf("failed to parse token: %w", err)
		}
	}

	if claims.Role != AdminRole {
		return nil, fmt.Errorf("role %q may not export", claims.Role)
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("token has no user_id")
	}
	return claims, nil
}
