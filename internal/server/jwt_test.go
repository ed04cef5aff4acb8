package server

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-onepage/internal/config"
)

const testSecret = "test-secret-key-for-jwt-signing-minimum-32-bytes"

func setupTestVerifier(_ *testing.T, issuer string) *JWTVerifier {
	return NewJWTVerifier(&config.JWTConfig{Secret: testSecret, Issuer: issuer})
}

// signTestToken mints a token the way the admin application would.
func signTestToken(t *testing.T, method jwt.SigningMethod, key any, claims *Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func adminClaims(userID uuid.UUID, expiresIn time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		UserID: userID,
		Role:   AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "resume-admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := setupTestVerifier(t, "")
	userID := uuid.New()
	token := signTestToken(t, jwt.SigningMethodHS256, []byte(testSecret), adminClaims(userID, time.Hour))

	claims, err := verifier.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID, claims.GetUserID())
}

func TestJWTVerifier_Rejects(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		issuer  string
		wantErr string
	}{
		{
			name:    "empty",
			token:   func(*testing.T) string { return "" },
			wantErr: "token string is empty",
		},
		{
			name:    "malformed",
			token:   func(*testing.T) string { return "not.a.valid.jwt.token" },
			wantErr: "malformed token",
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				return signTestToken(t, jwt.SigningMethodHS256, []byte("another-secret-of-enough-length"), adminClaims(userID, time.Hour))
			},
			wantErr: "invalid token signature",
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				return signTestToken(t, jwt.SigningMethodHS256, []byte(testSecret), adminClaims(userID, -time.Hour))
			},
			wantErr: "token expired",
		},
		{
			name: "no expiry",
			token: func(t *testing.T) string {
				c := adminClaims(userID, time.Hour)
				c.ExpiresAt = nil
				return signTestToken(t, jwt.SigningMethodHS256, []byte(testSecret), c)
			},
			wantErr: "failed to parse token",
		},
		{
			name: "other algorithm",
			token: func(t *testing.T) string {
				return signTestToken(t, jwt.SigningMethodHS512, []byte(testSecret), adminClaims(userID, time.Hour))
			},
			wantErr: "invalid token signature",
		},
		{
			name: "not admin",
			token: func(t *testing.T) string {
				c := adminClaims(userID, time.Hour)
				c.Role = "viewer"
				return signTestToken(t, jwt.SigningMethodHS256, []byte(testSecret), c)
			},
			wantErr: "may not export",
		},
		{
			name: "missing user",
			token: func(t *testing.T) string {
				return signTestToken(t, jwt.SigningMethodHS256, []byte(testSecret), adminClaims(uuid.Nil, time.Hour))
			},
			wantErr: "no user_id",
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				return signTestToken(t, jwt.SigningMethodHS256, []byte(testSecret), adminClaims(userID, time.Hour))
			},
			issuer:  "someone-else",
			wantErr: "failed to parse token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := setupTestVerifier(t, tt.issuer).ValidateToken(tt.token(t))
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestJWTVerifier_Leeway(t *testing.T) {
	verifier := NewJWTVerifier(&config.JWTConfig{Secret: testSecret, Leeway: time.Minute})
	token := signTestToken(t, jwt.SigningMethodHS256, []byte(testSecret), adminClaims(uuid.New(), -10*time.Second))

	_, err := verifier.ValidateToken(token)
	assert.NoError(t, err)
}

func TestJWTVerifier_AsTokenValidator(t *testing.T) {
	userID := uuid.New()
	token := signTestToken(t, jwt.SigningMethodHS256, []byte(testSecret), adminClaims(userID, time.Hour))

	got, err := setupTestVerifier(t, "").AsTokenValidator().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got.GetUserID())

	_, err = setupTestVerifier(t, "").AsTokenValidator().ValidateToken("garbage")
	assert.Error(t, err)
}
