package config

import (
	"fmt"
	"os"
	"time"
)

// JWTConfig holds configuration for validating bearer tokens issued elsewhere.
type JWTConfig struct {
	Secret string
	Issuer string
	// Leeway tolerates clock skew between the issuer and this service.
	Leeway time.Duration
}

// NewJWTConfig creates a JWT configuration from environment variables.
// It reads JWT_SECRET (required), JWT_ISSUER (optional) and JWT_LEEWAY (default: 30s).
func NewJWTConfig() (*JWTConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}

	leewayStr := os.Getenv("JWT_LEEWAY")
	if leewayStr == "" {
		leewayStr = "30s" // default
	}

	leeway, err := time.ParseDuration(leewayStr)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_LEEWAY: %v", err)
	}

	config := &JWTConfig{
		Secret: secret,
		Issuer: os.Getenv("JWT_ISSUER"),
		Leeway: leeway,
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if len(c.Secret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters, got: %d", len(c.Secret))
	}
	if c.Leeway < 0 {
		return fmt.Errorf("JWT_LEEWAY cannot be negative, got: %s", c.Leeway)
	}
	return nil
}
