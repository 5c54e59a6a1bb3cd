package security

// Dev only: mints tokens for the trigger API when a private key is configured

import (
	"assetactivity/internal/config"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type RS256Signer struct {
	Priv *rsa.PrivateKey
	Iss  string
	Aud  string
}

// Load a PEM-encoded RSA private key PKCS1 or PKCS8
func NewRS256Signer(cfg *config.JWTConfig) (*RS256Signer, error) {
	if cfg == nil {
		return nil, errors.New("jwt config is required")
	}

	block, err := readPEM(cfg.PrivateKeyPath, "private")
	if err != nil {
		return nil, err
	}
	priv, err := rsaPrivateKey(block)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}

	return &RS256Signer{
		Priv: priv,
		Iss:  cfg.Issuer,
		Aud:  cfg.Audience,
	}, nil
}

// Create a signed JWT; sub and ttl are required, id (jti) is optional
func (s *RS256Signer) Mint(sub string, ttl time.Duration, id string) (string, error) {
	if sub == "" {
		return "", errors.New("subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.Iss,
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        id,
	}
	if s.Aud != "" {
		claims.Audience = jwt.ClaimStrings{s.Aud}
	}

	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.Priv)
}
