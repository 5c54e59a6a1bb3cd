package security

import (
	"assetactivity/internal/config"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoBearerToken = errors.New("authorization header must be: Bearer <token>")

// Verifies bearer tokens on the trigger API. Only RS256 is accepted, exp is
// required, aud/iss are checked when configured.
type RS256Verifier struct {
	PubKey *rsa.PublicKey
	Aud    string
	Iss    string
	Leeway time.Duration

	parser *jwt.Parser
}

func NewRS256Verifier(cfg *config.JWTConfig) (*RS256Verifier, error) {
	if cfg == nil {
		return nil, errors.New("jwt config is required")
	}
	if cfg.Alg != "" && cfg.Alg != jwt.SigningMethodRS256.Alg() {
		return nil, fmt.Errorf("jwt alg %q is not supported, use RS256", cfg.Alg)
	}

	block, err := readPEM(cfg.PublicKeyPath, "public")
	if err != nil {
		return nil, err
	}
	pub, err := rsaPublicKey(block)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}

	v := &RS256Verifier{
		PubKey: pub,
		Aud:    cfg.Audience,
		Iss:    cfg.Issuer,
		Leeway: cfg.Leeway,
	}
	if v.Leeway <= 0 {
		v.Leeway = time.Minute
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(v.Leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if v.Aud != "" {
		opts = append(opts, jwt.WithAudience(v.Aud))
	}
	if v.Iss != "" {
		opts = append(opts, jwt.WithIssuer(v.Iss))
	}
	v.parser = jwt.NewParser(opts...)

	return v, nil
}

// VerifyBearer checks an Authorization header value and returns its claims
func (v *RS256Verifier) VerifyBearer(header string) (*jwt.RegisteredClaims, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, ErrNoBearerToken
	}

	claims := &jwt.RegisteredClaims{}
	if _, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.PubKey, nil
	}); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	return claims, nil
}
