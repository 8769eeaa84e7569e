package hdrjwt

import (
	"crypto"
	"crypto/rsa"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// Verifier checks assertions produced by Sign against a known public key.
type Verifier struct {
	cfg VerifierConfig
	now func() time.Time
}

// NewVerifier builds a verifier from the given configuration.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, newError(ErrCodeConfiguration, err)
	}
	cfg.normalize()
	return &Verifier{cfg: cfg, now: time.Now}, nil
}

// Verify checks signature and expiration and returns the carried claims.
// Errors never include claim values.
func (v *Verifier) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, newError(ErrCodeInvalidToken, errors.New("token is empty"))
	}
	if strings.Count(token, ".") != 2 {
		return nil, newError(ErrCodeInvalidToken, errors.New("token is not in compact form"))
	}

	payload, err := jws.Verify([]byte(token), jws.WithKey(Algorithm, v.cfg.PublicKey))
	if err != nil {
		return nil, newError(ErrCodeInvalidToken, errors.New("signature verification failed"))
	}

	var values map[string]any
	if err := json.Unmarshal(payload, &values); err != nil || values == nil {
		return nil, newError(ErrCodeInvalidToken, errors.New("payload is not a JSON object"))
	}

	exp, ok := values[ExpirationClaim].(float64)
	if !ok || exp != math.Trunc(exp) || exp < math.MinInt64 || exp >= math.MaxInt64 {
		return nil, newError(ErrCodeInvalidToken, errors.New("exp claim is missing or not a NumericDate"))
	}
	expiresAt := time.Unix(int64(exp), 0)
	if !v.now().Before(expiresAt.Add(v.cfg.ClockSkew)) {
		return nil, newError(ErrCodeExpired, errors.New("exp claim is in the past"))
	}
	delete(values, ExpirationClaim)

	return extractClaims(expiresAt, values), nil
}

func extractClaims(expiresAt time.Time, values map[string]any) *Claims {
	claims := &Claims{
		ExpiresAt: expiresAt,
		Headers:   make(map[string]string),
	}
	for name, value := range values {
		if s, ok := value.(string); ok {
			claims.Headers[name] = s
			continue
		}
		if claims.Custom == nil {
			claims.Custom = make(map[string]any)
		}
		claims.Custom[name] = value
	}
	return claims
}

// PublicJWK exports the public part of an RSA key as a JWK for downstream consumers.
func PublicJWK(key crypto.PublicKey) (jwk.Key, error) {
	if _, ok := key.(*rsa.PublicKey); !ok {
		return nil, newError(ErrCodeUnsupportedKey, fmt.Errorf("key of type %T", key))
	}
	pub, err := jwk.FromRaw(key)
	if err != nil {
		return nil, newError(ErrCodeUnsupportedKey, err)
	}
	if err := jwk.AssignKeyID(pub); err != nil {
		return nil, newError(ErrCodeUnsupportedKey, err)
	}
	_ = pub.Set(jwk.AlgorithmKey, Algorithm)
	_ = pub.Set(jwk.KeyUsageKey, jwk.ForSignature)
	return pub, nil
}
