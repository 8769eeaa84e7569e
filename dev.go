package hdrjwt

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
)

const devKeyBits = 2048

// DevKeyProvider signs every tenant with one ephemeral RSA key. Local development only.
type DevKeyProvider struct {
	key *rsa.PrivateKey
}

// NewDevKeyProvider generates a fresh key.
func NewDevKeyProvider() (*DevKeyProvider, error) {
	key, err := rsa.GenerateKey(rand.Reader, devKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate dev key: %w", err)
	}
	return &DevKeyProvider{key: key}, nil
}

// GetDefaultPrivateKey returns the ephemeral key.
func (d *DevKeyProvider) GetDefaultPrivateKey() (PrivateKey, error) {
	return d.key, nil
}

// GetPrivateKey returns the ephemeral key regardless of tenant.
func (d *DevKeyProvider) GetPrivateKey(string, string) (PrivateKey, error) {
	return d.key, nil
}

// PublicKey returns the public half for verification.
func (d *DevKeyProvider) PublicKey() *rsa.PublicKey {
	return &d.key.PublicKey
}
