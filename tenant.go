package hdrjwt

import (
	"crypto"
	"strings"
)

const (
	// DefaultTenantDomain is the domain of the root tenant.
	DefaultTenantDomain = "carbon.super"

	keystoreSuffix = ".jks"
)

// PrivateKey is whatever a KeyProvider returns. Usable keys are *rsa.PrivateKey,
// a crypto.Signer with an RSA public key, or an RSA private jwk.Key.
type PrivateKey = crypto.PrivateKey

// KeyProvider resolves private signing keys.
type KeyProvider interface {
	GetDefaultPrivateKey() (PrivateKey, error)
	GetPrivateKey(keystoreName, tenantDomain string) (PrivateKey, error)
}

// Tenant identifies which key signs an assertion.
type Tenant struct {
	Domain    string
	IsDefault bool
}

// DefaultTenant returns the root tenant.
func DefaultTenant() Tenant {
	return Tenant{Domain: DefaultTenantDomain, IsDefault: true}
}

// TenantFromDomain marks empty and root domains as the default tenant.
func TenantFromDomain(domain string) Tenant {
	trimmed := strings.TrimSpace(domain)
	if trimmed == "" || strings.EqualFold(trimmed, DefaultTenantDomain) {
		return DefaultTenant()
	}
	return Tenant{Domain: domain}
}

// KeystoreName returns the key store name derived from the tenant domain.
func (t Tenant) KeystoreName() string {
	return KeystoreName(t.Domain)
}

// SanitizeTenantDomain trims whitespace and replaces dots with dashes.
// The result is lower-cased since tenant domains are case-insensitive.
func SanitizeTenantDomain(domain string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(domain), ".", "-"))
}

// KeystoreName maps a tenant domain to its key store name, e.g. "example-com.jks".
func KeystoreName(domain string) string {
	return SanitizeTenantDomain(domain) + keystoreSuffix
}

func keystoreBaseName(keystoreName string) string {
	return strings.TrimSuffix(keystoreName, keystoreSuffix)
}
