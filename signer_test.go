package hdrjwt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type opaqueSigner struct {
	inner crypto.Signer
	err   error
}

func (s opaqueSigner) Public() crypto.PublicKey { return s.inner.Public() }

func (s opaqueSigner) Sign(r io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.inner.Sign(r, digest, opts)
}

func buildFrozen(t *testing.T, claims ClaimSet, exp int) UnsignedAssertion {
	t.Helper()

	unsigned, err := NewBuilder(WithClock(frozenClock)).Build(claims, exp)
	require.NoError(t, err)
	return unsigned
}

func verifyPKCS1(t *testing.T, pub *rsa.PublicKey, signed SignedAssertion) {
	t.Helper()

	sig := decodeSegment(t, signed.SignatureSegment())
	digest := sha256.Sum256([]byte(signed.HeaderSegment() + "." + signed.PayloadSegment()))
	require.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig))
}

func TestSignDefaultTenantScenario(t *testing.T) {
	t.Parallel()

	key := testRSAKey(t, 0)
	provider := &fakeKeyProvider{defaultKey: key}
	unsigned := buildFrozen(t, ClaimSet{"X-User": "alice"}, 60)

	signed, err := Sign(unsigned, DefaultTenant(), provider)
	require.NoError(t, err)

	token := signed.String()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	assert.Equal(t, unsigned.HeaderSegment(), parts[0])
	assert.Equal(t, unsigned.PayloadSegment(), parts[1])
	assert.Equal(t, `{"X-User":"alice","exp":1700000060}`, string(decodeSegment(t, parts[1])))

	verifyPKCS1(t, &key.PublicKey, signed)

	payload, err := jws.Verify([]byte(token), jws.WithKey(jwa.RS256, &key.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, decodeSegment(t, parts[1]), payload)

	assert.Equal(t, 1, provider.defaultCalls)
	assert.Equal(t, 0, provider.tenantCalls)
}

func TestSignIsDeterministicPerKey(t *testing.T) {
	t.Parallel()

	provider := &fakeKeyProvider{defaultKey: testRSAKey(t, 0)}
	unsigned := buildFrozen(t, ClaimSet{"X-User": "alice"}, 60)

	first, err := Sign(unsigned, DefaultTenant(), provider)
	require.NoError(t, err)
	second, err := Sign(unsigned, DefaultTenant(), provider)
	require.NoError(t, err)

	assert.Equal(t, first.String(), second.String())
}

func TestSignTenantKeyResolution(t *testing.T) {
	t.Parallel()

	for uc, tc := range map[string]struct {
		domain   string
		keystore string
	}{
		"mixed case":        {domain: "Example.Com", keystore: "example-com.jks"},
		"surrounding space": {domain: "  sub.example.org ", keystore: "sub-example-org.jks"},
		"no dots":           {domain: "tenant", keystore: "tenant.jks"},
	} {
		t.Run(uc, func(t *testing.T) {
			t.Parallel()

			key := testRSAKey(t, 1)
			provider := &fakeKeyProvider{tenantKey: key}

			signed, err := Sign(buildFrozen(t, ClaimSet{"X-User": "bob"}, 60), Tenant{Domain: tc.domain}, provider)
			require.NoError(t, err)

			assert.Equal(t, 0, provider.defaultCalls)
			assert.Equal(t, 1, provider.tenantCalls)
			assert.Equal(t, tc.keystore, provider.keystoreName)
			assert.Equal(t, tc.domain, provider.tenantDomain)
			verifyPKCS1(t, &key.PublicKey, signed)
		})
	}
}

func TestSignAcceptedKeyForms(t *testing.T) {
	t.Parallel()

	key := testRSAKey(t, 0)
	jwkKey, err := jwk.FromRaw(key)
	require.NoError(t, err)

	for uc, pk := range map[string]PrivateKey{
		"rsa private key": key,
		"jwk private key": jwkKey,
		"crypto signer":   opaqueSigner{inner: key},
	} {
		t.Run(uc, func(t *testing.T) {
			t.Parallel()

			signed, err := Sign(buildFrozen(t, ClaimSet{"X-User": "alice"}, 60), DefaultTenant(),
				&fakeKeyProvider{defaultKey: pk})
			require.NoError(t, err)
			verifyPKCS1(t, &key.PublicKey, signed)
		})
	}
}

func TestSignErrors(t *testing.T) {
	t.Parallel()

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	providerErr := errors.New("registry unavailable")
	rsaKey := testRSAKey(t, 0)

	for uc, tc := range map[string]struct {
		provider KeyProvider
		unsigned UnsignedAssertion
		code     ErrorCode
		cause    error
	}{
		"provider fails": {
			provider: &fakeKeyProvider{err: providerErr},
			code:     ErrCodeKeyResolution,
			cause:    providerErr,
		},
		"provider returns nothing": {
			provider: &fakeKeyProvider{},
			code:     ErrCodeKeyResolution,
		},
		"provider returns typed nil": {
			provider: &fakeKeyProvider{defaultKey: (*rsa.PrivateKey)(nil)},
			code:     ErrCodeKeyResolution,
		},
		"no provider": {
			code: ErrCodeKeyResolution,
		},
		"ecdsa key": {
			provider: &fakeKeyProvider{defaultKey: ecKey},
			code:     ErrCodeUnsupportedKey,
		},
		"opaque value": {
			provider: &fakeKeyProvider{defaultKey: "not a key"},
			code:     ErrCodeUnsupportedKey,
		},
		"public key": {
			provider: &fakeKeyProvider{defaultKey: &rsaKey.PublicKey},
			code:     ErrCodeUnsupportedKey,
		},
		"crypto failure": {
			provider: &fakeKeyProvider{defaultKey: opaqueSigner{inner: rsaKey, err: errors.New("hsm offline")}},
			code:     ErrCodeSigning,
		},
		"empty assertion": {
			provider: &fakeKeyProvider{defaultKey: rsaKey},
			unsigned: UnsignedAssertion{},
			code:     ErrCodeSigning,
		},
	} {
		t.Run(uc, func(t *testing.T) {
			t.Parallel()

			unsigned := tc.unsigned
			if uc != "empty assertion" {
				unsigned = buildFrozen(t, ClaimSet{"X-User": "alice"}, 60)
			}

			signed, err := Sign(unsigned, DefaultTenant(), tc.provider)
			require.Error(t, err)
			assert.Equal(t, tc.code, CodeOf(err))
			assert.Equal(t, SignedAssertion{}, signed)
			assert.NotContains(t, err.Error(), "alice")
			if tc.cause != nil {
				assert.ErrorIs(t, err, tc.cause)
			}
		})
	}
}

func TestSignConcurrentCallsAreIndependent(t *testing.T) {
	t.Parallel()

	defaultKey := testRSAKey(t, 0)
	tenantKey := testRSAKey(t, 1)
	provider := &fakeKeyProvider{defaultKey: defaultKey, tenantKey: tenantKey}

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			tenant, pub := DefaultTenant(), &defaultKey.PublicKey
			if i%2 == 1 {
				tenant, pub = Tenant{Domain: "example.com"}, &tenantKey.PublicKey
			}
			unsigned, err := Build(ClaimSet{"X-Index": string(rune('a' + i))}, 60)
			if !assert.NoError(t, err) {
				return
			}
			signed, err := Sign(unsigned, tenant, provider)
			if !assert.NoError(t, err) {
				return
			}
			_, err = jws.Verify([]byte(signed.String()), jws.WithKey(jwa.RS256, pub))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, provider.defaultCalls)
	assert.Equal(t, 8, provider.tenantCalls)
}
