package hdrjwt

import (
	"crypto"
	"crypto/rsa"
	"errors"
	"fmt"
	"reflect"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// Sign resolves the tenant's private key from keyProvider and signs the assertion.
// Any error means no token was produced.
func Sign(unsigned UnsignedAssertion, tenant Tenant, keyProvider KeyProvider) (SignedAssertion, error) {
	if keyProvider == nil {
		return SignedAssertion{}, newError(ErrCodeKeyResolution, errors.New("no key provider"))
	}
	if unsigned.headerSeg == "" || unsigned.payloadSeg == "" {
		return SignedAssertion{}, newError(ErrCodeSigning, errors.New("assertion is empty"))
	}

	key, err := resolveKey(tenant, keyProvider)
	if err != nil {
		return SignedAssertion{}, err
	}
	signingKey, err := rsaSigningKey(key)
	if err != nil {
		return SignedAssertion{}, err
	}

	signer, err := jws.NewSigner(Algorithm)
	if err != nil {
		return SignedAssertion{}, newError(ErrCodeSigning, err)
	}
	signature, err := signer.Sign(unsigned.SigningInput(), signingKey)
	if err != nil {
		return SignedAssertion{}, newError(ErrCodeSigning, err)
	}

	return SignedAssertion{
		UnsignedAssertion: unsigned,
		signatureSeg:      segmentEncoding.EncodeToString(signature),
	}, nil
}

func resolveKey(tenant Tenant, keyProvider KeyProvider) (PrivateKey, error) {
	var (
		key PrivateKey
		err error
	)
	if tenant.IsDefault {
		key, err = keyProvider.GetDefaultPrivateKey()
	} else {
		key, err = keyProvider.GetPrivateKey(tenant.KeystoreName(), tenant.Domain)
	}
	if err != nil {
		return nil, newError(ErrCodeKeyResolution, err)
	}
	if isNilKey(key) {
		return nil, newError(ErrCodeKeyResolution, errors.New("key provider returned no key"))
	}
	return key, nil
}

func rsaSigningKey(key PrivateKey) (any, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case jwk.RSAPrivateKey:
		var raw rsa.PrivateKey
		if err := k.Raw(&raw); err != nil {
			return nil, newError(ErrCodeUnsupportedKey, err)
		}
		return &raw, nil
	case crypto.Signer:
		if _, ok := k.Public().(*rsa.PublicKey); ok {
			return k, nil
		}
	}
	return nil, newError(ErrCodeUnsupportedKey, fmt.Errorf("key of type %T", key))
}

func isNilKey(key PrivateKey) bool {
	if key == nil {
		return true
	}
	v := reflect.ValueOf(key)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return v.IsNil()
	}
	return false
}
