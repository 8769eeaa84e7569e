package hdrjwt

import (
	"errors"
	"math"
	"reflect"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// DefaultExpirationSeconds applies when a non-positive expiration is requested.
const DefaultExpirationSeconds = 3600

// Builder produces unsigned assertions.
type Builder struct {
	now func() time.Time
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithClock overrides the time source used to compute "exp".
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBuilder constructs a Builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var defaultBuilder = NewBuilder()

// Build encodes claims with an expiration using the system clock.
func Build(claims ClaimSet, expirationSeconds int) (UnsignedAssertion, error) {
	return defaultBuilder.Build(claims, expirationSeconds)
}

// Build encodes the fixed header and the claims plus a computed "exp" claim.
// A caller supplied "exp" is always replaced.
func (b *Builder) Build(claims ClaimSet, expirationSeconds int) (UnsignedAssertion, error) {
	if expirationSeconds <= 0 {
		expirationSeconds = DefaultExpirationSeconds
	}
	if err := checkClaims(claims); err != nil {
		return UnsignedAssertion{}, newError(ErrCodeEncoding, err)
	}

	now := b.now().Unix()
	if now > 0 && int64(expirationSeconds) > math.MaxInt64-now {
		return UnsignedAssertion{}, newError(ErrCodeEncoding, errors.New("expiration is out of range"))
	}

	payload := claims.Clone()
	payload[ExpirationClaim] = now + int64(expirationSeconds)

	headerSeg, err := encodeSegment(assertionHeader{Typ: TokenType, Alg: Algorithm.String()})
	if err != nil {
		return UnsignedAssertion{}, newError(ErrCodeEncoding, err)
	}
	payloadSeg, err := encodeSegment(payload)
	if err != nil {
		return UnsignedAssertion{}, newError(ErrCodeEncoding, err)
	}
	return UnsignedAssertion{headerSeg: headerSeg, payloadSeg: payloadSeg}, nil
}

func encodeSegment(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		// json errors may quote the offending value
		return "", errors.New("value is not representable as JSON")
	}
	return segmentEncoding.EncodeToString(raw), nil
}

func checkClaims(claims ClaimSet) error {
	for name, value := range claims {
		if name == "" {
			return errors.New("empty claim name")
		}
		if !utf8.ValidString(name) {
			return errors.New("claim name is not valid UTF-8")
		}
		if !validUTF8(reflect.ValueOf(value), 0) {
			return errors.New("claim value is not valid UTF-8")
		}
	}
	return nil
}

const maxClaimDepth = 32

// validUTF8 walks strings nested in slices, maps, pointers and structs.
// Anything deeper than maxClaimDepth is left to the JSON encoder.
func validUTF8(v reflect.Value, depth int) bool {
	if !v.IsValid() || depth > maxClaimDepth {
		return true
	}
	switch v.Kind() {
	case reflect.String:
		return utf8.ValidString(v.String())
	case reflect.Interface, reflect.Pointer:
		return v.IsNil() || validUTF8(v.Elem(), depth+1)
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return true
		}
		for i := range v.Len() {
			if !validUTF8(v.Index(i), depth+1) {
				return false
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if !validUTF8(iter.Key(), depth+1) || !validUTF8(iter.Value(), depth+1) {
				return false
			}
		}
	case reflect.Struct:
		for i := range v.NumField() {
			if v.Type().Field(i).IsExported() && !validUTF8(v.Field(i), depth+1) {
				return false
			}
		}
	}
	return true
}
