package hdrjwt

import (
	"encoding/base64"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
)

// Algorithm is the only signature algorithm used for assertions. The header
// "alg" field and the signer are both derived from it.
const Algorithm = jwa.RS256

// TokenType is the fixed "typ" header value.
const TokenType = "JWT"

type assertionHeader struct {
	Typ string `json:"typ"`
	Alg string `json:"alg"`
}

var segmentEncoding = base64.RawURLEncoding

// UnsignedAssertion holds the encoded header and payload segments.
type UnsignedAssertion struct {
	headerSeg  string
	payloadSeg string
}

// HeaderSegment returns the base64url encoded header.
func (u UnsignedAssertion) HeaderSegment() string { return u.headerSeg }

// PayloadSegment returns the base64url encoded payload.
func (u UnsignedAssertion) PayloadSegment() string { return u.payloadSeg }

// SigningInput returns the bytes covered by the signature.
func (u UnsignedAssertion) SigningInput() []byte {
	return []byte(u.String())
}

// String returns the two segment form "header.payload".
func (u UnsignedAssertion) String() string {
	return u.headerSeg + "." + u.payloadSeg
}

// SignedAssertion is an UnsignedAssertion plus its signature segment.
type SignedAssertion struct {
	UnsignedAssertion
	signatureSeg string
}

// SignatureSegment returns the base64url encoded signature.
func (s SignedAssertion) SignatureSegment() string { return s.signatureSeg }

// String returns the compact serialization "header.payload.signature".
func (s SignedAssertion) String() string {
	return strings.Join([]string{s.headerSeg, s.payloadSeg, s.signatureSeg}, ".")
}
