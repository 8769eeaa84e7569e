package hdrjwt

import (
	"net/http"
	"strings"
	"time"
)

// ExpirationClaim is the reserved claim name carrying the expiration instant.
const ExpirationClaim = "exp"

// ClaimSet maps claim names to values. Header-derived claims are strings.
type ClaimSet map[string]any

// Clone returns a shallow copy of the claim set.
func (c ClaimSet) Clone() ClaimSet {
	out := make(ClaimSet, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Claims represents a verified assertion.
type Claims struct {
	ExpiresAt time.Time
	Headers   map[string]string
	Custom    map[string]any
}

// ParseHeaderList splits a comma separated list of header names.
func ParseHeaderList(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ClaimsFromHeaders copies the named headers that are present into a new claim set.
func ClaimsFromHeaders(headers map[string]string, include []string) ClaimSet {
	claims := make(ClaimSet, len(include))
	for _, name := range include {
		if v, ok := headers[name]; ok {
			claims[name] = v
		}
	}
	return claims
}

// ClaimsFromHTTPHeader works like ClaimsFromHeaders on canonicalized HTTP headers.
// Claim names keep the spelling of the include list.
func ClaimsFromHTTPHeader(headers http.Header, include []string) ClaimSet {
	claims := make(ClaimSet, len(include))
	for _, name := range include {
		if values := headers.Values(name); len(values) > 0 {
			claims[name] = values[0]
		}
	}
	return claims
}
