package hdrjwt

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHeaderList(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ParseHeaderList(""))
	assert.Nil(t, ParseHeaderList("  "))
	assert.Equal(t, []string{"X-User", "X-Role", "X-Org"}, ParseHeaderList("X-User, X-Role,,X-Org ,"))
}

func TestClaimsFromHeaders(t *testing.T) {
	t.Parallel()

	headers := map[string]string{
		"X-User":   "alice",
		"X-Role":   "",
		"X-Secret": "do-not-include",
	}

	claims := ClaimsFromHeaders(headers, []string{"X-User", "X-Role", "X-Missing"})

	assert.Equal(t, ClaimSet{"X-User": "alice", "X-Role": ""}, claims)
	assert.Empty(t, ClaimsFromHeaders(headers, nil))
	assert.Empty(t, ClaimsFromHeaders(nil, []string{"X-User"}))
}

func TestClaimsFromHTTPHeader(t *testing.T) {
	t.Parallel()

	headers := http.Header{}
	headers.Set("X-User", "alice")
	headers.Add("X-Group", "admins")
	headers.Add("X-Group", "users")

	claims := ClaimsFromHTTPHeader(headers, []string{"x-user", "X-Group", "X-Missing"})

	assert.Equal(t, ClaimSet{"x-user": "alice", "X-Group": "admins"}, claims)
}

func TestClaimSetClone(t *testing.T) {
	t.Parallel()

	orig := ClaimSet{"a": "1"}
	clone := orig.Clone()
	clone["b"] = "2"

	assert.Equal(t, ClaimSet{"a": "1"}, orig)
	assert.Equal(t, ClaimSet{}, ClaimSet(nil).Clone())
}
