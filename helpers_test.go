package hdrjwt

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

var (
	testKeysOnce sync.Once
	testKeys     [2]*rsa.PrivateKey
	testKeysErr  error
)

// testRSAKey returns one of two shared 2048 bit keys.
func testRSAKey(t *testing.T, idx int) *rsa.PrivateKey {
	t.Helper()

	testKeysOnce.Do(func() {
		for i := range testKeys {
			testKeys[i], testKeysErr = rsa.GenerateKey(rand.Reader, 2048)
			if testKeysErr != nil {
				return
			}
		}
	})
	require.NoError(t, testKeysErr)
	return testKeys[idx]
}

func frozenClock() time.Time {
	return time.Unix(1700000000, 0).UTC()
}

type fakeKeyProvider struct {
	mu           sync.Mutex
	defaultKey   PrivateKey
	tenantKey    PrivateKey
	err          error
	defaultCalls int
	tenantCalls  int
	keystoreName string
	tenantDomain string
}

func (f *fakeKeyProvider) GetDefaultPrivateKey() (PrivateKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.defaultKey, nil
}

func (f *fakeKeyProvider) GetPrivateKey(keystoreName, tenantDomain string) (PrivateKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tenantCalls++
	f.keystoreName = keystoreName
	f.tenantDomain = tenantDomain
	if f.err != nil {
		return nil, f.err
	}
	return f.tenantKey, nil
}

func decodeSegment(t *testing.T, seg string) []byte {
	t.Helper()

	require.NotContains(t, seg, "=")
	raw, err := segmentEncoding.DecodeString(seg)
	require.NoError(t, err)
	return raw
}

func decodePayload(t *testing.T, token string) map[string]any {
	t.Helper()

	parts := strings.Split(token, ".")
	require.GreaterOrEqual(t, len(parts), 2)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(decodeSegment(t, parts[1]), &payload))
	return payload
}
