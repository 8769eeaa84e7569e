package hdrjwt

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	cloudkms "google.golang.org/api/cloudkms/v1"
	"google.golang.org/api/option"
)

const kmsAlgorithmPKCS1SHA256 = "_SHA256"

// KMSOption customizes a KMSKeyProvider.
type KMSOption func(*kmsOptions)

type kmsOptions struct {
	tokenSource   oauth2.TokenSource
	clientOptions []option.ClientOption
}

// WithTokenSource authenticates KMS calls with ts instead of application default credentials.
func WithTokenSource(ts oauth2.TokenSource) KMSOption {
	return func(o *kmsOptions) {
		o.tokenSource = ts
	}
}

// WithClientOptions appends raw client options, e.g. option.WithHTTPClient.
func WithClientOptions(opts ...option.ClientOption) KMSOption {
	return func(o *kmsOptions) {
		o.clientOptions = append(o.clientOptions, opts...)
	}
}

// KMSKeyProvider resolves keys held in Cloud KMS. The key store name without its
// ".jks" suffix is the crypto key id inside the configured key ring.
// Signers are cached per key version.
type KMSKeyProvider struct {
	cfg     KMSConfig
	service *cloudkms.Service

	mu      sync.RWMutex
	signers map[string]*kmsSigner
}

// NewKMSKeyProvider constructs a provider for the configured key ring.
func NewKMSKeyProvider(ctx context.Context, cfg KMSConfig, opts ...KMSOption) (*KMSKeyProvider, error) {
	if err := cfg.validate(); err != nil {
		return nil, newError(ErrCodeConfiguration, err)
	}
	if cfg.KeyVersion == "" {
		cfg.KeyVersion = defaultKeyVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultKMSTimeout
	}

	var o kmsOptions
	for _, opt := range opts {
		opt(&o)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	// the client outlives ctx, only its values are kept
	service, err := cloudkms.NewService(context.WithoutCancel(ctx), o.serviceOptions(cfg)...)
	if err != nil {
		return nil, newError(ErrCodeConfiguration, fmt.Errorf("create kms client: %w", err))
	}
	return &KMSKeyProvider{
		cfg:     cfg,
		service: service,
		signers: make(map[string]*kmsSigner),
	}, nil
}

func (o kmsOptions) serviceOptions(cfg KMSConfig) []option.ClientOption {
	var out []option.ClientOption
	if cfg.Endpoint != "" {
		out = append(out, option.WithEndpoint(cfg.Endpoint))
	}
	if o.tokenSource != nil {
		out = append(out, option.WithTokenSource(oauth2.ReuseTokenSource(nil, o.tokenSource)))
	}
	return append(out, o.clientOptions...)
}

// GetDefaultPrivateKey returns a signer for the configured default key.
func (p *KMSKeyProvider) GetDefaultPrivateKey() (PrivateKey, error) {
	return p.signer(p.cfg.DefaultKey)
}

// GetPrivateKey returns a signer for the key named after the key store.
func (p *KMSKeyProvider) GetPrivateKey(keystoreName, _ string) (PrivateKey, error) {
	return p.signer(keystoreBaseName(keystoreName))
}

func (p *KMSKeyProvider) keyVersionName(keyID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/keyRings/%s/cryptoKeys/%s/cryptoKeyVersions/%s",
		p.cfg.Project, p.cfg.Location, p.cfg.KeyRing, keyID, p.cfg.KeyVersion)
}

func (p *KMSKeyProvider) signer(keyID string) (PrivateKey, error) {
	if keyID == "" || strings.Contains(keyID, "/") {
		return nil, fmt.Errorf("%w: invalid key id", ErrNoSuchKey)
	}
	name := p.keyVersionName(keyID)

	p.mu.RLock()
	s, ok := p.signers[name]
	p.mu.RUnlock()
	if ok {
		return s, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok = p.signers[name]; ok {
		return s, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	resp, err := p.service.Projects.Locations.KeyRings.CryptoKeys.CryptoKeyVersions.
		GetPublicKey(name).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetch public key of %s: %w", keyID, err)
	}
	if !strings.HasPrefix(resp.Algorithm, "RSA_SIGN_PKCS1_") || !strings.HasSuffix(resp.Algorithm, kmsAlgorithmPKCS1SHA256) {
		return nil, fmt.Errorf("key %s uses unsupported algorithm %s", keyID, resp.Algorithm)
	}
	block, _ := pem.Decode([]byte(resp.Pem))
	if block == nil {
		return nil, fmt.Errorf("public key of %s is not PEM encoded", keyID)
	}
	public, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key of %s: %w", keyID, err)
	}

	s = &kmsSigner{
		name:    name,
		public:  public,
		service: p.service,
		timeout: p.cfg.Timeout,
	}
	p.signers[name] = s
	return s, nil
}

type kmsSigner struct {
	name    string
	public  crypto.PublicKey
	service *cloudkms.Service
	timeout time.Duration
}

func (s *kmsSigner) Public() crypto.PublicKey {
	return s.public
}

func (s *kmsSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if opts == nil || opts.HashFunc() != crypto.SHA256 {
		return nil, errors.New("kms signer supports SHA-256 digests only")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	resp, err := s.service.Projects.Locations.KeyRings.CryptoKeys.CryptoKeyVersions.
		AsymmetricSign(s.name, &cloudkms.AsymmetricSignRequest{
			Digest: &cloudkms.Digest{Sha256: base64.StdEncoding.EncodeToString(digest)},
		}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("asymmetric sign: %w", err)
	}
	return base64.StdEncoding.DecodeString(resp.Signature)
}
