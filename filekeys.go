package hdrjwt

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/youmark/pkcs8"
)

const (
	pemBlockTypeEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	pemBlockTypePrivateKey          = "PRIVATE KEY"
	pemBlockTypeECPrivateKey        = "EC PRIVATE KEY"
	pemBlockTypeRSAPrivateKey       = "RSA PRIVATE KEY"

	// PEMHeaderKeyAlias selects an entry by tenant domain inside a multi key PEM file.
	PEMHeaderKeyAlias = "X-Key-Alias"

	pemFileSuffix = ".pem"
)

// ErrNoSuchKey is returned when a key file or entry does not exist.
var ErrNoSuchKey = errors.New("no such key")

// FileKeyProvider reads private keys from PEM files in a directory. The key store
// "example-com.jks" is read from "example-com.pem".
type FileKeyProvider struct {
	dir        string
	defaultKey string
	password   []byte
}

// NewFileKeyProvider creates a provider rooted at cfg.Dir.
func NewFileKeyProvider(cfg FileKeysConfig) (*FileKeyProvider, error) {
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, newError(ErrCodeConfiguration, err)
	}
	if !info.IsDir() {
		return nil, newError(ErrCodeConfiguration, fmt.Errorf("'%s' is not a directory", cfg.Dir))
	}
	defaultKey := cfg.DefaultKey
	if defaultKey == "" {
		defaultKey = defaultKeyFile
	}
	return &FileKeyProvider{
		dir:        cfg.Dir,
		defaultKey: defaultKey,
		password:   []byte(cfg.Password),
	}, nil
}

// GetDefaultPrivateKey loads the root tenant key.
func (p *FileKeyProvider) GetDefaultPrivateKey() (PrivateKey, error) {
	return p.load(p.defaultKey, "")
}

// GetPrivateKey loads the key of the named key store, preferring the entry aliased tenantDomain.
func (p *FileKeyProvider) GetPrivateKey(keystoreName, tenantDomain string) (PrivateKey, error) {
	base := keystoreBaseName(keystoreName)
	if base == "" || base == "." || base == ".." || strings.ContainsAny(base, `/\`) {
		return nil, fmt.Errorf("%w: invalid key store name", ErrNoSuchKey)
	}
	return p.load(base+pemFileSuffix, tenantDomain)
}

func (p *FileKeyProvider) load(file, alias string) (PrivateKey, error) {
	contents, err := os.ReadFile(filepath.Join(p.dir, file))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoSuchKey, file)
		}
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	key, err := parsePrivateKey(contents, p.password, alias)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return key, nil
}

func parsePrivateKey(data, password []byte, alias string) (PrivateKey, error) {
	blocks := readPEMBlocks(data)
	if len(blocks) == 0 {
		return nil, errors.New("no PEM entries found")
	}

	keys := make([]PrivateKey, 0, len(blocks))
	for idx, block := range blocks {
		key, err := parseBlock(block, password)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %d entry in the pem file: %w", idx, err)
		}
		if alias != "" && block.Headers[PEMHeaderKeyAlias] == alias {
			return key, nil
		}
		keys = append(keys, key)
	}
	if len(keys) == 1 {
		return keys[0], nil
	}
	return nil, fmt.Errorf("%w: no entry with alias %q", ErrNoSuchKey, alias)
}

func parseBlock(block *pem.Block, password []byte) (PrivateKey, error) {
	switch block.Type {
	case pemBlockTypeEncryptedPrivateKey:
		// PKCS#8 (PKCS#5 (v2.0) algorithms)
		return pkcs8.ParsePKCS8PrivateKey(block.Bytes, password)
	case pemBlockTypePrivateKey:
		return x509.ParsePKCS8PrivateKey(block.Bytes)
	case pemBlockTypeECPrivateKey:
		return x509.ParseECPrivateKey(block.Bytes)
	case pemBlockTypeRSAPrivateKey:
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unsupported entry '%s'", block.Type)
	}
}

func readPEMBlocks(data []byte) []*pem.Block {
	var blocks []*pem.Block
	for {
		block, rest := pem.Decode(data)
		if block == nil {
			return blocks
		}
		blocks = append(blocks, block)
		data = rest
	}
}
