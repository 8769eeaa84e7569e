package hdrjwt

import (
	"context"
	"fmt"
)

// NewKeyProvider builds the configured backend. File and KMS backends are wrapped
// in a CachingKeyProvider when cfg.CacheTTL is positive; the caller owns Start/Stop.
func NewKeyProvider(ctx context.Context, cfg KeysConfig, opts ...KMSOption) (KeyProvider, error) {
	var (
		provider KeyProvider
		err      error
	)
	switch cfg.Backend {
	case BackendDev:
		dev, err := NewDevKeyProvider()
		if err != nil {
			return nil, err
		}
		return dev, nil
	case BackendFile, "":
		provider, err = NewFileKeyProvider(cfg.File)
	case BackendKMS:
		provider, err = NewKMSKeyProvider(ctx, cfg.KMS, opts...)
	default:
		return nil, newError(ErrCodeConfiguration, fmt.Errorf("unknown key backend %q", cfg.Backend))
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheTTL > 0 {
		return NewCachingKeyProvider(provider, cfg.CacheTTL), nil
	}
	return provider, nil
}
