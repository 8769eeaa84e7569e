package hdrjwt

import (
	"crypto"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// EnvPrefix prefixes environment overrides, e.g. HDRJWT_MEDIATOR_EXPIRATION__SECONDS.
const EnvPrefix = "HDRJWT_"

const (
	BackendFile = "file"
	BackendKMS  = "kms"
	BackendDev  = "dev"

	LogFormatText = "text"
	LogFormatJSON = "json"

	defaultOutgoingHeader = "X-JWT-Assertion"
	defaultKeyFile        = "default.pem"
	defaultKeyVersion     = "1"
	defaultKMSTimeout     = 5 * time.Second
	defaultKeyCacheTTL    = 5 * time.Minute
	defaultClockSkew      = 30 * time.Second
)

// Config is the complete configuration of the assertion mediator.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Mediator MediatorConfig `koanf:"mediator"`
	Keys     KeysConfig     `koanf:"keys"`
}

// LogConfig selects level and output format.
type LogConfig struct {
	Level  zerolog.Level `koanf:"level"`
	Format string        `koanf:"format" validate:"oneof=text json"`
}

// MediatorConfig describes which headers become claims and where the token goes.
type MediatorConfig struct {
	OutgoingHeader       string   `koanf:"outgoing_header" validate:"required"`
	IncludeHeaders       []string `koanf:"include_headers"`
	ExpirationSeconds    int      `koanf:"expiration_seconds"`
	ContinueOnKeyFailure bool     `koanf:"continue_on_key_failure"`
}

// KeysConfig selects the key backend.
type KeysConfig struct {
	Backend  string         `koanf:"backend" validate:"oneof=file kms dev"`
	CacheTTL time.Duration  `koanf:"cache_ttl"`
	File     FileKeysConfig `koanf:"file"`
	KMS      KMSConfig      `koanf:"kms"`
}

// FileKeysConfig configures the PEM directory backend.
type FileKeysConfig struct {
	Dir        string `koanf:"dir"`
	DefaultKey string `koanf:"default_key"`
	Password   string `koanf:"password"`
}

// KMSConfig configures the Cloud KMS backend.
type KMSConfig struct {
	Project    string        `koanf:"project"`
	Location   string        `koanf:"location"`
	KeyRing    string        `koanf:"key_ring"`
	DefaultKey string        `koanf:"default_key"`
	KeyVersion string        `koanf:"key_version"`
	Endpoint   string        `koanf:"endpoint"`
	Timeout    time.Duration `koanf:"timeout"`
}

// VerifierConfig contains verification parameters.
type VerifierConfig struct {
	PublicKey crypto.PublicKey
	ClockSkew time.Duration
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{Level: zerolog.InfoLevel, Format: LogFormatText},
		Mediator: MediatorConfig{
			OutgoingHeader:    defaultOutgoingHeader,
			ExpirationSeconds: DefaultExpirationSeconds,
		},
		Keys: KeysConfig{
			Backend:  BackendFile,
			CacheTTL: defaultKeyCacheTTL,
			File:     FileKeysConfig{DefaultKey: defaultKeyFile},
			KMS:      KMSConfig{KeyVersion: defaultKeyVersion, Timeout: defaultKMSTimeout},
		},
	}
}

// LoadConfig merges defaults, the optional YAML file and HDRJWT_ environment variables.
func LoadConfig(configFile string) (Config, error) {
	cfg := DefaultConfig()
	parser := koanf.New(".")

	if err := parser.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return cfg, newError(ErrCodeConfiguration, err)
	}
	if configFile != "" {
		raw, err := os.ReadFile(configFile)
		if err != nil {
			return cfg, newError(ErrCodeConfiguration, fmt.Errorf("read %s: %w", configFile, err))
		}
		if err := parser.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
			return cfg, newError(ErrCodeConfiguration, fmt.Errorf("parse %s: %w", configFile, err))
		}
	}
	if err := parser.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return cfg, newError(ErrCodeConfiguration, err)
	}

	err := parser.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				logLevelDecodeHook,
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return cfg, newError(ErrCodeConfiguration, err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return cfg, newError(ErrCodeConfiguration, err)
	}
	return cfg, nil
}

// envKey maps HDRJWT_KEYS_FILE_DEFAULT__KEY to keys.file.default_key.
func envKey(key, value string) (string, any) {
	tmp := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	tmp = strings.ReplaceAll(tmp, "__", `\:\`)
	tmp = strings.ReplaceAll(tmp, "_", ".")
	return strings.ReplaceAll(tmp, `\:\`, "_"), value
}

func logLevelDecodeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(zerolog.Level(0)) {
		return data, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(data.(string)))
	if err != nil {
		return nil, err
	}
	return level, nil
}

// normalize sets default values for optional fields.
func (c *Config) normalize() {
	c.Mediator.IncludeHeaders = normalizeHeaderNames(c.Mediator.IncludeHeaders)
	if c.Keys.File.DefaultKey == "" {
		c.Keys.File.DefaultKey = defaultKeyFile
	}
	if c.Keys.KMS.KeyVersion == "" {
		c.Keys.KMS.KeyVersion = defaultKeyVersion
	}
	if c.Keys.KMS.Timeout <= 0 {
		c.Keys.KMS.Timeout = defaultKMSTimeout
	}
	if c.Log.Format == "" {
		c.Log.Format = LogFormatText
	}
}

// validate ensures the configuration is usable.
func (c Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	switch c.Keys.Backend {
	case BackendFile:
		if c.Keys.File.Dir == "" {
			return errors.New("keys.file.dir is required for the file backend")
		}
	case BackendKMS:
		return c.Keys.KMS.validate()
	}
	return nil
}

func (c KMSConfig) validate() error {
	switch {
	case c.Project == "":
		return errors.New("keys.kms.project is required")
	case c.Location == "":
		return errors.New("keys.kms.location is required")
	case c.KeyRing == "":
		return errors.New("keys.kms.key_ring is required")
	case c.DefaultKey == "":
		return errors.New("keys.kms.default_key is required")
	}
	return nil
}

func (c *VerifierConfig) normalize() {
	if c.ClockSkew <= 0 {
		c.ClockSkew = defaultClockSkew
	}
}

func (c VerifierConfig) validate() error {
	if c.PublicKey == nil {
		return errors.New("public key is required")
	}
	if _, ok := c.PublicKey.(*rsa.PublicKey); !ok {
		return fmt.Errorf("public key of type %T is not an RSA key", c.PublicKey)
	}
	return nil
}

func normalizeHeaderNames(names []string) []string {
	var out []string
	for _, name := range names {
		out = append(out, ParseHeaderList(name)...)
	}
	return out
}
