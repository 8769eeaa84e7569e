package hdrjwt

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

// ErrNoHeadersConfigured is returned by Mediate when the include list is empty.
var ErrNoHeadersConfigured = errors.New("no headers configured for the assertion")

// TenantResolver determines the tenant an inbound request belongs to.
type TenantResolver func(*http.Request) (Tenant, error)

// Mediator turns selected inbound headers into a signed assertion attached to
// an outgoing header.
type Mediator struct {
	cfg     MediatorConfig
	builder *Builder
	keys    KeyProvider
	logger  zerolog.Logger
}

// NewMediator constructs a Mediator. Builder options are passed to the assertion builder.
func NewMediator(cfg MediatorConfig, keys KeyProvider, logger zerolog.Logger, opts ...BuilderOption) (*Mediator, error) {
	if keys == nil {
		return nil, newError(ErrCodeConfiguration, errors.New("key provider is required"))
	}
	if cfg.OutgoingHeader == "" {
		return nil, newError(ErrCodeConfiguration, errors.New("outgoing header name is required"))
	}
	cfg.IncludeHeaders = normalizeHeaderNames(cfg.IncludeHeaders)
	return &Mediator{
		cfg:     cfg,
		builder: NewBuilder(opts...),
		keys:    keys,
		logger:  logger,
	}, nil
}

// OutgoingHeader returns the header name the token is attached to.
func (m *Mediator) OutgoingHeader() string {
	return m.cfg.OutgoingHeader
}

// Mediate issues a token for the configured headers present in headers.
func (m *Mediator) Mediate(headers map[string]string, tenant Tenant) (string, error) {
	if len(m.cfg.IncludeHeaders) == 0 {
		return "", ErrNoHeadersConfigured
	}
	return m.issue(ClaimsFromHeaders(headers, m.cfg.IncludeHeaders), tenant)
}

// Apply returns a copy of r carrying the token in the outgoing header and in its
// context. A client supplied value of the outgoing header is always removed.
// An error is returned only when the surrounding flow has to be aborted.
func (m *Mediator) Apply(r *http.Request, tenant Tenant) (*http.Request, error) {
	out := r.Clone(r.Context())
	out.Header.Del(m.cfg.OutgoingHeader)

	if len(m.cfg.IncludeHeaders) == 0 {
		m.logger.Error().Msg("No headers configured for the assertion. Outgoing header will not be set")
		return out, nil
	}

	token, err := m.issue(ClaimsFromHTTPHeader(r.Header, m.cfg.IncludeHeaders), tenant)
	if err != nil {
		event := m.logger.Error().
			Err(err).
			Str("error_code", string(CodeOf(err))).
			Str("tenant", tenant.Domain)
		if m.abortOn(err) {
			event.Msg("Signing key unavailable. Aborting")
			return nil, err
		}
		event.Msg("Assertion not issued. Continuing without it")
		return out, nil
	}

	out.Header.Set(m.cfg.OutgoingHeader, token)
	return out.WithContext(BindAssertion(out.Context(), token)), nil
}

// Middleware applies the mediator to every request before handing it to next.
// A nil resolver maps every request to the default tenant.
func (m *Mediator) Middleware(resolve TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := DefaultTenant()
			if resolve != nil {
				var err error
				if tenant, err = resolve(r); err != nil {
					m.logger.Error().Err(err).Msg("Tenant could not be resolved")
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
			}

			out, err := m.Apply(r, tenant)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, out)
		})
	}
}

func (m *Mediator) issue(claims ClaimSet, tenant Tenant) (string, error) {
	unsigned, err := m.builder.Build(claims, m.cfg.ExpirationSeconds)
	if err != nil {
		return "", err
	}
	signed, err := Sign(unsigned, tenant, m.keys)
	if err != nil {
		return "", err
	}
	return signed.String(), nil
}

func (m *Mediator) abortOn(err error) bool {
	return IsCode(err, ErrCodeKeyResolution) && !m.cfg.ContinueOnKeyFailure
}
