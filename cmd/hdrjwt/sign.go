package main

import (
	"crypto"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/bionicotaku/lingo-utils-hdrjwt"
)

func newSignCommand() *cobra.Command {
	var (
		headers    []string
		tenant     string
		expiration int
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Build and sign an assertion from request headers",
		Example: `  hdrjwt sign -H X-User=alice -H X-Role=admin
  hdrjwt sign --tenant example.com -H X-User=bob --exp 60`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}

			headerMap, err := parseHeaders(headers)
			if err != nil {
				return err
			}
			include := rt.cfg.Mediator.IncludeHeaders
			if len(include) == 0 {
				for name := range headerMap {
					include = append(include, name)
				}
			}
			if expiration <= 0 {
				expiration = rt.cfg.Mediator.ExpirationSeconds
			}

			unsigned, err := hdrjwt.Build(hdrjwt.ClaimsFromHeaders(headerMap, include), expiration)
			if err != nil {
				return err
			}
			signed, err := hdrjwt.Sign(unsigned, hdrjwt.TenantFromDomain(tenant), rt.keys)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed.String())
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Request header as name=value (repeatable)")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant domain, empty for the default tenant")
	cmd.Flags().IntVar(&expiration, "exp", 0, "Expiration in seconds, overrides mediator.expiration_seconds")
	return cmd
}

func newJWKCommand() *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "jwk",
		Short: "Print the public JWK of a tenant signing key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}

			t := hdrjwt.TenantFromDomain(tenant)
			var key hdrjwt.PrivateKey
			if t.IsDefault {
				key, err = rt.keys.GetDefaultPrivateKey()
			} else {
				key, err = rt.keys.GetPrivateKey(t.KeystoreName(), t.Domain)
			}
			if err != nil {
				return err
			}
			signer, ok := key.(crypto.Signer)
			if !ok {
				return fmt.Errorf("key of type %T exposes no public key", key)
			}
			pub, err := hdrjwt.PublicJWK(signer.Public())
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(pub, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant domain, empty for the default tenant")
	return cmd
}

func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected name=value", name)
		}
		headers[name] = value
	}
	return headers, nil
}
