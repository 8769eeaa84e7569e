package main

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/bionicotaku/lingo-utils-hdrjwt"
)

func newVerifyCommand() *cobra.Command {
	var (
		publicKeyFile string
		clockSkew     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Verify an assertion against a PEM encoded public key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := readPublicKey(publicKeyFile)
			if err != nil {
				return err
			}
			verifier, err := hdrjwt.NewVerifier(hdrjwt.VerifierConfig{PublicKey: pub, ClockSkew: clockSkew})
			if err != nil {
				return err
			}
			claims, err := verifier.Verify(args[0])
			if err != nil {
				return err
			}
			printClaims(cmd.OutOrStdout(), claims)
			return nil
		},
	}
	cmd.Flags().StringVar(&publicKeyFile, "public-key", "", "PEM file holding the RSA public key")
	cmd.Flags().DurationVar(&clockSkew, "clock-skew", 30*time.Second, "Accepted clock skew")
	_ = cmd.MarkFlagRequired("public-key")
	return cmd
}

func readPublicKey(path string) (any, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(contents)
	if block == nil {
		return nil, errors.New("no PEM data in " + path)
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		return cert.PublicKey, nil
	default:
		return x509.ParsePKIXPublicKey(block.Bytes)
	}
}

func printClaims(out io.Writer, claims *hdrjwt.Claims) {
	fmt.Fprintln(out, "== Assertion Verified ==")
	fmt.Fprintf(out, "expires_at   : %s\n", claims.ExpiresAt.Format(time.RFC3339))

	names := make([]string, 0, len(claims.Headers))
	for name := range claims.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		fmt.Fprintln(out, "headers:")
		for _, name := range names {
			fmt.Fprintf(out, "  %s: %s\n", name, claims.Headers[name])
		}
	}
	if len(claims.Custom) > 0 {
		fmt.Fprintln(out, "custom:")
		for k, v := range claims.Custom {
			fmt.Fprintf(out, "  %s: %v\n", k, v)
		}
	}
}
