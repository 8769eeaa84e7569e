package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bionicotaku/lingo-utils-hdrjwt"
)

const envFileVariable = "HDRJWT_ENV_FILE"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "hdrjwt",
		Short:         "Issue and inspect header derived signed assertions",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env")
			return loadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringP("config", "c", "", "Config file (YAML)")
	root.PersistentFlags().String("env", defaultEnvPath(), "Path to .env file (env "+envFileVariable+")")

	root.AddCommand(newSignCommand(), newVerifyCommand(), newJWKCommand())
	return root
}

func defaultEnvPath() string {
	if path := os.Getenv(envFileVariable); path != "" {
		return path
	}
	return ".env"
}

// loadEnvFile never overrides variables that are already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

type runtime struct {
	cfg    hdrjwt.Config
	logger zerolog.Logger
	keys   hdrjwt.KeyProvider
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := hdrjwt.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	logger := hdrjwt.NewLogger(cfg.Log)

	keys, err := hdrjwt.NewKeyProvider(context.Background(), cfg.Keys)
	if err != nil {
		return nil, err
	}
	if cfg.Keys.Backend == hdrjwt.BackendDev {
		logger.Warn().Msg("Using an ephemeral development key. Tokens cannot be verified after exit")
	}
	return &runtime{cfg: cfg, logger: logger, keys: keys}, nil
}
