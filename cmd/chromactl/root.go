// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/sigil-dev/chroma-go/internal/config"
	"github.com/sigil-dev/chroma-go/internal/secrets"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd creates the root chromactl command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chromactl",
		Short:         "chromactl: Chroma vector database client and local emulator",
		Long:          "chromactl manages collections and records on a Chroma server, and can run a Chroma-compatible emulator for local development.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("url", "", "server URL, overrides client.host/port/ssl")
	root.PersistentFlags().String("tenant", "", "tenant name")
	root.PersistentFlags().String("database", "", "database name")
	root.PersistentFlags().StringP("output", "o", "table", "output format: table, json or yaml")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newVersionCmd(),
		newDoctorCmd(),
		newInitCmd(),
		newSecretCmd(),
		newServeCmd(),
		newHeartbeatCmd(),
		newCollectionCmd(),
		newUpsertCmd(),
		newGetCmd(),
		newQueryCmd(),
		newDeleteCmd(),
	)

	return root
}

// initViper layers defaults, CHROMA_* env, the config file and flags on the
// global viper (flag > env > file > defaults), then configures logging.
func initViper(cmd *cobra.Command) error {
	// Commands may run more than once per process (tests); start clean.
	viper.Reset()
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return chromaerr.Errorf(chromaerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// No SetConfigType: viper would otherwise also try the bare name,
		// which collides with a ./chroma directory.
		v.SetConfigName("chroma")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/chroma")
		v.AddConfigPath("/etc/chroma")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return chromaerr.Errorf(chromaerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
		}
	}

	flags := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"client.tenant":   "tenant",
		"client.database": "database",
		"verbose":         "verbose",
		"output":          "output",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return chromaerr.Errorf(chromaerr.CodeCLISetupFailure, "binding %s flag: %w", flag, err)
		}
	}

	level := slog.LevelWarn
	if v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	config.WarnInsecurePermissions(slog.Default(), v.ConfigFileUsed())
	return nil
}

// secretStoreFactory is a variable so tests can substitute an in-memory store.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// loadConfig decodes the global viper and resolves keyring references.
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if err := secrets.ResolveConfig(secretStoreFactory(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
