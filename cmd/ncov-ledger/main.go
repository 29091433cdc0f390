// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the ncov-ledger CLI.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/ncov-ledger/internal/logging"
	"github.com/pdiddy/ncov-ledger/internal/secrets"
	"github.com/pdiddy/ncov-ledger/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Populated by the root command before any subcommand runs.
var (
	cfg           = types.DefaultConfig()
	loadedSecrets map[string]string
	logger        = zap.NewNop()
)

// rootCmd is the base command for the ncov-ledger CLI.
var rootCmd = &cobra.Command{
	Use:   "ncov-ledger",
	Short: "Build a daily epidemic ledger from official bulletins",
	Long: `ncov-ledger scrapes the national and provincial daily epidemic bulletins,
extracts their counts into a local SQLite ledger and exports the series with
derived columns.

Run "ingest national" first: provincial bulletins merge into the records the
national run creates. Re-running is safe; bulletins already recorded are
skipped.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = c

		logger, err = logging.New(cfg.Log)
		if err != nil {
			return err
		}
		if f := viper.ConfigFileUsed(); f != "" {
			logger.Debug("using config file", zap.String("path", f))
		}

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	d := types.DefaultConfig()
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./ncov-ledger.yaml or ~/.config/ncov-ledger/ncov-ledger.yaml)")
	pf.String("data-dir", d.Data.Dir, "directory holding ledger.db")
	pf.String("log-level", d.Log.Level, "log level: debug, info, warn, error")
	pf.String("log-format", d.Log.Format, "log format: console or json")
	pf.String("backend", string(d.Fetch.Backend), "fetch backend: http or browser")

	for key, flag := range map[string]string{
		"data.dir":      "data-dir",
		"log.level":     "log-level",
		"log.format":    "log-format",
		"fetch.backend": "backend",
	} {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ncov-ledger")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "ncov-ledger"))
		}
	}

	viper.SetEnvPrefix("NCOV_LEDGER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig overlays the config file, environment and flags on the
// defaults. A missing config file is not an error unless --config named it.
func loadConfig() (types.Config, error) {
	c := types.DefaultConfig()
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, eris.Wrap(err, "reading config")
		}
	}
	if err := viper.Unmarshal(&c); err != nil {
		return c, eris.Wrap(err, "decoding config")
	}
	return c, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
