package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/appnet-org/calpack/pkg/headers"
	"github.com/appnet-org/calpack/pkg/layoutfile"
	"github.com/appnet-org/calpack/pkg/logging"
	"github.com/appnet-org/calpack/pkg/packet"
)

type registryKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "calpack",
	Short: "calpack - C-compatible packet layouts",
	Long: `calpack builds, decodes and describes fixed-size binary packets whose
layouts are declared field by field, byte-exact with C structures.

The UDP and TCP headers are always available; more layouts are loaded from
TOML or YAML files with --layouts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initLogging(cmd); err != nil {
			return err
		}
		reg, err := loadRegistry(cmd)
		if err != nil {
			return err
		}
		cmd.SetContext(context.WithValue(cmd.Context(), registryKey{}, reg))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSliceP("layouts", "l", nil, "Layout definition files (TOML or YAML), repeatable")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (env LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console or json (env LOG_FORMAT)")
}

func initLogging(cmd *cobra.Command) error {
	cfg := logging.DefaultConfig()
	cfg.Level = "warn"
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Format = v
	}
	return logging.Init(cfg)
}

// loadRegistry copies the default registry, which holds the built-in
// headers, and adds the layouts of every --layouts file.
func loadRegistry(cmd *cobra.Command) (*packet.Registry, error) {
	reg := packet.DefaultRegistry.Copy()
	files, _ := cmd.Flags().GetStringSlice("layouts")
	for _, path := range files {
		layouts, err := layoutfile.Load(path, reg)
		if err != nil {
			return nil, fmt.Errorf("failed to load layouts: %w", err)
		}
		logging.Info("Loaded layouts",
			zap.String("path", path),
			zap.Int("count", len(layouts)))
	}
	logging.Debug("Layout registry ready",
		zap.Int("layouts", len(reg.List())),
		zap.Int("builtin", len(headers.All())))
	return reg, nil
}

func registryFrom(cmd *cobra.Command) (*packet.Registry, error) {
	reg, ok := cmd.Context().Value(registryKey{}).(*packet.Registry)
	if !ok {
		return nil, fmt.Errorf("layout registry not found in context")
	}
	return reg, nil
}

func schemaFrom(cmd *cobra.Command, name string) (*packet.Schema, error) {
	reg, err := registryFrom(cmd)
	if err != nil {
		return nil, err
	}
	return reg.Schema(name)
}
