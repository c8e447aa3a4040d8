package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/viant/obpel"
	"go.uber.org/zap"
)

type app struct {
	cfgFile string
	viper   *viper.Viper
	flags   *pflag.FlagSet
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{viper: viper.New(), logger: zap.NewNop()}
	rootCmd := &cobra.Command{
		Use:          "obpel",
		Short:        "Manage compiled process definitions",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	flags := rootCmd.PersistentFlags()
	a.flags = flags
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file URL (yaml or json)")
	flags.String("store-kind", obpel.StoreMemory, "definition store: memory, fs or bolt")
	flags.String("store-url", "", "store location: directory for fs, file for bolt")
	flags.BoolP("verbose", "v", false, "log service activity to stderr")

	// Bind flags to viper
	_ = a.viper.BindPFlag("store.kind", flags.Lookup("store-kind"))
	_ = a.viper.BindPFlag("store.url", flags.Lookup("store-url"))
	_ = a.viper.BindPFlag("verbose", flags.Lookup("verbose"))
	a.viper.SetEnvPrefix("OBPEL")
	a.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.viper.AutomaticEnv()

	rootCmd.AddCommand(
		newImportCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newResolveCmd(a),
	)
	return rootCmd
}

func (a *app) initLogger() error {
	if !a.viper.GetBool("verbose") {
		return nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger
	return nil
}

// config loads the config file when given, then applies flags and OBPEL_*
// environment variables over it.
func (a *app) config(ctx context.Context) (*obpel.Config, error) {
	cfg := obpel.DefaultConfig()
	if a.cfgFile != "" {
		loaded, err := obpel.LoadConfig(ctx, a.cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if a.cfgFile == "" || a.overridden("store.kind", "store-kind") {
		cfg.Store.Kind = a.viper.GetString("store.kind")
	}
	if a.overridden("store.url", "store-url") {
		cfg.Store.URL = a.viper.GetString("store.url")
	}
	return cfg, cfg.Validate()
}

// overridden reports whether key was set by its flag or environment variable
// rather than the flag default.
func (a *app) overridden(key, flag string) bool {
	if a.flags.Changed(flag) {
		return true
	}
	_, ok := os.LookupEnv("OBPEL_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	return ok
}

func (a *app) service(ctx context.Context) (*obpel.Service, error) {
	cfg, err := a.config(ctx)
	if err != nil {
		return nil, err
	}
	return obpel.New(ctx, obpel.WithConfig(cfg), obpel.WithLogger(a.logger))
}
