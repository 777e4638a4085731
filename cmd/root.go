// Package cmd defines the editalmon command tree.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/edital-monitor/internal/app"
	"github.com/JakeFAU/edital-monitor/internal/config"
	"github.com/JakeFAU/edital-monitor/internal/logging"
)

type rootOptions struct {
	configPath string
}

// newApp is the application factory; tests replace it.
var newApp = func(ctx context.Context, cfgs *config.Manager, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfgs, logger)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "editalmon",
		Short: "Monitor a public-tender page and email subscribers when it changes.",
		Long: `editalmon polls a single edital page on a fixed interval, extracts its
relevant text, fingerprints it, and reports content changes and keyword
mentions through an in-memory log, a web API and email alerts.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "path to the JSON config file")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newAdminCmd())
	return cmd
}

// bootstrap loads configuration and builds the logger shared by the
// service commands.
func bootstrap(opts *rootOptions) (*config.Manager, *zap.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return config.NewManager(opts.configPath, cfg), logger, nil
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
