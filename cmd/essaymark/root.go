package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/phrazzld/essaymark/internal/config"
	"github.com/phrazzld/essaymark/internal/platform/logger"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "essaymark",
		Short: "Grade pending essay submissions with a generative model",
		Long: `essaymark selects pending work items from the record store, sends their
images to the inference service and writes the sanitized feedback back
together with the done status. Configuration is read from essaymark.yaml
and ESSAYMARK_* environment variables.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML, TOML or JSON config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	cmd.AddCommand(
		newRunCmd(opts),
		newResetCmd(opts),
		newMigrateCmd(opts),
	)
	return cmd
}

// load reads the configuration, applies the flag overrides and sets up
// the default logger.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if o.logLevel != "" {
		if _, ok := logger.ParseLevel(o.logLevel); !ok {
			return nil, nil, fmt.Errorf("invalid --log-level %q", o.logLevel)
		}
		cfg.Log.Level = o.logLevel
	}

	l, err := logger.Setup(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Debug("configuration loaded",
		"store_backend", cfg.Store.Backend,
		"inference_backend", cfg.Inference.Backend,
		"model", cfg.Inference.Model,
		"log_level", cfg.Log.Level)
	return cfg, l, nil
}
