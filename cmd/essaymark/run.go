package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phrazzld/essaymark/internal/config"
	"github.com/phrazzld/essaymark/internal/platform/logger"
)

type runOptions struct {
	dryRun      bool
	limit       int
	concurrency int
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process one page of pending work items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			if err := opts.apply(cfg); err != nil {
				return err
			}

			ctx := logger.WithAttrs(logger.WithLogger(cmd.Context(), log), "command", "run")

			app, err := newApplication(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.close()

			runner, err := app.newRunner()
			if err != nil {
				return err
			}

			summary, err := runner.Run(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: selected=%d completed=%d skipped=%d not_started=%d\n",
				summary.RunID, summary.Selected, summary.Completed, summary.Skipped, summary.NotStarted)
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "process items without writing results")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "maximum number of items to select (default store.page_size)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "items processed at once (default run.concurrency)")
	return cmd
}

// apply copies explicitly set flags onto cfg.
func (o *runOptions) apply(cfg *config.Config) error {
	if o.dryRun {
		cfg.Run.DryRun = true
	}
	if o.limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}
	if o.limit > 0 {
		cfg.Store.PageSize = o.limit
	}
	if o.concurrency < 0 {
		return fmt.Errorf("--concurrency must not be negative")
	}
	if o.concurrency > 0 {
		cfg.Run.Concurrency = o.concurrency
	}
	if err := config.ValidateFields(cfg, "Store.PageSize", "Run.Concurrency"); err != nil {
		return fmt.Errorf("invalid run flags: %w", err)
	}
	return nil
}
