package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phrazzld/essaymark/internal/maintenance"
	"github.com/phrazzld/essaymark/internal/platform/logger"
)

var (
	errResetNotConfirmed = errors.New("reset deletes every record; pass --yes to confirm")
	errResetIncomplete   = errors.New("some records could not be deleted")
)

func newResetCmd(root *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every record of the work item table",
		Long: `reset removes all records regardless of status, in batches of
reset.batch_size with reset.batch_delay between calls.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errResetNotConfirmed
			}

			cfg, log, err := root.load()
			if err != nil {
				return err
			}

			ctx := logger.WithAttrs(logger.WithLogger(cmd.Context(), log), "command", "reset")

			records, closeStore, err := openRecordStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			resetter, err := maintenance.NewResetter(records, cfg.Reset, log)
			if err != nil {
				return err
			}

			summary, err := resetter.Reset(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "reset: listed=%d deleted=%d failed=%d\n",
				summary.Listed, summary.Deleted, summary.Failed)
			if err != nil {
				return err
			}
			if summary.FailedBatches > 0 {
				return fmt.Errorf("%w: %d of %d batches failed", errResetIncomplete, summary.FailedBatches, summary.Batches)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion of all records")
	return cmd
}
