package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/tango/internal/bootstrap"
)

func newSyncCommand() *cobra.Command {
	syncCommand := &cobra.Command{
		Use:   "sync",
		Short: "Push queued changes to the sync server",
	}

	onceCommand := &cobra.Command{
		Use:   "once",
		Short: "Push every due change once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := newPrinter(cmd)
			if err != nil {
				return err
			}
			return withApplication(cmd, func(app *application) error {
				runner, err := app.newRunner()
				if err != nil {
					return err
				}
				summary, err := runner.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				return printer.SyncSummary(summary)
			})
		},
	}
	addFormatFlag(onceCommand)

	daemonCommand := &cobra.Command{
		Use:   "daemon",
		Short: "Keep pushing due changes every sync.interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd, func(app *application) error {
				runner, err := app.newRunner()
				if err != nil {
					return err
				}

				daemon := bootstrap.New(app.logger)
				daemon.AddShutdownHook(func(context.Context) error {
					runner.Stop()
					return nil
				})
				return daemon.Run(cmd.Context(), func(ctx context.Context) error {
					if err := runner.Start(ctx); err != nil {
						return err
					}
					<-ctx.Done()
					return nil
				})
			})
		},
	}

	syncCommand.AddCommand(onceCommand, daemonCommand)
	return syncCommand
}
