package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/tango/internal/syncqueue"
)

func newQueueCommand() *cobra.Command {
	queueCommand := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the local sync queue",
	}

	var dueOnly bool
	listCommand := &cobra.Command{
		Use:   "list",
		Short: "List the changes waiting to be pushed",
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := newPrinter(cmd)
			if err != nil {
				return err
			}
			return withApplication(cmd, func(app *application) error {
				var items []syncqueue.Item
				var err error
				if dueOnly {
					items, err = app.engine.ListDue(cmd.Context(), time.Now())
				} else {
					items, err = app.engine.ListAll(cmd.Context())
				}
				if err != nil {
					return err
				}
				return printer.Queue(items)
			})
		},
	}
	listCommand.Flags().BoolVar(&dueOnly, "due", false, "only the items due for a push now")
	addFormatFlag(listCommand)

	statsCommand := &cobra.Command{
		Use:   "stats",
		Short: "Show the size of the backlog",
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := newPrinter(cmd)
			if err != nil {
				return err
			}
			return withApplication(cmd, func(app *application) error {
				stats, err := app.engine.Stats(cmd.Context(), time.Time{})
				if err != nil {
					return err
				}
				return printer.QueueStats(stats)
			})
		},
	}
	addFormatFlag(statsCommand)

	queueCommand.AddCommand(listCommand, statsCommand)
	return queueCommand
}
