package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/tango/internal/cli"
)

func newReviewCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "review [<word-id> <score>]",
		Short: "Review due words interactively, or record one score from 0 to 5",
		Args:  cobra.MatchAll(cobra.RangeArgs(0, 2), func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return fmt.Errorf("a score is required after the word id")
			}
			return nil
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return withApplication(cmd, func(app *application) error {
					session, err := cli.NewReviewCLI(cmd.Context(), app.service, cmd.InOrStdin(), cmd.OutOrStdout())
					if err != nil {
						return err
					}
					return session.Run(cmd.Context(), session)
				})
			}

			score, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid score %q: %w", args[1], err)
			}
			printer, err := newPrinter(cmd)
			if err != nil {
				return err
			}
			return withApplication(cmd, func(app *application) error {
				result, err := app.service.ApplyReview(cmd.Context(), args[0], score)
				if err != nil {
					return err
				}
				return printer.Word(cli.WordDetail{Word: result.Word})
			})
		},
	}
	addFormatFlag(command)
	return command
}

func newDueCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "due",
		Short: "List the words due for review now",
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := newPrinter(cmd)
			if err != nil {
				return err
			}
			return withApplication(cmd, func(app *application) error {
				words, err := app.service.DueWords(cmd.Context())
				if err != nil {
					return err
				}
				return printer.Words(words)
			})
		},
	}
	addFormatFlag(command)
	return command
}

func newStatsCommand() *cobra.Command {
	var year, month int
	command := &cobra.Command{
		Use:   "stats",
		Short: "Show words added and reviewed per month and the current streak",
		RunE: func(cmd *cobra.Command, args []string) error {
			if month != 0 && year == 0 {
				return fmt.Errorf("--month requires --year")
			}
			if month < 0 || month > 12 {
				return fmt.Errorf("invalid month %d", month)
			}
			printer, err := newPrinter(cmd)
			if err != nil {
				return err
			}
			return withApplication(cmd, func(app *application) error {
				result, err := app.service.Statistics(cmd.Context(), year, month)
				if err != nil {
					return err
				}
				return printer.Statistics(result)
			})
		},
	}
	command.Flags().IntVar(&year, "year", 0, "only this year")
	command.Flags().IntVar(&month, "month", 0, "only this month (requires --year)")
	addFormatFlag(command)
	return command
}
