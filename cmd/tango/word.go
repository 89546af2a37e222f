package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/at-ishikawa/tango/internal/cli"
	"github.com/at-ishikawa/tango/internal/study"
)

func newWordCommand() *cobra.Command {
	wordCommand := &cobra.Command{
		Use:   "word",
		Short: "Manage vocabulary words",
	}

	wordCommand.AddCommand(
		newWordAddCommand(),
		newWordListCommand(),
		newWordShowCommand(),
		newWordEditCommand(),
		newWordDeleteCommand(),
	)
	return wordCommand
}

func newWordAddCommand() *cobra.Command {
	var input study.AddWordInput
	command := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a word. It is due for review immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Text = args[0]
			printer, err := newPrinter(cmd)
			if err != nil {
				return err
			}
			return withApplication(cmd, func(app *application) error {
				w, err := app.service.AddWord(cmd.Context(), input)
				if err != nil {
					return err
				}
				return printer.Word(cli.WordDetail{Word: w})
			})
		},
	}
	command.Flags().StringVar(&input.Reading, "reading", "", "pronunciation or reading")
	command.Flags().StringVar(&input.Meaning, "meaning", "", "meaning of the word")
	command.Flags().StringVar(&input.Example, "example", "", "example sentence")
	command.Flags().BoolVar(&input.Generate, "generate", false, "fill empty fields with OpenAI (requires OPENAI_API_KEY)")
	addFormatFlag(command)
	return command
}

func newWordListCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "list",
		Short: "List all words",
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := newPrinter(cmd)
			if err != nil {
				return err
			}
			return withApplication(cmd, func(app *application) error {
				words, err := app.service.Words(cmd.Context())
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

func newWordShowCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "show <word-id>",
		Short: "Show a word with its review history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := newPrinter(cmd)
			if err != nil {
				return err
			}
			return withApplication(cmd, func(app *application) error {
				w, err := app.service.Word(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				history, err := app.service.ReviewHistory(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printer.Word(cli.WordDetail{Word: w, History: history})
			})
		},
	}
	addFormatFlag(command)
	return command
}

func newWordEditCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "edit <word-id>",
		Short: "Edit the text, reading, meaning or example of a word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input study.UpdateWordInput
			var err error
			flags := cmd.Flags()
			for name, target := range map[string]**string{
				"text":    &input.Text,
				"reading": &input.Reading,
				"meaning": &input.Meaning,
				"example": &input.Example,
			} {
				if *target, err = changedString(flags, name); err != nil {
					return err
				}
			}
			if input == (study.UpdateWordInput{}) {
				return errors.New("nothing to change: pass at least one of --text, --reading, --meaning, --example")
			}

			printer, err := newPrinter(cmd)
			if err != nil {
				return err
			}
			return withApplication(cmd, func(app *application) error {
				w, err := app.service.UpdateWord(cmd.Context(), args[0], input)
				if err != nil {
					return err
				}
				return printer.Word(cli.WordDetail{Word: w})
			})
		},
	}
	command.Flags().String("text", "", "new text")
	command.Flags().String("reading", "", "new reading")
	command.Flags().String("meaning", "", "new meaning")
	command.Flags().String("example", "", "new example sentence")
	addFormatFlag(command)
	return command
}

func newWordDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <word-id>",
		Short: "Delete a word and its review history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd, func(app *application) error {
				if err := app.service.DeleteWord(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return err
			})
		},
	}
}

// changedString returns the flag value only when it was set on the command line.
func changedString(flags *pflag.FlagSet, name string) (*string, error) {
	if !flags.Changed(name) {
		return nil, nil
	}
	value, err := flags.GetString(name)
	if err != nil {
		return nil, err
	}
	return &value, nil
}
