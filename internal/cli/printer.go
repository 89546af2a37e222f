package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/tango/internal/learning"
	"github.com/at-ishikawa/tango/internal/statistics"
	"github.com/at-ishikawa/tango/internal/syncer"
	"github.com/at-ishikawa/tango/internal/syncqueue"
	"github.com/at-ishikawa/tango/internal/word"
)

type Format string

const (
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
)

func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(value)) {
	case FormatTable, "":
		return FormatTable, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q: use table, yaml or json", value)
	}
}

// Printer writes command results as a table, YAML or JSON.
type Printer struct {
	writer io.Writer
	format Format
}

func NewPrinter(writer io.Writer, format Format) *Printer {
	return &Printer{writer: writer, format: format}
}

func (p *Printer) encode(v any) (bool, error) {
	switch p.format {
	case FormatYAML:
		encoder := yaml.NewEncoder(p.writer)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return true, fmt.Errorf("yaml.Encode > %w", err)
		}
		return true, encoder.Close()
	case FormatJSON:
		encoder := json.NewEncoder(p.writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(v); err != nil {
			return true, fmt.Errorf("json.Encode > %w", err)
		}
		return true, nil
	default:
		return false, nil
	}
}

func (p *Printer) table(header string, rows [][]string) error {
	tw := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func (p *Printer) Words(words []word.Word) error {
	if handled, err := p.encode(words); handled {
		return err
	}
	if len(words) == 0 {
		_, err := fmt.Fprintln(p.writer, "No words.")
		return err
	}
	rows := make([][]string, 0, len(words))
	for _, w := range words {
		rows = append(rows, []string{
			w.ID,
			w.Text,
			truncate(w.Meaning, 40),
			string(w.Familiarity),
			fmt.Sprint(w.ReviewCount),
			fmt.Sprint(w.IntervalDays),
			w.NextReviewAt.String(),
		})
	}
	return p.table("ID\tTEXT\tMEANING\tFAMILIARITY\tREVIEWS\tINTERVAL\tNEXT REVIEW", rows)
}

// WordDetail is a word with its review history.
type WordDetail struct {
	Word    *word.Word             `json:"word" yaml:"word"`
	History []learning.ReviewEvent `json:"history" yaml:"history"`
}

func (p *Printer) Word(detail WordDetail) error {
	if handled, err := p.encode(detail); handled {
		return err
	}
	w := detail.Word
	tw := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	fields := [][2]string{
		{"ID", w.ID},
		{"Text", w.Text},
		{"Reading", w.Reading},
		{"Meaning", w.Meaning},
		{"Example", w.Example},
		{"Familiarity", string(w.Familiarity)},
		{"Reviews", fmt.Sprint(w.ReviewCount)},
		{"Repetition", fmt.Sprint(w.Repetition)},
		{"Interval", fmt.Sprintf("%d day(s)", w.IntervalDays)},
		{"Ease factor", fmt.Sprintf("%.2f", w.EaseFactor)},
		{"Next review", w.NextReviewAt.String()},
		{"Updated", w.UpdatedAt.String()},
	}
	for _, field := range fields {
		fmt.Fprintf(tw, "%s:\t%s\n", field[0], field[1])
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(detail.History) == 0 {
		return nil
	}

	fmt.Fprintln(p.writer)
	rows := make([][]string, 0, len(detail.History))
	for _, event := range detail.History {
		rows = append(rows, []string{event.ReviewedAt.String(), fmt.Sprint(event.Score), string(event.Result)})
	}
	return p.table("REVIEWED AT\tSCORE\tRESULT", rows)
}

func (p *Printer) Queue(items []syncqueue.Item) error {
	if handled, err := p.encode(items); handled {
		return err
	}
	if len(items) == 0 {
		_, err := fmt.Fprintln(p.writer, "The sync queue is empty.")
		return err
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		lastError := "-"
		if item.LastError != nil {
			lastError = truncate(*item.LastError, 50)
		}
		rows = append(rows, []string{
			item.ID,
			string(item.EntityType),
			item.EntityID,
			item.ClientUpdatedAt.String(),
			fmt.Sprint(item.Attempt),
			item.NextAttemptAt.String(),
			lastError,
		})
	}
	return p.table("ID\tTYPE\tENTITY\tUPDATED AT\tATTEMPT\tNEXT ATTEMPT\tLAST ERROR", rows)
}

func (p *Printer) QueueStats(stats syncqueue.Stats) error {
	if handled, err := p.encode(stats); handled {
		return err
	}
	return p.table("TOTAL\tDUE\tFAILING\tMAX ATTEMPT", [][]string{{
		fmt.Sprint(stats.Total),
		fmt.Sprint(stats.Due),
		fmt.Sprint(stats.Failing),
		fmt.Sprint(stats.MaxAttempt),
	}})
}

func (p *Printer) SyncSummary(summary syncer.Summary) error {
	if handled, err := p.encode(summary); handled {
		return err
	}
	_, err := fmt.Fprintf(p.writer,
		"Pushed %d item(s): %d synced, %d superseded, %d server wins, %d retried, %d failed\n",
		summary.Due, summary.Synced, summary.Superseded, summary.ServerWins, summary.Retried, summary.Failed,
	)
	return err
}

func (p *Printer) Statistics(result statistics.StatisticsResult) error {
	if handled, err := p.encode(result); handled {
		return err
	}
	rows := make([][]string, 0, len(result.Periods)+1)
	for _, period := range result.Periods {
		rows = append(rows, []string{
			period.Period,
			fmt.Sprint(period.AddCount),
			fmt.Sprint(period.ReviewCount),
			fmt.Sprint(period.ActiveDays),
		})
	}
	aggregate := result.Aggregate
	rows = append(rows, []string{
		"TOTAL",
		fmt.Sprint(aggregate.AddCount),
		fmt.Sprint(aggregate.ReviewCount),
		fmt.Sprint(aggregate.ActiveDays),
	})
	if err := p.table("PERIOD\tADDED\tREVIEWED\tACTIVE DAYS", rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(p.writer, "\nCurrent streak: %d day(s)\n", aggregate.CurrentStreak)
	return err
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
