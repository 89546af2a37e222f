package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/at-ishikawa/tango/internal/scheduler"
	"github.com/at-ishikawa/tango/internal/study"
	"github.com/at-ishikawa/tango/internal/word"
)

//go:generate mockgen -source=review_cli.go -destination=../mocks/cli/mock_reviewer.go -package=mock_cli

type Reviewer interface {
	DueWords(ctx context.Context) ([]word.Word, error)
	ApplyReview(ctx context.Context, wordID string, score int) (*study.ReviewResult, error)
}

// ReviewCLI walks through the due words one card at a time.
type ReviewCLI struct {
	*InteractiveCLI
	reviewer Reviewer
	cards    []word.Word
	total    int
	reviewed int
}

// NewReviewCLI loads the words due now.
func NewReviewCLI(ctx context.Context, reviewer Reviewer, stdin io.Reader, stdout io.Writer) (*ReviewCLI, error) {
	cards, err := reviewer.DueWords(ctx)
	if err != nil {
		return nil, fmt.Errorf("reviewer.DueWords > %w", err)
	}
	return &ReviewCLI{
		InteractiveCLI: newInteractiveCLI(stdin, stdout),
		reviewer:       reviewer,
		cards:          cards,
		total:          len(cards),
	}, nil
}

// GetCardCount returns the number of remaining cards
func (r *ReviewCLI) GetCardCount() int {
	return len(r.cards)
}

// Reviewed returns how many cards were scored in this session.
func (r *ReviewCLI) Reviewed() int {
	return r.reviewed
}

func (r *ReviewCLI) Session(ctx context.Context) error {
	if len(r.cards) == 0 {
		if r.total == 0 {
			fmt.Fprintln(r.stdoutWriter, "No words are due. Come back later!")
		} else {
			fmt.Fprintf(r.stdoutWriter, "No more cards to review! Reviewed %d word(s).\n", r.reviewed)
		}
		return errEnd
	}
	card := r.cards[0]

	fmt.Fprintf(r.stdoutWriter, "[%d/%d] %s", r.total-len(r.cards)+1, r.total, r.bold.Sprint(card.Text))
	if card.Reading != "" {
		fmt.Fprintf(r.stdoutWriter, " %s", r.italic.Sprintf("(%s)", card.Reading))
	}
	fmt.Fprintln(r.stdoutWriter)
	fmt.Fprint(r.stdoutWriter, "Press Enter to show the answer (q to quit): ")
	input, err := r.readLine()
	if err != nil {
		return err
	}
	if isQuit(input) {
		return r.quit()
	}

	fmt.Fprintf(r.stdoutWriter, "Meaning: %s\n", r.italic.Sprint(card.Meaning))
	if card.Example != "" {
		fmt.Fprintf(r.stdoutWriter, "Example: %s\n", card.Example)
	}

	score, err := r.readScore()
	if err != nil {
		return err
	}

	result, err := r.reviewer.ApplyReview(ctx, card.ID, score)
	if err != nil {
		return fmt.Errorf("reviewer.ApplyReview(%s) > %w", card.ID, err)
	}
	reviewed := result.Word
	message := fmt.Sprintf("next review in %d day(s) on %s [%s]",
		reviewed.IntervalDays,
		reviewed.NextReviewAt.Format("2006-01-02"),
		reviewed.Familiarity,
	)
	if score >= scheduler.PassThreshold {
		fmt.Fprint(r.stdoutWriter, "✅ ")
		r.green.Fprintln(r.stdoutWriter, message)
	} else {
		fmt.Fprint(r.stdoutWriter, "❌ ")
		r.red.Fprintln(r.stdoutWriter, message)
	}
	fmt.Fprintln(r.stdoutWriter)

	r.reviewed++
	r.cards = r.cards[1:]
	return nil
}

// readScore prompts until the input is a score from 0 to 5.
func (r *ReviewCLI) readScore() (int, error) {
	for {
		fmt.Fprintf(r.stdoutWriter, "Score %d-%d (q to quit): ", scheduler.MinScore, scheduler.MaxScore)
		input, err := r.readLine()
		if err != nil {
			return 0, err
		}
		if isQuit(input) {
			return 0, r.quit()
		}
		score, err := strconv.Atoi(input)
		if err == nil && score >= scheduler.MinScore && score <= scheduler.MaxScore {
			return score, nil
		}
		fmt.Fprintf(r.stdoutWriter, "%q is not a score.\n", input)
	}
}

func (r *ReviewCLI) quit() error {
	fmt.Fprintf(r.stdoutWriter, "Reviewed %d word(s).\n", r.reviewed)
	return errEnd
}

func isQuit(input string) bool {
	return strings.EqualFold(input, "q")
}
