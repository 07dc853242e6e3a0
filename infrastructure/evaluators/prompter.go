package evaluators

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/modelmatch/modelmatch/internal/domain"
	"github.com/modelmatch/modelmatch/internal/ports"
)

// maxOutputDisplayLen bounds how much of a model output is printed before
// the score prompt. Stored results are never trimmed.
const maxOutputDisplayLen = 2000

var _ ports.ScorePrompter = (*ConsolePrompter)(nil)

// ConsolePrompter is the terminal scoring surface for interactive
// evaluation. It prints the data point and each anonymized output to the
// given writer and collects scores through a form prompt.
type ConsolePrompter struct {
	out io.Writer
}

// NewConsolePrompter builds a prompter writing to out.
func NewConsolePrompter(out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{out: out}
}

// ShowPoint prints the data point header and the prompt the models saw.
func (p *ConsolePrompter) ShowPoint(index, total int, prompt string, data domain.DataPoint) {
	fmt.Fprintf(p.out, "\n%s\n", strings.Repeat("=", 72))
	fmt.Fprintf(p.out, "Data point %d of %d\n", index+1, total)
	fmt.Fprintf(p.out, "%s\n\n", strings.Repeat("=", 72))
	fmt.Fprintf(p.out, "Input:\n%s\n\n", domain.Stringify(data))
	fmt.Fprintf(p.out, "Prompt sent to models:\n%s\n", prompt)
}

// PromptScore prints one anonymized output and asks for a score inside the
// window, or the skip sentinel. End-of-input and a user abort both map to
// domain.ErrEvaluationInterrupted so the caller can finalize a partial run.
func (p *ConsolePrompter) PromptScore(output string, displayIdx, total int, window domain.ScoreWindow) (int, bool, error) {
	fmt.Fprintf(p.out, "\n--- Output %d of %d ---\n%s\n\n",
		displayIdx, total, domain.TrimForDisplay(output, maxOutputDisplayLen))

	var answer string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(fmt.Sprintf("Score this output (%s, %d to skip)", window.String(), window.Skip)).
			Validate(func(s string) error {
				v, err := strconv.Atoi(strings.TrimSpace(s))
				if err != nil {
					return fmt.Errorf("enter a whole number")
				}
				if v != window.Skip && !window.Contains(v) {
					return fmt.Errorf("score must be %s, or %d to skip", window.String(), window.Skip)
				}
				return nil
			}).
			Value(&answer),
	))

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, io.EOF) {
			return 0, false, domain.ErrEvaluationInterrupted
		}
		return 0, false, fmt.Errorf("score prompt failed: %w", err)
	}

	score, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil {
		// Validate already rejected non-numeric input; treat this as a
		// terminal glitch rather than a rater decision.
		return 0, false, fmt.Errorf("score prompt returned non-numeric value %q", answer)
	}

	if score == window.Skip {
		fmt.Fprintln(p.out, "Skipped.")
		return 0, true, nil
	}
	return score, false, nil
}
