package orchestration

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
)

// ConfirmationWord is the only answer that lets a destructive run proceed.
const ConfirmationWord = "Yes"

// Confirmer asks the user a question and returns the raw answer.
type Confirmer interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// confirmed reports whether answer is exactly the confirmation word.
// Surrounding line endings are not part of the answer.
func confirmed(answer string) bool {
	return strings.TrimRight(answer, "\r\n") == ConfirmationWord
}

// LineConfirmer reads the answer as one line from In after writing the
// prompt to Out. It is used when stdin is not a terminal.
type LineConfirmer struct {
	In  io.Reader
	Out io.Writer
}

// Ask implements Confirmer. End of input counts as an empty answer.
func (c *LineConfirmer) Ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.Out != nil {
		if _, err := fmt.Fprint(c.Out, prompt); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}
	}
	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return line, nil
}

// HuhConfirmer asks through an interactive terminal input.
type HuhConfirmer struct {
	// Accessible renders the prompt in plain text mode for screen readers.
	Accessible bool
}

// Ask implements Confirmer. Aborting the form (ctrl+c) is an empty answer.
func (c *HuhConfirmer) Ask(ctx context.Context, prompt string) (string, error) {
	var answer string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(prompt).
			Value(&answer),
	)).WithAccessible(c.Accessible)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return answer, nil
}

// AssumeYes answers every prompt with the confirmation word. It backs the
// --yes flag.
type AssumeYes struct{}

// Ask implements Confirmer.
func (AssumeYes) Ask(context.Context, string) (string, error) {
	return ConfirmationWord, nil
}
