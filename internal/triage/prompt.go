package triage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoAnswer is returned when the input closes before a yes/no answer.
var ErrNoAnswer = errors.New("no answer: input closed")

// Prompter asks the operator a yes/no question.
type Prompter interface {
	Confirm(question string, def bool) (bool, error)
}

// PromptFunc adapts a function to the Prompter interface.
type PromptFunc func(question string, def bool) (bool, error)

// Confirm calls f.
func (f PromptFunc) Confirm(question string, def bool) (bool, error) {
	return f(question, def)
}

// AlwaysYes confirms every question without asking.
var AlwaysYes Prompter = PromptFunc(func(string, bool) (bool, error) { return true, nil })

// TerminalPrompter reads answers line by line from an input stream.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalPrompter creates a prompter reading from in and writing
// questions to out.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Confirm asks question until the answer is yes, y, ye, no or n (any case).
// An empty answer selects def.
func (p *TerminalPrompter) Confirm(question string, def bool) (bool, error) {
	for {
		fmt.Fprintf(p.out, "%s yes/no:", question)

		line, err := p.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("reading answer: %w", err)
		}
		eof := errors.Is(err, io.EOF)
		if eof && line == "" {
			fmt.Fprintln(p.out)
			return false, ErrNoAnswer
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "yes", "y", "ye":
			return true, nil
		case "no", "n":
			return false, nil
		case "":
			return def, nil
		}

		fmt.Fprintln(p.out, "Please respond with 'yes' or 'no'")
		if eof {
			return false, ErrNoAnswer
		}
	}
}
