// Package repl holds the interactive terminal pieces of rvd: the labeler
// that answers active-learning requests and the record field editor.
package repl

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
)

// LineReader is the part of *readline.Instance the prompts use
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// errExit ends a prompt loop without an error
var errExit = errors.New("exit")

// NewReadline creates a line reader on the terminal
func NewReadline(prompt string) (*readline.Instance, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return rl, nil
}

// readLine returns the next non-empty trimmed line. Ctrl+C and Ctrl+D both
// end the session and surface as io.EOF.
func readLine(rl LineReader) (string, error) {
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
	}
}

var (
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)
