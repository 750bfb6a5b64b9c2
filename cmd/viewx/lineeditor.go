// =============================================================================
// lineeditor.go - Line Editor with Dual-Mode Operation
// =============================================================================
//
// The REPL reads input through LineEditor, which picks an input method based
// on whether stdin is a terminal:
//
//   - Interactive: ergochat/readline with Emacs keybindings, persistent
//     history and Ctrl-R history search.
//   - Non-interactive: bufio.Scanner, printing the prompt to stdout. Used
//     for piped scripts (viewx < calibrate.txt) and Emacs comint buffers.
//
// =============================================================================

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

// defaultHistorySize applies when the configured size is zero.
const defaultHistorySize = 500

// LineEditor wraps line editing with dual-mode operation.
type LineEditor struct {
	// interactive is true when stdin is a TTY and not inside Emacs.
	interactive bool

	// rl is nil in non-interactive mode.
	rl *readline.Instance

	// scanner is nil in interactive mode.
	scanner *bufio.Scanner

	// out receives prompts and asynchronous output in non-interactive mode.
	out io.Writer
}

// NewLineEditor creates a LineEditor with automatic mode detection. History
// is kept in historyFile; an empty path disables persistence.
//
// GO CONCEPT: TTY Detection
// -------------------------
// golang.org/x/term.IsTerminal reports whether a file descriptor is attached
// to a terminal. Piped input is not, so scripts get plain line reading with
// no escape sequences in the output.
func NewLineEditor(historyFile string, historySize int) *LineEditor {
	out := &lockedWriter{w: os.Stdout}

	isInteractive := term.IsTerminal(int(os.Stdin.Fd())) &&
		os.Getenv("INSIDE_EMACS") == ""

	if !isInteractive {
		return &LineEditor{
			interactive: false,
			scanner:     bufio.NewScanner(os.Stdin),
			out:         out,
		}
	}

	if historySize <= 0 {
		historySize = defaultHistorySize
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:  historyFile,
		HistoryLimit: historySize,

		// Lines are saved explicitly so empty input stays out of history.
		DisableAutoSaveHistory: true,

		// Set before each read; it changes with the REPL mode.
		Prompt: "",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: readline init failed (%v), using basic input\n", err)
		return &LineEditor{
			interactive: false,
			scanner:     bufio.NewScanner(os.Stdin),
			out:         out,
		}
	}

	return &LineEditor{
		interactive: true,
		rl:          rl,
		out:         out,
	}
}

// GetLine reads one line with the given prompt. It returns io.EOF on Ctrl-D,
// Ctrl-C or exhausted piped input.
func (le *LineEditor) GetLine(prompt string) (string, error) {
	if le.interactive {
		return le.getInteractiveLine(prompt)
	}
	return le.getNonInteractiveLine(prompt)
}

func (le *LineEditor) getInteractiveLine(prompt string) (string, error) {
	le.rl.SetPrompt(prompt)

	line, err := le.rl.Readline()
	if err != nil {
		if err == readline.ErrInterrupt {
			return "", io.EOF
		}
		return "", err
	}

	if trimmed := strings.TrimSpace(line); trimmed != "" {
		le.rl.SaveToHistory(trimmed)
	}
	return line, nil
}

func (le *LineEditor) getNonInteractiveLine(prompt string) (string, error) {
	fmt.Fprint(le.out, prompt)

	if !le.scanner.Scan() {
		if err := le.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return le.scanner.Text(), nil
}

// Writer returns where output should go while a prompt may be on screen.
// In interactive mode readline redraws the prompt and the partial input
// line after each write, so replies arriving mid-typing do not garble it.
func (le *LineEditor) Writer() io.Writer {
	if le.rl != nil {
		return le.rl
	}
	return le.out
}

// Close saves history and releases the terminal. It is safe to call twice.
func (le *LineEditor) Close() {
	if le.rl != nil {
		le.rl.Close()
		le.rl = nil
	}
}

// IsInteractive reports whether readline is in use.
func (le *LineEditor) IsInteractive() bool {
	return le.interactive
}
