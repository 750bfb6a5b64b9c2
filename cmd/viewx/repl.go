// =============================================================================
// repl.go - REPL Loop
// =============================================================================
//
// The REPL reads a line, turns it into a protocol command and sends it. It
// does not wait for the reply: each answered command gets a goroutine that
// blocks in Client.Call and prints the reply when it arrives, so the prompt
// comes back at once and several commands can be outstanding.
//
//	viewx> cal 9
//	viewx> accept
//	< ET_CAL 9
//	! ET_CHG 1
//	< ET_ACC 2
//
// "<" marks a reply matched to a command, "!" an unsolicited datagram.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pyviewx/viewx/internal/recorder"
	"github.com/pyviewx/viewx/viewxprotocol"
)

// REPLMode is how input lines are interpreted.
type REPLMode int

const (
	// ModeCommand translates verbs ("cal 9") into protocol commands.
	ModeCommand REPLMode = iota
	// ModeRaw sends protocol lines ("ET_CAL 9") as typed.
	ModeRaw
)

func (m REPLMode) prompt() string {
	switch m {
	case ModeRaw:
		return "[raw] > "
	default:
		return "viewx> "
	}
}

func (m REPLMode) String() string {
	switch m {
	case ModeRaw:
		return "raw"
	default:
		return "command"
	}
}

// lineReader is satisfied by LineEditor.
//
// GO CONCEPT: Interfaces Are Satisfied Implicitly
// -----------------------------------------------
// LineEditor never declares that it implements lineReader; having a
// GetLine method with this signature is enough. Tests pass a scripted
// reader with the same method instead of a terminal.
type lineReader interface {
	GetLine(prompt string) (string, error)
}

type repl struct {
	client   *viewxprotocol.Client
	input    lineReader
	out      io.Writer
	styles   styles
	parser   *viewxprotocol.CommandParser
	recorder *recorder.Recorder

	mode    REPLMode
	timeout time.Duration

	// calls tracks reply goroutines still waiting.
	calls sync.WaitGroup
}

// newREPL creates a REPL. out must be safe for concurrent writes.
func newREPL(client *viewxprotocol.Client, input lineReader, out io.Writer, st styles) *repl {
	return &repl{
		client: client,
		input:  input,
		out:    out,
		styles: st,
		parser: &viewxprotocol.CommandParser{AllowUnknown: true},
	}
}

// installHandlers routes tracker events and connection problems to the
// output. Call before connecting.
func (r *repl) installHandlers() {
	r.client.SetEventHandler(func(event viewxprotocol.Reply) {
		style := r.styles.event
		if event.Keyword == viewxprotocol.KeywordSample {
			style = r.styles.dim
		}
		r.println(style.Render("! " + event.Raw))
	})
	r.client.SetRefusedHandler(func(err error) {
		r.println(r.styles.warn.Render("tracker port refused the datagram; is iViewX running?"))
	})
	r.client.SetDisconnectHandler(func(err error) {
		r.println(r.styles.err.Render(fmt.Sprintf("Disconnected: %v", err)))
	})
}

func (r *repl) println(s string) {
	fmt.Fprintln(r.out, s)
}

func (r *repl) printError(err error) {
	r.println(r.styles.err.Render("Error: " + err.Error()))
}

// run reads lines until EOF or .quit.
func (r *repl) run() {
	for {
		line, err := r.input.GetLine(r.mode.prompt())
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.printError(err)
			}
			fmt.Fprintln(r.out)
			return
		}
		if !r.handleLine(line) {
			return
		}
	}
}

// wait blocks until every reply goroutine has finished.
func (r *repl) wait() {
	r.calls.Wait()
}

// handleLine processes one input line. It returns false when the REPL
// should exit.
func (r *repl) handleLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if strings.HasPrefix(line, ".") {
		return r.dotCommand(line)
	}

	wire := line
	if r.mode == ModeCommand {
		var err error
		if wire, err = translateCommand(line); err != nil {
			r.printError(err)
			return true
		}
	}

	cmd, err := r.parser.Parse(wire)
	if err != nil {
		r.printError(err)
		return true
	}
	r.dispatch(cmd)
	return true
}

// dispatch sends cmd. Answered commands print their reply asynchronously.
//
// GO CONCEPT: Goroutines with a WaitGroup
// ---------------------------------------
// Each answered command waits for its reply in its own goroutine, so the
// prompt returns at once and several commands can be in flight:
//
//	r.calls.Add(1)
//	go func() {
//	    defer r.calls.Done()
//	    reply, err := r.client.CallWithTimeout(cmd, timeout)
//	    ...
//	}()
//
// Add is called before the go statement so wait() cannot miss a goroutine
// that has not started yet. timeout is copied into a local first because a
// later .timeout command may change r.timeout while this call is waiting.
func (r *repl) dispatch(cmd viewxprotocol.Command) {
	if !cmd.ExpectsReply() {
		if err := r.client.Send(cmd); err != nil {
			r.printError(err)
		}
		return
	}

	if !r.client.IsConnected() {
		r.printError(viewxprotocol.ErrNotConnected)
		return
	}

	timeout := r.timeout
	r.calls.Add(1)
	go func() {
		defer r.calls.Done()
		reply, err := r.client.CallWithTimeout(cmd, timeout)
		if err != nil {
			r.printError(fmt.Errorf("%s: %w", cmd.Keyword(), err))
			return
		}
		r.println(r.styles.reply.Render("< " + reply.Raw))
	}()
}

func (r *repl) dotCommand(line string) bool {
	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch name {
	case ".quit", ".exit":
		return false

	case ".help":
		if err := printHelp(r.out, r.mode, arg); err != nil {
			r.printError(err)
		}

	case ".raw":
		r.mode = ModeRaw
		r.println("Switched to raw mode")

	case ".commands":
		r.mode = ModeCommand
		r.println("Switched to command mode")

	case ".pending":
		r.printPending()

	case ".cancel":
		n := r.client.CancelPending(strings.ToUpper(arg))
		r.println(fmt.Sprintf("Cancelled %d pending command(s)", n))

	case ".timeout":
		if arg == "" {
			r.println("Reply timeout: " + describeTimeout(r.timeout))
			break
		}
		d, err := parseTimeout(arg)
		if err != nil {
			r.printError(err)
			break
		}
		r.timeout = d
		r.println("Reply timeout: " + describeTimeout(d))

	case ".stats":
		r.printStats()

	default:
		r.printError(fmt.Errorf("unknown command '%s'. Type .help for available commands", fields[0]))
	}
	return true
}

func (r *repl) printPending() {
	counts := r.client.PendingByKeyword()
	if len(counts) == 0 {
		r.println("No pending commands")
		return
	}
	keywords := make([]string, 0, len(counts))
	for kw := range counts {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)
	for _, kw := range keywords {
		r.println(fmt.Sprintf("  %-8s %d", kw, counts[kw]))
	}
}

func (r *repl) printStats() {
	if r.recorder == nil {
		r.println("Recording is off (start with --record <path>)")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := r.recorder.Stats(ctx)
	if err != nil {
		r.printError(err)
		return
	}
	r.println(fmt.Sprintf("Session %s: sent %d, matched %d, unmatched %d",
		r.recorder.Session(), stats.Sent, stats.Matched, stats.Unmatched))
	if n := r.recorder.Failures(); n > 0 {
		r.println(r.styles.warn.Render(fmt.Sprintf("%d datagram(s) could not be recorded", n)))
	}
}

func describeTimeout(d time.Duration) string {
	if d <= 0 {
		return "off"
	}
	return d.String()
}
