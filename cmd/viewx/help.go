// =============================================================================
// help.go - Help System
// =============================================================================
//
//   - ".help"         lists dot-commands plus the verbs (command mode) or
//                     the protocol catalog (raw mode)
//   - ".help <topic>" shows detail for a dot-command, a verb or a protocol
//                     keyword (".help cal", ".help et_cpa")
//
// =============================================================================

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pyviewx/viewx/viewxprotocol"
)

// printHelp writes the overview, or detailed help for topic.
func printHelp(w io.Writer, mode REPLMode, topic string) error {
	if topic == "" {
		printHelpOverview(w, mode)
		return nil
	}

	key := strings.TrimPrefix(strings.ToLower(topic), ".")

	// GO CONCEPT: Map Lookup with Comma-Ok Pattern
	// ---------------------------------------------
	// Each source is tried in turn. The "if v, ok := m[k]; ok" form keeps v
	// scoped to the branch that found it.
	if text, ok := globalHelp[key]; ok {
		fmt.Fprintln(w, text)
		return nil
	}
	if text, ok := verbHelp[key]; ok {
		fmt.Fprintln(w, text)
		return nil
	}
	if info, ok := viewxprotocol.LookupCommand(key); ok {
		fmt.Fprintf(w, "  %s\n    %s\n", info.Usage, info.Description)
		if !info.ExpectsReply {
			fmt.Fprintln(w, "    The tracker sends no reply.")
		}
		return nil
	}

	return fmt.Errorf("no help for '%s'. Type .help to see available commands", topic)
}

// printHelpOverview lists the commands available in mode.
//
// GO CONCEPT: Writing Text Verbatim
// ---------------------------------
// The help text contains format directives meant for the tracker
// ("format %TS %SX %SY"). io.WriteString copies the string unchanged. The
// fmt print functions would also print it correctly, but go vet reports
// constant strings containing % passed to them as a likely mistake.
func printHelpOverview(w io.Writer, mode REPLMode) {
	io.WriteString(w, `Global Commands:
  .help [topic]     Show help (or help for a command or keyword)
  .commands         Switch to command mode (verbs)
  .raw              Switch to raw mode (wire lines)
  .pending          List commands awaiting a reply
  .cancel [kw]      Cancel pending commands (all, or one keyword)
  .timeout [dur]    Show or set the reply timeout (off disables)
  .stats            Show recorded traffic counts
  .quit             Exit
`)

	switch mode {
	case ModeCommand:
		io.WriteString(w, `
Commands:
  cal <points> [eye]  Start calibration (2, 5, 9 or 13 points)
  accept              Accept the current calibration point
  abort               Cancel the running calibration
  param <p> [value]   Get or set a calibration parameter (0-3)
  area <w> <h>        Set the calibration area in pixels
  defaults            Reset calibration points to defaults
  level <n>           Set the calibration check level (0-3)
  point <n> <x> <y>   Move calibration point n
  drift               Start drift correction
  validate [x y]      Validate the calibration (or one point)
  results             Request calibration results
  format <fmt...>     Set the sample format, e.g. format %TS %SX %SY
  stream [rate]       Start streaming samples
  stop                Stop streaming
  rate                Show the sample rate
  Lines starting with ET_ are sent as typed.
`)

	case ModeRaw:
		fmt.Fprintln(w, "\nProtocol Commands:")
		for _, info := range viewxprotocol.Catalog() {
			fmt.Fprintf(w, "  %-24s %s\n", info.Usage, info.Name)
		}
		fmt.Fprintln(w, "  Unknown keywords are sent as typed.")
	}
}

// globalHelp holds detail for dot-commands, keyed without the dot.
//
// GO CONCEPT: Raw String Literals for Multi-Line Text
// ---------------------------------------------------
// Backquoted strings span lines and keep backslashes and double quotes
// as typed, so `ET_FRM "%TS %SX %SY"` needs no escaping. Indentation
// inside the literal is part of the string.
var globalHelp = map[string]string{
	"help": `  .help [topic]
    Without a topic, list all commands for the current mode.
    Topics are dot-commands, verbs or protocol keywords.
    Examples:
      .help cal
      .help ET_CPA`,

	"commands": `  .commands
    Switch to command mode. Verbs such as "cal 9" or "stream 60" are
    translated to protocol commands and validated before sending.`,

	"raw": `  .raw
    Switch to raw mode. Lines are sent as protocol commands, e.g.
      ET_CAL 9
      ET_FRM "%TS %SX %SY"
    Known keywords are validated; unknown ones are sent as typed.`,

	"pending": `  .pending
    List how many commands of each keyword are waiting for a reply.
    Replies are matched to commands in the order the commands were sent.`,

	"cancel": `  .cancel [keyword]
    Stop waiting for pending commands. Without a keyword every pending
    command is cancelled. A reply that arrives later is shown as an event.
    Example:
      .cancel ET_VLS`,

	"timeout": `  .timeout [duration]
    Show or set how long to wait for a reply. "off" or 0 waits forever.
    Examples:
      .timeout 2s
      .timeout off`,

	"stats": `  .stats
    Show sent, matched and unmatched datagram counts for this session.
    Requires --record <path>.`,

	"quit": `  .quit
    Disconnect and exit. Ctrl-D does the same.`,
}

// verbHelp holds detail for command mode verbs.
var verbHelp = map[string]string{
	"cal": `  cal <points> [eye]
    Start a calibration. points is 2, 5, 9 or 13. eye selects 1 (right)
    or 2 (left) on binocular systems. The tracker announces each point
    with an ET_CHG event and the end with ET_FIN.
    Example:
      cal 9`,

	"accept": `  accept
    Accept the current calibration point.`,

	"abort": `  abort
    Cancel the running calibration.`,

	"param": `  param <p> [value]
    Get or set calibration parameter p:
      0  wait for valid data
      1  randomize point order
      2  auto accept
      3  calibration speed (0 slow, 1 fast)
    Examples:
      param 2
      param 2 1`,

	"area": `  area <width> <height>
    Set the calibration area in pixels.`,

	"defaults": `  defaults
    Reset all calibration points to their default positions.`,

	"level": `  level <n>
    Set the calibration check level: 0 none, 1 weak, 2 medium, 3 strong.`,

	"point": `  point <n> <x> <y>
    Move calibration point n (1-13) to x,y in pixels.`,

	"drift": `  drift
    Start drift correction using the first calibration point.`,

	"validate": `  validate [x y]
    Without arguments, validate the calibration. With a position,
    validate accuracy at that point only.`,

	"results": `  results
    Request the gaze data recorded for each calibration point.`,

	"format": `  format <fmt...>
    Set the sample format used while streaming. No reply is sent.
    Example:
      format %TS %SX %SY`,

	"stream": `  stream [rate]
    Start streaming ET_SPL samples, optionally at a reduced rate.
    No reply is sent; samples appear as events.`,

	"stop": `  stop
    Stop streaming samples.`,

	"rate": `  rate
    Show the tracker's sample rate in Hz.`,
}
