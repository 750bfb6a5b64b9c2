// =============================================================================
// main.go - viewx CLI Entry Point
// =============================================================================
//
// viewx is an interactive client for SMI iViewX eye trackers. It sends
// remote commands over UDP, matches each reply to the command that caused it,
// and prints replies and unsolicited tracker events as they arrive.
//
// Usage:
//
//	viewx                              Connect to 127.0.0.1:4444
//	viewx --host 10.0.0.5              Connect to a tracker on the lab network
//	viewx --record session.db          Store all traffic in SQLite
//	viewx --sim                        Start the simulator and connect to it
//	viewx --help                       Show help
//
// The REPL has two modes:
//   - Command: friendly verbs (cal 9, accept, stream 60, ...)
//   - Raw:     wire lines typed as the tracker expects them (ET_CAL 9)
//
// Settings come from ~/.config/viewx/config.toml, VIEWX_* environment
// variables and finally the flags below, in increasing precedence.
//
// =============================================================================

package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/pyviewx/viewx/internal/config"
	"github.com/pyviewx/viewx/internal/recorder"
	"github.com/pyviewx/viewx/logging"
	"github.com/pyviewx/viewx/viewxprotocol"
)

const (
	version = "0.3.0"

	appName = "viewx"
)

// fullTitle returns the application name with its version.
func fullTitle() string {
	return fmt.Sprintf("%s v%s", appName, version)
}

// welcomeBanner is printed once the tracker has answered the probe.
func welcomeBanner(addr string) string {
	return fmt.Sprintf(`%s - iViewX remote command client
Connected to %s

Type '.help' for available commands.
Type '.quit' to exit.
`, fullTitle(), addr)
}

// =============================================================================
// Command-Line Argument Parsing
// =============================================================================

// arguments holds the parsed command-line flags. Zero values mean "not given"
// so that config file and environment settings survive.
//
// GO CONCEPT: Optional Values Without Pointers
// --------------------------------------------
// A flag that can legitimately be zero (like --timeout 0) needs a second
// field to record that it was set at all. The alternative is a pointer
// field, which forces nil checks on every read.
type arguments struct {
	host       string
	port       int
	localPort  int
	configPath string
	recordPath string

	timeout    time.Duration
	timeoutSet bool

	plain       bool
	sim         bool
	showHelp    bool
	showVersion bool
}

// parseArguments parses argv (without the program name).
//
// The parser is hand-written: the flag set is small and every flag takes at
// most one value.
func parseArguments(argv []string) (arguments, error) {
	var args arguments
	remaining := argv

	next := func(flag string) (string, error) {
		if len(remaining) == 0 {
			return "", fmt.Errorf("%s requires a value", flag)
		}
		v := remaining[0]
		remaining = remaining[1:]
		return v, nil
	}

	for len(remaining) > 0 {
		arg := remaining[0]
		remaining = remaining[1:]

		switch arg {
		case "--host":
			v, err := next(arg)
			if err != nil {
				return args, err
			}
			args.host = v

		case "--port", "--local-port":
			v, err := next(arg)
			if err != nil {
				return args, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 65535 {
				return args, fmt.Errorf("%s: invalid port '%s'", arg, v)
			}
			if arg == "--port" {
				args.port = n
			} else {
				args.localPort = n
			}

		case "--config":
			v, err := next(arg)
			if err != nil {
				return args, err
			}
			args.configPath = v

		case "--record":
			v, err := next(arg)
			if err != nil {
				return args, err
			}
			args.recordPath = v

		case "--timeout":
			v, err := next(arg)
			if err != nil {
				return args, err
			}
			d, err := parseTimeout(v)
			if err != nil {
				return args, fmt.Errorf("--timeout: %w", err)
			}
			args.timeout = d
			args.timeoutSet = true

		case "--plain":
			args.plain = true

		case "--sim":
			args.sim = true

		case "--help", "-h":
			args.showHelp = true

		case "--version", "-v":
			args.showVersion = true

		default:
			return args, fmt.Errorf("unknown argument: %s", arg)
		}
	}

	return args, nil
}

// parseTimeout accepts a Go duration, or "off"/"0" for no timeout.
func parseTimeout(s string) (time.Duration, error) {
	if s == "off" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration '%s'", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration '%s'", s)
	}
	return d, nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `USAGE: viewx [options]

OPTIONS:
  --host <host>        Tracker host (default: 127.0.0.1)
  --port <port>        Tracker command port (default: 4444)
  --local-port <port>  Local UDP port to bind (default: any)
  --config <path>      Read settings from this TOML file
  --record <path>      Record all traffic to a SQLite database
  --timeout <dur>      Reply timeout, e.g. 2s (default: off)
  --plain              Disable colours
  --sim                Launch viewxsim on the tracker address first
  --help, -h           Show this help
  --version, -v        Show version

ENVIRONMENT:
  VIEWX_CONFIG         Config file path (default: ~/.config/viewx/config.toml)
  VIEWX_TRACKER_HOST, VIEWX_TRACKER_PORT, VIEWX_LOG_LEVEL, ...
                       Override any config key

EXAMPLES:
  viewx --host 192.168.1.2
  viewx --timeout 2s --record lab.db
  viewx --sim                          Try it against the simulator
`)
}

func printVersion() {
	fmt.Println(fullTitle())
}

func printError(message string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig reads the config file (explicit or default) and layers the
// command-line flags on top.
func loadConfig(args arguments) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if args.configPath != "" {
		cfg, err = config.LoadFile(args.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}

	applyArguments(&cfg, args)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func applyArguments(cfg *config.Config, args arguments) {
	if args.host != "" {
		cfg.Tracker.Host = args.host
	}
	if args.port != 0 {
		cfg.Tracker.Port = args.port
	}
	if args.localPort != 0 {
		cfg.Tracker.LocalPort = args.localPort
	}
	if args.recordPath != "" {
		cfg.Record.Path = args.recordPath
	}
	if args.timeoutSet {
		cfg.Client.ReplyTimeout = args.timeout
	}
	if args.plain {
		cfg.REPL.Plain = true
	}
}

// =============================================================================
// Signal Handling
// =============================================================================

// setupSignalHandler runs cleanup and exits on SIGINT or SIGTERM.
//
// GO CONCEPT: Signals Arrive on Channels
// --------------------------------------
// signal.Notify delivers OS signals to a channel instead of interrupting the
// program. A goroutine blocked on that channel turns the signal into an
// ordinary function call. The channel is buffered so a signal sent before
// the goroutine is scheduled is not lost.
func setupSignalHandler(cleanup func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println()
		cleanup()
		os.Exit(0)
	}()
}

// =============================================================================
// Main
// =============================================================================

func main() {
	if err := run(os.Args[1:]); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}

func run(argv []string) error {
	args, err := parseArguments(argv)
	if err != nil {
		printUsage(os.Stderr)
		return err
	}
	if args.showHelp {
		printUsage(os.Stdout)
		return nil
	}
	if args.showVersion {
		printVersion()
		return nil
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.New(cfg.Logging(appName))
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(cfg.Tracker.Host, strconv.Itoa(cfg.Tracker.Port))
	opts := []viewxprotocol.ClientOption{
		viewxprotocol.WithLogger(logger),
		viewxprotocol.WithProbe(cfg.ProbeTimeout()),
		viewxprotocol.WithLocalPort(cfg.Tracker.LocalPort),
	}

	var rec *recorder.Recorder
	if cfg.Record.Path != "" {
		rec, err = recorder.Open(cfg.Record.Path, recorder.WithLogger(logger), recorder.WithLabel(addr))
		if err != nil {
			logCloser.Close()
			return err
		}
		opts = append(opts, viewxprotocol.WithObserver(rec))
	}

	editor := NewLineEditor(cfg.REPL.HistoryFile, cfg.REPL.HistorySize)
	client := viewxprotocol.NewClient(opts...)
	r := newREPL(client, editor, editor.Writer(), newStyles(cfg.REPL.Plain))
	r.timeout = cfg.Client.ReplyTimeout
	r.recorder = rec
	r.installHandlers()

	// GO CONCEPT: Closures Capture by Reference
	// ------------------------------------------
	// cleanup refers to simProc, which is still nil here and is assigned
	// only if --sim is given. The closure sees the variable itself, not a
	// copy, so it stops whatever simulator is running when it finally runs.
	// sync.Once makes it safe to call from both the deferred call and the
	// signal handler.
	var simProc *simulator
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			client.Disconnect()
			r.wait()
			simProc.stop()
			editor.Close()
			if rec != nil {
				if err := rec.Close(); err != nil {
					logger.Warn("failed to close recorder", "error", err)
				}
			}
			logCloser.Close()
		})
	}
	defer cleanup()

	if args.sim {
		fmt.Fprintf(r.out, "Launching %s on %s...\n", simulatorExecutableName, addr)
		if simProc, err = launchSimulator(cfg.Tracker.Host, cfg.Tracker.Port); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "%s started (PID: %d)\n", simulatorExecutableName, simProc.pid())
	}

	fmt.Fprintf(r.out, "Connecting to %s...\n", addr)
	if err := client.Connect(cfg.Tracker.Host, cfg.Tracker.Port); err != nil {
		// GO CONCEPT: errors.As for Typed Errors
		// ---------------------------------------
		// errors.As walks the %w chain and, if it finds a
		// *ConnectionError, stores it in connErr.
		var connErr *viewxprotocol.ConnectionError
		if errors.As(err, &connErr) && cfg.ProbeTimeout() > 0 {
			return fmt.Errorf("%w (is iViewX running and remote control enabled?)", err)
		}
		return err
	}

	setupSignalHandler(cleanup)

	fmt.Fprint(r.out, welcomeBanner(addr))
	if rec != nil {
		fmt.Fprintf(r.out, "Recording to %s (session %s)\n", cfg.Record.Path, rec.Session())
	}
	fmt.Fprintln(r.out)

	r.run()
	return nil
}
