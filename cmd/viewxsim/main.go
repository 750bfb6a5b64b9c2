// =============================================================================
// main.go - Simulated iViewX Tracker
// =============================================================================
//
// viewxsim answers iViewX remote commands on a UDP port so viewx (or any
// other client) can be tried without an eye tracker. Calibration runs emit
// ET_CHG/ET_FIN events and ET_STR streams ET_SPL samples at the configured
// rate.
//
// Usage:
//
//	viewxsim                           Listen on 127.0.0.1:4444
//	viewxsim --listen :5555            Listen on another address
//	viewxsim --config lossy.yaml       Load a scenario (delay, drops, ...)
//
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pyviewx/viewx/internal/config"
	"github.com/pyviewx/viewx/internal/sim"
	"github.com/pyviewx/viewx/logging"
)

type arguments struct {
	configPath string
	listen     string
	showHelp   bool
}

func parseArguments(argv []string) (arguments, error) {
	var args arguments
	remaining := argv

	for len(remaining) > 0 {
		arg := remaining[0]
		remaining = remaining[1:]

		switch arg {
		case "--config", "--listen":
			if len(remaining) == 0 {
				return args, fmt.Errorf("%s requires a value", arg)
			}
			if arg == "--config" {
				args.configPath = remaining[0]
			} else {
				args.listen = remaining[0]
			}
			remaining = remaining[1:]

		case "--help", "-h":
			args.showHelp = true

		default:
			return args, fmt.Errorf("unknown argument: %s", arg)
		}
	}
	return args, nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `USAGE: viewxsim [options]

OPTIONS:
  --config <path>   Scenario file (YAML)
  --listen <addr>   UDP listen address (default: 127.0.0.1:4444)
  --help, -h        Show this help

SCENARIO KEYS:
  listen, sample_rate, reply_delay, drop_rate, seed,
  screen.width, screen.height, silent (keywords never answered)

Logging follows the viewx config ([log] section and VIEWX_LOG_* variables).
`)
}

// loadScenario reads the scenario file, if any, and applies --listen.
func loadScenario(args arguments) (*sim.Scenario, error) {
	sc := sim.DefaultScenario()
	if args.configPath != "" {
		var err error
		if sc, err = sim.LoadScenario(args.configPath); err != nil {
			return nil, err
		}
	}
	if args.listen != "" {
		sc.Listen = args.listen
		if err := sc.Validate(); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

// loadConfig reads the shared viewx config. The simulator logs at info
// unless the file or environment sets log.level.
func loadConfig() (config.Config, error) {
	return config.Load(config.WithDefault("log.level", "info"))
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
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

	sc, err := loadScenario(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(cfg.Logging("viewxsim"))
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := sim.NewServer(sc, logger)
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	logger.Info("simulated tracker stopped")
	return nil
}
