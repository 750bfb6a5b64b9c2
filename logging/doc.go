// Package logging provides the minimal logging interface used across viewx.
//
// The Logger interface defines the standard leveled methods (Debug, Info,
// Warn, Error) taking slog-style key/value pairs. This package includes:
//
//   - Logger interface for dependency injection into the protocol client
//   - SlogAdapter wrapping a *slog.Logger
//   - NoOpLogger for silent operation (tests, library default)
//   - New, which builds a text or JSON slog handler and can route output
//     into a size-rotated log file
//
// Usage:
//
//	logger, closer, err := logging.New(&logging.Config{Level: "debug", File: "/var/log/viewx.log"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer closer.Close()
//	client := viewxprotocol.NewClient(viewxprotocol.WithLogger(logger))
package logging
