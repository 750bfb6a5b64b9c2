// =============================================================================
// simulator.go - Simulated Tracker Launch
// =============================================================================
//
// With --sim the CLI starts viewxsim as a child process on the configured
// tracker address, waits until it answers ET_SRT, and stops it with SIGTERM
// on exit.
//
// The viewxsim executable is searched for in:
//   1. The directory holding the viewx binary
//   2. PATH
//   3. ~/go/bin and ~/.local/bin
//
// =============================================================================

package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/pyviewx/viewx/viewxprotocol"
)

const (
	// simulatorExecutableName is the name of the simulator binary.
	simulatorExecutableName = "viewxsim"

	// simulatorStartTimeout bounds the wait for the first ET_SRT reply.
	simulatorStartTimeout = 4 * time.Second

	// simulatorPollInterval is the gap between readiness probes.
	simulatorPollInterval = 100 * time.Millisecond
)

// simulator is a running viewxsim child process.
type simulator struct {
	cmd *exec.Cmd
}

// launchSimulator starts viewxsim listening on host:port and waits for it
// to answer.
func launchSimulator(host string, port int) (*simulator, error) {
	exePath, err := findSimulatorExecutable()
	if err != nil {
		return nil, fmt.Errorf("could not find %s executable: %w", simulatorExecutableName, err)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	cmd := exec.Command(exePath, "--listen", addr)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", simulatorExecutableName, err)
	}
	sim := &simulator{cmd: cmd}

	if err := waitForTracker(addr, simulatorStartTimeout); err != nil {
		sim.stop()
		return nil, fmt.Errorf("%s started (PID: %d) but did not answer: %w", simulatorExecutableName, cmd.Process.Pid, err)
	}
	return sim, nil
}

// pid returns the child's process id.
func (s *simulator) pid() int {
	return s.cmd.Process.Pid
}

// stop sends SIGTERM and reaps the child.
func (s *simulator) stop() {
	if s == nil || s.cmd.Process == nil {
		return
	}
	s.cmd.Process.Signal(syscall.SIGTERM)
	s.cmd.Wait()
}

func findSimulatorExecutable() (string, error) {
	if selfPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(selfPath), simulatorExecutableName)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(simulatorExecutableName); err == nil {
		return path, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		for _, dir := range []string{filepath.Join(home, "go", "bin"), filepath.Join(home, ".local", "bin")} {
			candidate := filepath.Join(dir, simulatorExecutableName)
			if isExecutable(candidate) {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("%s not found in PATH or common locations", simulatorExecutableName)
}

// waitForTracker sends ET_SRT to addr until something answers or timeout
// passes.
func waitForTracker(addr string, timeout time.Duration) error {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	probe := viewxprotocol.NewGetSampleRateCommand().Encode()
	buf := make([]byte, viewxprotocol.MaxReceiveSize)
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		// Refused writes are expected until the child has bound the port.
		conn.Write(probe)
		conn.SetReadDeadline(time.Now().Add(simulatorPollInterval))
		n, err := conn.Read(buf)
		if err == nil {
			if reply, ok := viewxprotocol.ParseReply(buf[:n]); ok && reply.Keyword == viewxprotocol.KeywordSampleRate {
				return nil
			}
			continue
		}
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			time.Sleep(simulatorPollInterval)
		}
	}
	return fmt.Errorf("timeout waiting for %s", addr)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Mode().Perm()&0o111 != 0
}
