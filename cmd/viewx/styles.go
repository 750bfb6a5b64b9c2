package main

import (
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// styles colours REPL output. All styles are no-ops in plain mode.
type styles struct {
	reply lipgloss.Style
	event lipgloss.Style
	warn  lipgloss.Style
	err   lipgloss.Style
	dim   lipgloss.Style
}

func newStyles(plain bool) styles {
	if plain {
		s := lipgloss.NewStyle()
		return styles{reply: s, event: s, warn: s, err: s, dim: s}
	}
	return styles{
		reply: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		event: lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		err:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		dim:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// lockedWriter serializes writes from the REPL and the reply goroutines.
//
// GO CONCEPT: A Mutex Next to the Data It Guards
// ----------------------------------------------
// mu protects w and nothing else, so it sits directly above it. The
// zero value of sync.Mutex is an unlocked mutex; no constructor is needed.
// Write takes a pointer receiver because copying a struct would copy
// the mutex too.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
