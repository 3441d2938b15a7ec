// Package logstore keeps the full combined output of executed commands so
// that a truncated result can point at it by execution id.
package logstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for an unknown execution id.
var ErrNotFound = errors.New("execution not found")

// Metadata describes one execution.
type Metadata struct {
	ShellID   string        `json:"shellId"`
	Command   string        `json:"command"`
	WorkDir   string        `json:"workDir"`
	ExitCode  int           `json:"exitCode"`
	TimedOut  bool          `json:"timedOut"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// Entry is a stored execution.
type Entry struct {
	ID       string   `json:"id"`
	Output   string   `json:"output"`
	Metadata Metadata `json:"metadata"`
}

// Store persists execution output. Implementations must be safe for
// concurrent use.
type Store interface {
	// Store saves output and returns the new execution id.
	Store(ctx context.Context, output string, meta Metadata) (string, error)
	// Get returns a stored execution.
	Get(ctx context.Context, id string) (*Entry, error)
	Close() error
}
