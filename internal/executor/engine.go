// Package executor runs validated commands through their shell and
// collects the result.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/Use-Tusk/shellgate/internal/logstore"
	"github.com/Use-Tusk/shellgate/internal/pathnorm"
	"github.com/Use-Tusk/shellgate/internal/resolve"
	"github.com/Use-Tusk/shellgate/internal/shell"
	"github.com/Use-Tusk/shellgate/internal/validate"
)

// State is a step of an execution.
type State string

const (
	StateReceived     State = "received"
	StateValidated    State = "validated"
	StateNormalized   State = "normalized"
	StateSpawned      State = "spawned"
	StateRunning      State = "running"
	StateCompleted    State = "completed"
	StateTimedOut     State = "timed_out"
	StateSpawnFailed  State = "spawn_failed"
	StateProcessError State = "process_error"
	StateFinalized    State = "finalized"
)

// TimeoutExitCode is reported for commands killed by the timeout.
const TimeoutExitCode = 124

// waitDelay bounds how long Wait blocks on output pipes held open by
// grandchildren after the shell itself has exited.
const waitDelay = 2 * time.Second

// maxCapturedBytes caps the combined output kept per execution.
const maxCapturedBytes = 32 << 20

// Request is one command to run.
type Request struct {
	ShellID        string
	Command        string
	WorkDir        string // optional
	MaxOutputLines int    // optional, overrides the shell's setting
}

// Result is the outcome of a command that was spawned.
type Result struct {
	ExecutionID      string        `json:"executionId"`
	ShellID          string        `json:"shell"`
	Command          string        `json:"command"`
	WorkDir          string        `json:"workDir"`
	State            State         `json:"state"` // Completed or TimedOut
	ExitCode         int           `json:"exitCode"`
	TimedOut         bool          `json:"timedOut"`
	Output           string        `json:"output"`
	Stdout           string        `json:"stdout"`
	Stderr           string        `json:"stderr"`
	Truncated        bool          `json:"truncated"`
	TruncationNotice string        `json:"truncationNotice,omitempty"`
	Duration         time.Duration `json:"duration"`
}

// SpawnError means the shell could not be started.
type SpawnError struct {
	Shell      string
	Executable string
	Err        error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start shell %q (%s): %v", e.Shell, e.Executable, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// RuntimeError means the process failed after it was started, other than by
// exiting with a status.
type RuntimeError struct {
	Shell string
	Err   error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("shell %q failed while running: %v", e.Shell, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// Engine validates and runs commands. It holds only read-only state and
// can run any number of requests concurrently.
type Engine struct {
	registry   *shell.Registry
	shells     *resolve.Set
	store      logstore.Store
	logger     *slog.Logger
	currentDir func() (string, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCurrentDir sets the provider of the directory used when neither the
// request nor the shell names one. The default is os.Getwd.
func WithCurrentDir(fn func() (string, error)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.currentDir = fn
		}
	}
}

// NewEngine creates an engine. A nil store keeps output in memory.
func NewEngine(registry *shell.Registry, shells *resolve.Set, store logstore.Store, opts ...Option) *Engine {
	e := &Engine{
		registry:   registry,
		shells:     shells,
		store:      store,
		logger:     slog.New(slog.DiscardHandler),
		currentDir: os.Getwd,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = logstore.NewMemoryStore()
	}
	return e
}

// Execute validates req, runs it and returns the result. Validation
// failures are *validate.Error; a timeout is a Result with TimedOut set.
//
// Once spawned, the process runs until it exits or the shell's timeout
// fires; cancelling ctx does not stop it.
func (e *Engine) Execute(ctx context.Context, req Request) (*Result, error) {
	log := e.logger.With("shell", req.ShellID)
	log.Debug("execution state", "state", StateReceived, "command", req.Command)

	vc, err := validate.BuildContext(e.registry, e.shells, req.ShellID)
	if err != nil {
		return nil, err
	}
	rc := vc.Config

	dir, base := e.workingDirectory(req.WorkDir, vc, log)
	dir, err = validate.CommandFrom(vc, req.Command, dir, base)
	if err != nil {
		log.Debug("command rejected", "error", err)
		return nil, err
	}
	log.Debug("execution state", "state", StateValidated)

	requested := req.WorkDir
	if requested == "" {
		requested = dir
	}
	inv, err := vc.Personality.Invocation(shell.InvocationRequest{
		Executable:   rc.Executable,
		Command:      req.Command,
		WorkDir:      dir,
		RequestedDir: requested,
		MountPoint:   vc.MountPoint(),
	})
	if err != nil {
		return nil, &validate.Error{Code: validate.CodeMalformedCommand, Value: req.Command, Message: err.Error()}
	}
	log.Debug("execution state", "state", StateNormalized, "argv", inv.Argv(), "dir", inv.Dir)

	out, run, err := e.run(ctx, req.ShellID, inv, rc.Security.Timeout(), log)
	if err != nil {
		return nil, err
	}

	combined, stdoutBytes, stderrBytes := out.snapshot()
	output := safeUTF8(combined)
	id, err := e.store.Store(ctx, output, logstore.Metadata{
		ShellID:   req.ShellID,
		Command:   req.Command,
		WorkDir:   dir,
		ExitCode:  run.exitCode,
		TimedOut:  run.timedOut,
		StartedAt: run.started,
		Duration:  run.duration,
	})
	if err != nil {
		log.Warn("failed to store output", "error", err)
	}

	maxLines := rc.MaxOutputLines
	if req.MaxOutputLines > 0 {
		maxLines = req.MaxOutputLines
	}
	shown, truncated, notice := logstore.Truncate(output, maxLines)
	if truncated && id != "" {
		notice = fmt.Sprintf("%s (full output: execution %s)", notice, id)
	}
	stdout, _, _ := logstore.Truncate(safeUTF8(stdoutBytes), maxLines)
	stderr, _, _ := logstore.Truncate(safeUTF8(stderrBytes), maxLines)

	res := &Result{
		ExecutionID:      id,
		ShellID:          req.ShellID,
		Command:          req.Command,
		WorkDir:          dir,
		State:            run.state,
		ExitCode:         run.exitCode,
		TimedOut:         run.timedOut,
		Output:           shown,
		Stdout:           stdout,
		Stderr:           stderr,
		Truncated:        truncated,
		TruncationNotice: notice,
		Duration:         run.duration,
	}
	log.Debug("execution state", "state", StateFinalized, "exitCode", res.ExitCode, "executionId", id)
	return res, nil
}

// workingDirectory picks the directory to validate: the request's, else the
// shell's initial directory, else the current directory. It also returns
// the base that a relative request directory is resolved against. An
// empty dir is reported by validation once the command itself passed.
func (e *Engine) workingDirectory(requested string, vc *validate.Context, log *slog.Logger) (dir, base string) {
	base = vc.Config.Paths.InitialDir
	if base == "" && requested != "" && !pathnorm.IsAbsolute(requested, vc.Kind) && !pathnorm.HasDrive(requested) {
		base, _ = e.currentDir()
	}
	if requested != "" {
		return requested, base
	}
	if base != "" {
		return base, ""
	}
	cwd, err := e.currentDir()
	if err != nil {
		log.Debug("current directory unavailable", "error", err)
		return "", ""
	}
	return cwd, ""
}

type runInfo struct {
	state    State
	exitCode int
	timedOut bool
	started  time.Time
	duration time.Duration
}

func (e *Engine) run(ctx context.Context, shellID string, inv *shell.Invocation, timeout time.Duration, log *slog.Logger) (*capture, *runInfo, error) {
	// The timeout is the only thing that stops a running command.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	cmd := exec.Command(inv.Path, inv.Args...) //nolint:gosec // command was validated
	cmd.Dir = inv.Dir
	cmd.Env = append(HardenedEnv(), inv.Env...)
	if stripped := StrippedEnvVars(os.Environ()); len(stripped) > 0 {
		log.Debug("stripped environment variables", "vars", stripped)
	}
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	out := newCapture(maxCapturedBytes)
	cmd.Stdout = out.writer(&out.stdout)
	cmd.Stderr = out.writer(&out.stderr)

	info := &runInfo{started: time.Now()}
	if err := cmd.Start(); err != nil {
		log.Error("spawn failed", "state", StateSpawnFailed, "executable", inv.Path, "error", err)
		return nil, nil, &SpawnError{Shell: shellID, Executable: inv.Path, Err: err}
	}
	log.Debug("execution state", "state", StateSpawned, "pid", cmd.Process.Pid)

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()
	log.Debug("execution state", "state", StateRunning)

	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-runCtx.Done():
		select {
		case waitErr = <-waitCh:
		default:
			info.timedOut = true
			killProcessGroup(cmd)
			waitErr = <-waitCh
		}
	}
	info.duration = time.Since(info.started)

	if info.timedOut {
		info.state = StateTimedOut
		info.exitCode = TimeoutExitCode
		log.Warn("command timed out", "timeout", timeout, "pid", cmd.Process.Pid)
		return out, info, nil
	}

	var ee *exec.ExitError
	switch {
	case waitErr == nil:
		info.exitCode = 0
	case errors.As(waitErr, &ee):
		info.exitCode = exitCodeFromProcessState(ee.ProcessState)
	case errors.Is(waitErr, exec.ErrWaitDelay):
		// The shell exited but a background child kept the pipes open.
		info.exitCode = cmd.ProcessState.ExitCode()
	default:
		log.Error("process failed", "state", StateProcessError, "error", waitErr)
		return nil, nil, &RuntimeError{Shell: shellID, Err: waitErr}
	}
	info.state = StateCompleted
	return out, info, nil
}

// capture keeps each stream and their interleaving in arrival order.
type capture struct {
	mu       sync.Mutex
	combined limitedBuffer
	stdout   limitedBuffer
	stderr   limitedBuffer
}

func newCapture(limit int) *capture {
	return &capture{
		combined: limitedBuffer{limit: limit},
		stdout:   limitedBuffer{limit: limit},
		stderr:   limitedBuffer{limit: limit},
	}
}

// snapshot returns the combined output and each stream.
func (c *capture) snapshot() (combined, stdout, stderr []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.combined.bytes(), c.stdout.bytes(), c.stderr.bytes()
}

func (c *capture) writer(own *limitedBuffer) io.Writer {
	return &streamWriter{c: c, own: own}
}

// streamWriter writes one stream to its own buffer and to the combined one.
type streamWriter struct {
	c   *capture
	own *limitedBuffer
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	w.own.write(p)
	w.c.combined.write(p)
	return len(p), nil
}

// limitedBuffer stops growing at limit and counts what it dropped. The
// capture's mutex guards it.
type limitedBuffer struct {
	buf     bytes.Buffer
	limit   int
	dropped int64
}

func (b *limitedBuffer) write(p []byte) {
	room := b.limit - b.buf.Len()
	switch {
	case room <= 0:
		b.dropped += int64(len(p))
	case len(p) > room:
		b.buf.Write(p[:room])
		b.dropped += int64(len(p) - room)
	default:
		b.buf.Write(p)
	}
}

func (b *limitedBuffer) bytes() []byte {
	out := bytes.Clone(b.buf.Bytes())
	if b.dropped > 0 {
		out = append(out, fmt.Sprintf("\n[%d bytes of output dropped]\n", b.dropped)...)
	}
	return out
}

func safeUTF8(b []byte) string {
	return string(bytes.ToValidUTF8(b, []byte("\uFFFD")))
}
