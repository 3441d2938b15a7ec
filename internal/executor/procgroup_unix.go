//go:build !windows

package executor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// killGrace is how long the process group gets between SIGTERM and SIGKILL.
const killGrace = 500 * time.Millisecond

func configureProcessGroup(cmd *exec.Cmd) {
	// Own process group, so the whole tree can be killed on timeout.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	pgid := -cmd.Process.Pid

	_ = unix.Kill(pgid, unix.SIGTERM)

	deadline := time.Now().Add(killGrace)
	for time.Now().Before(deadline) {
		err := unix.Kill(pgid, 0)
		if err == nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if errors.Is(err, unix.ESRCH) {
			return
		}
		break
	}
	_ = unix.Kill(pgid, unix.SIGKILL)
}

func exitCodeFromProcessState(ps *os.ProcessState) int {
	if ps == nil {
		return -1
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok {
		if ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return ws.ExitStatus()
	}
	return ps.ExitCode()
}
