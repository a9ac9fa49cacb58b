package capture

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// ExitStatus describes how a child process terminated.
type ExitStatus struct {
	Code     int // Exit code, -1 if the process was terminated by a signal
	Signaled bool
	Signal   syscall.Signal
}

// Success reports whether the process exited normally with code zero.
func (s ExitStatus) Success() bool {
	return !s.Signaled && s.Code == 0
}

func (s ExitStatus) String() string {
	if s.Signaled {
		return "signal: " + s.Signal.String()
	}
	return fmt.Sprintf("exit code %d", s.Code)
}

// exitStatusFromWait converts the result of exec.Cmd.Wait into an ExitStatus. The
// boolean is false if err does not describe a process exit at all.
func exitStatusFromWait(err error) (ExitStatus, bool) {
	if err == nil {
		return ExitStatus{}, true
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ExitStatus{}, false
	}
	return exitStatusFromState(exitErr.ProcessState), true
}

func exitStatusFromState(state *os.ProcessState) ExitStatus {
	status := ExitStatus{Code: state.ExitCode()}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Signaled = true
		status.Signal = ws.Signal()
		status.Code = -1
	}
	return status
}
