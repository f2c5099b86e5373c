//go:build !windows

package engines

import (
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup starts the child in its own process group so signals
// reach wrapper scripts and everything they spawn.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func interruptGroup(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	if err := syscall.Kill(-proc.Pid, syscall.SIGINT); err != nil {
		return proc.Signal(syscall.SIGINT)
	}
	return nil
}

func killGroup(proc *os.Process) {
	if proc == nil {
		return
	}
	_ = syscall.Kill(-proc.Pid, syscall.SIGKILL)
}
