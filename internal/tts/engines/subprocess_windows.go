//go:build windows

package engines

import (
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

// Windows has no SIGINT.
func interruptGroup(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	return proc.Kill()
}

func killGroup(*os.Process) {}
