//go:build !windows

package shell

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own process group and signals the
// whole group on cancellation. Without it only the shell receives the kill
// and children it spawned keep the stdout and stderr pipes open, blocking
// the run past its deadline.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Negative PID targets the full process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
