//go:build !windows

package source

import (
	"os/exec"
	"syscall"
)

// killProcessGroupOnCancel runs the command in its own process group, and
// kills the whole group when the command's context is done.
func killProcessGroupOnCancel(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
