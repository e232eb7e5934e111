//go:build unix

package plugin

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup puts the child in its own process group so
// killing it also reaps any grandchildren it spawned, and arranges for
// ctx cancellation to signal the whole group rather than just the
// immediate child.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay
}
