//go:build !windows

package tool

import (
	"os/exec"
	"syscall"
	"time"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends SIGTERM to the command's process group, then
// SIGKILL if it has not exited within SigkillTimeout. It returns once the
// command has been reaped.
func killProcessGroup(cmd *exec.Cmd, waitErr <-chan error) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid

	_ = syscall.Kill(-pid, syscall.SIGTERM)
	select {
	case <-waitErr:
		return
	case <-time.After(SigkillTimeout):
	}

	_ = syscall.Kill(-pid, syscall.SIGKILL)
	<-waitErr
}
