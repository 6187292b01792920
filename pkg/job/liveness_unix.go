//go:build !windows

package job

import (
	"os"
	"os/exec"
	"syscall"
)

// pidAlive checks whether pid still refers to a live process by
// sending it the null signal, the standard POSIX way to probe
// liveness without actually affecting the process (the analogue of
// psutil.Process(pid).is_running() used by the original Python Job).
func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// detach configures cmd to run in its own session, decoupled from the
// calling process's process group, so it keeps running (and keeps
// writing job_info.json) even if the caller is killed.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
