//go:build windows

package job

import (
	"os"
	"os/exec"
)

// pidAlive checks whether pid still refers to a live process. Opening
// a handle to the process is enough to detect that it has exited on
// Windows, where there is no POSIX null-signal probe.
func pidAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}

// detach is a no-op on Windows: this framework's remote worker targets
// Unix hosts over SSH (see cmd/automan-agent). The supervisor process
// is started with default attributes, with no separate session or
// process group of its own.
func detach(cmd *exec.Cmd) {}
