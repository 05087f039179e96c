//go:build !windows

package cmdexec

import (
	"os/exec"
	"syscall"
)

func signalCode(err *exec.ExitError) int {
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return 1
}
