//go:build windows

package cmdexec

import "os/exec"

func signalCode(*exec.ExitError) int { return 1 }
