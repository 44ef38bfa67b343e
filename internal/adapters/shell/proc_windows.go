//go:build windows

package shell

import "os/exec"

// setProcessGroup is a no-op on Windows; CommandContext's default kill of
// the direct child applies.
func setProcessGroup(cmd *exec.Cmd) {}
