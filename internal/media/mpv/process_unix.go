//go:build !windows

package mpv

import "os/exec"

// setupProcessAttributes needs no special handling on Unix
func setupProcessAttributes(cmd *exec.Cmd) {
}
