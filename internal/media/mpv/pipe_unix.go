//go:build !windows

package mpv

// isPipeReady only applies to Windows named pipes
func isPipeReady(pipePath string) bool {
	return false
}
