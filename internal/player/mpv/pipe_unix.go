//go:build !windows

package mpv

// isPipeReady is a no-op on Unix systems, sockets are checked via stat
func isPipeReady(pipePath string) bool {
	return false
}
