//go:build windows

package mpv

import (
	"time"

	"github.com/Microsoft/go-winio"
)

// isPipeReady checks if a Windows named pipe accepts connections
func isPipeReady(pipePath string) bool {
	timeout := 200 * time.Millisecond
	conn, err := winio.DialPipe(pipePath, &timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
