//go:build windows

package mpv

import (
	"os/exec"
	"syscall"
)

// setupProcessAttributes detaches mpv from the console's Ctrl+C handler so
// terminating nextup does not tear down the player mid-report
func setupProcessAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
