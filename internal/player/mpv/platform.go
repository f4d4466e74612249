package mpv

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform represents the operating system platform
type Platform int

const (
	PlatformLinux Platform = iota
	PlatformWindows
	PlatformWSL
	PlatformMac
)

// IPCConfig holds IPC connection configuration
type IPCConfig struct {
	Type     IPCType
	Address  string
	IsSocket bool // true for Unix sockets
}

// IPCType represents the IPC connection type
type IPCType int

const (
	IPCUnixSocket IPCType = iota
	IPCNamedPipe
)

// DetectPlatform detects the current platform
func DetectPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMac
	case "linux":
		if isWSL() {
			return PlatformWSL
		}
		return PlatformLinux
	default:
		return PlatformLinux
	}
}

// isWSL checks if running under Windows Subsystem for Linux
func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}

// Executable returns the mpv executable name for the platform
func Executable(platform Platform) string {
	if platform == PlatformWindows {
		return "mpv.exe"
	}
	// WSL uses Linux mpv: gopv cannot reach Windows named pipes from WSL
	return "mpv"
}

// FindExecutable resolves the mpv binary in PATH
func FindExecutable(platform Platform) (string, error) {
	executable := Executable(platform)
	path, err := exec.LookPath(executable)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH, please install mpv", executable)
	}
	return path, nil
}

// NewIPCConfig generates a unique IPC endpoint for the platform
func NewIPCConfig(platform Platform) (*IPCConfig, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return nil, err
	}

	if platform == PlatformWindows {
		return &IPCConfig{
			Type:    IPCNamedPipe,
			Address: fmt.Sprintf(`\\.\pipe\nextup-mpv-%s`, suffix),
		}, nil
	}

	// Linux, Mac and WSL all use Unix sockets
	return &IPCConfig{
		Type:     IPCUnixSocket,
		Address:  filepath.Join(os.TempDir(), fmt.Sprintf("nextup-mpv-%s.sock", suffix)),
		IsSocket: true,
	}, nil
}

// randomSuffix generates a unique suffix so concurrent instances never
// collide on the IPC endpoint
func randomSuffix() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// IPCArgument returns the mpv command-line argument for the IPC endpoint
func IPCArgument(config *IPCConfig) string {
	return fmt.Sprintf("--input-ipc-server=%s", config.Address)
}
