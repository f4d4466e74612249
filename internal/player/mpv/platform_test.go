package mpv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justchokingaround/nextup/internal/player"
)

func TestExecutable(t *testing.T) {
	assert.Equal(t, "mpv.exe", Executable(PlatformWindows))
	assert.Equal(t, "mpv", Executable(PlatformLinux))
	assert.Equal(t, "mpv", Executable(PlatformMac))
	assert.Equal(t, "mpv", Executable(PlatformWSL))
}

func TestNewIPCConfig(t *testing.T) {
	t.Run("windows uses a named pipe", func(t *testing.T) {
		cfg, err := NewIPCConfig(PlatformWindows)
		require.NoError(t, err)
		assert.Equal(t, IPCNamedPipe, cfg.Type)
		assert.True(t, strings.HasPrefix(cfg.Address, `\\.\pipe\nextup-mpv-`))
		assert.False(t, cfg.IsSocket)
	})

	t.Run("unix platforms use a socket", func(t *testing.T) {
		for _, platform := range []Platform{PlatformLinux, PlatformMac, PlatformWSL} {
			cfg, err := NewIPCConfig(platform)
			require.NoError(t, err)
			assert.Equal(t, IPCUnixSocket, cfg.Type)
			assert.True(t, cfg.IsSocket)
			assert.Contains(t, cfg.Address, "nextup-mpv-")
			assert.True(t, strings.HasSuffix(cfg.Address, ".sock"))
		}
	})

	t.Run("endpoints are unique across instances", func(t *testing.T) {
		seen := map[string]bool{}
		for i := 0; i < 50; i++ {
			cfg, err := NewIPCConfig(PlatformLinux)
			require.NoError(t, err)
			assert.False(t, seen[cfg.Address], "duplicate endpoint %s", cfg.Address)
			seen[cfg.Address] = true
		}
	})
}

func TestIPCArgument(t *testing.T) {
	cfg := &IPCConfig{Address: "/tmp/nextup-mpv-abc.sock"}
	assert.Equal(t, "--input-ipc-server=/tmp/nextup-mpv-abc.sock", IPCArgument(cfg))
}

func TestBuildArgs(t *testing.T) {
	newPlayer := func(debug, loadUserConfig bool) *MPVPlayer {
		return &MPVPlayer{
			platform:       PlatformLinux,
			debug:          debug,
			loadUserConfig: loadUserConfig,
			ipcConfig:      &IPCConfig{Address: "/tmp/test.sock", IsSocket: true},
		}
	}

	t.Run("defaults isolate mpv from user config", func(t *testing.T) {
		p := newPlayer(false, false)
		args := p.buildArgs("http://jf/Videos/e1/stream", player.LaunchOptions{})

		assert.Contains(t, args, "--input-ipc-server=/tmp/test.sock")
		assert.Contains(t, args, "--idle=yes")
		assert.Contains(t, args, "--no-config")
		assert.Contains(t, args, "--msg-level=all=warn")
		assert.Equal(t, "http://jf/Videos/e1/stream", args[len(args)-1])
	})

	t.Run("user config and debug flip the isolation flags", func(t *testing.T) {
		p := newPlayer(true, true)
		args := p.buildArgs("url", player.LaunchOptions{})

		assert.NotContains(t, args, "--no-config")
		assert.NotContains(t, args, "--msg-level=all=warn")
	})

	t.Run("launch options are forwarded", func(t *testing.T) {
		p := newPlayer(false, false)
		args := p.buildArgs("url", player.LaunchOptions{
			Title:      "Some Show S01E02 - Next",
			StartTime:  42.5,
			Fullscreen: true,
			ExtraArgs:  []string{"--volume=50"},
		})

		assert.Contains(t, args, "--force-media-title=Some Show S01E02 - Next")
		assert.Contains(t, args, "--fullscreen")
		assert.Contains(t, args, "--volume=50")

		var hasStart bool
		for _, arg := range args {
			if strings.HasPrefix(arg, "--start=42.5") {
				hasStart = true
			}
		}
		assert.True(t, hasStart)

		// The URL stays last even with extra args
		assert.Equal(t, "url", args[len(args)-1])
	})

	t.Run("empty title adds no title flag", func(t *testing.T) {
		p := newPlayer(false, false)
		args := p.buildArgs("url", player.LaunchOptions{})

		for _, arg := range args {
			assert.False(t, strings.HasPrefix(arg, "--force-media-title"))
		}
	})
}
