package mpv

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Platform represents the operating system platform
type Platform int

const (
	PlatformLinux Platform = iota
	PlatformWindows
	PlatformWSL
	PlatformMac
)

// IPCType represents how the mpv IPC endpoint is exposed
type IPCType int

const (
	IPCUnixSocket IPCType = iota
	IPCNamedPipe
)

// IPCConfig holds one session's IPC endpoint
type IPCConfig struct {
	Type    IPCType
	Address string
}

// DetectPlatform detects the current platform
func DetectPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMac
	default:
		if isWSL() {
			return PlatformWSL
		}
		return PlatformLinux
	}
}

// isWSL checks /proc/version for a Windows Subsystem for Linux marker
func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}

// Executable returns the mpv binary name for the platform
func Executable(platform Platform) string {
	if platform == PlatformWindows {
		return "mpv.exe"
	}
	// WSL uses the Linux mpv: gopv cannot reach Windows named pipes from
	// inside WSL, Unix sockets work fine
	return "mpv"
}

// FindExecutable locates the mpv binary in PATH
func FindExecutable(platform Platform) (string, error) {
	path, err := exec.LookPath(Executable(platform))
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", Executable(platform), err)
	}
	return path, nil
}

// NewIPCConfig generates a fresh IPC endpoint for one playback session
func NewIPCConfig(platform Platform) (*IPCConfig, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return nil, err
	}

	if platform == PlatformWindows {
		return &IPCConfig{
			Type:    IPCNamedPipe,
			Address: fmt.Sprintf(`\\.\pipe\aniview-mpv-%s`, suffix),
		}, nil
	}
	return &IPCConfig{
		Type:    IPCUnixSocket,
		Address: filepath.Join(os.TempDir(), fmt.Sprintf("aniview-mpv-%s.sock", suffix)),
	}, nil
}

// Cleanup removes the socket file left behind by a session
func (c *IPCConfig) Cleanup() {
	if c.Type == IPCUnixSocket {
		_ = os.Remove(c.Address)
	}
}

func randomSuffix() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// IPCArgument returns the mpv command-line argument for the endpoint
func IPCArgument(config *IPCConfig) string {
	return fmt.Sprintf("--input-ipc-server=%s", config.Address)
}

// ConnectionString returns the address in the form gopv expects
func ConnectionString(config *IPCConfig) string {
	return config.Address
}

// waitForIPC polls until the session's IPC endpoint accepts connections
func waitForIPC(ctx context.Context, config *IPCConfig) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	// Give mpv a moment before the first probe
	time.Sleep(300 * time.Millisecond)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			switch config.Type {
			case IPCUnixSocket:
				if _, err := os.Stat(config.Address); err == nil {
					// Socket file exists; let mpv finish wiring it up
					time.Sleep(200 * time.Millisecond)
					return nil
				}
			case IPCNamedPipe:
				if isPipeReady(config.Address) {
					time.Sleep(200 * time.Millisecond)
					return nil
				}
			}
		}
	}
}
