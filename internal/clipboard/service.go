// Package clipboard copies text to the system clipboard with platform
// fallbacks for when the native path is unavailable.
package clipboard

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/aniview/aniview/internal/config"
)

// Service writes text to the system clipboard
type Service struct {
	cfg    *config.ClipboardConfig
	logger *slog.Logger
}

// NewService creates a clipboard service. cfg may carry a custom command
// that overrides the platform detection.
func NewService(cfg *config.ClipboardConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, logger: logger}
}

// Write copies text to the clipboard. The native library is tried first,
// then the configured command, then a platform tool.
func (s *Service) Write(text string) error {
	if err := clipboard.WriteAll(text); err == nil {
		return nil
	}

	if s.cfg != nil && s.cfg.Command != "" {
		return s.pipeTo(text, parseCommand(s.cfg.Command))
	}

	tool, err := s.platformTool()
	if err != nil {
		return err
	}
	return s.pipeTo(text, tool)
}

func (s *Service) platformTool() ([]string, error) {
	switch runtime.GOOS {
	case "darwin":
		return []string{"pbcopy"}, nil
	case "windows":
		return []string{"clip.exe"}, nil
	case "linux":
		if isWSL() {
			return []string{"clip.exe"}, nil
		}
		for _, tool := range [][]string{
			{"wl-copy"},
			{"xclip", "-selection", "clipboard"},
			{"xsel", "--clipboard", "--input"},
		} {
			if _, err := exec.LookPath(tool[0]); err == nil {
				return tool, nil
			}
		}
		return nil, fmt.Errorf("no clipboard tool found (install wl-clipboard, xclip, or xsel)")
	default:
		return nil, fmt.Errorf("clipboard not supported on %s", runtime.GOOS)
	}
}

func (s *Service) pipeTo(text string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty clipboard command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		s.logger.Debug("clipboard command failed", "command", argv[0], "error", err)
		return fmt.Errorf("clipboard command %s: %w", argv[0], err)
	}
	return nil
}

// parseCommand splits a command string into argv, respecting quotes
func parseCommand(command string) []string {
	var parts []string
	var current strings.Builder
	var inQuotes bool
	var quote rune

	for _, ch := range command {
		switch {
		case ch == '\'' || ch == '"':
			if !inQuotes {
				inQuotes = true
				quote = ch
			} else if ch == quote {
				inQuotes = false
			} else {
				current.WriteRune(ch)
			}
		case ch == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(ch)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}
