//go:build !linux && !windows

package main

import (
	"fmt"
	"log/slog"
	"runtime"

	"masher/internal/core/automasher"
)

func parseBackendChoice(value string) (string, error) {
	return "", fmt.Errorf("%s is not supported; masher needs Linux (evdev/uinput) or Windows (ViGEm)", runtime.GOOS)
}

func openPlatformSource(cfg config, logger *slog.Logger) (inputSource, error) {
	return nil, fmt.Errorf("no input backend for %s", runtime.GOOS)
}

func openPlatformPad(mapping automasher.Mapping, logger *slog.Logger) (actionPad, error) {
	return nil, fmt.Errorf("no virtual pad backend for %s", runtime.GOOS)
}

func listenPlatformHotkey(combo string, onToggle func(), logger *slog.Logger) (hotkeyListener, error) {
	return nil, fmt.Errorf("no hotkey backend for %s", runtime.GOOS)
}

func listInputDevices(backend string) error {
	return fmt.Errorf("no input backend for %s", runtime.GOOS)
}

func permissionDeniedHint() string {
	return "permission denied"
}
