//go:build windows

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"masher/internal/adapters/sdlinput"
	"masher/internal/adapters/vigempad"
	"masher/internal/core/automasher"
)

func parseBackendChoice(value string) (string, error) {
	choice := strings.ToLower(strings.TrimSpace(value))
	switch choice {
	case "auto", "sdl":
		return "sdl", nil
	default:
		return "", fmt.Errorf("invalid --backend %q (only sdl is available on Windows)", value)
	}
}

func openPlatformSource(cfg config, logger *slog.Logger) (inputSource, error) {
	source, err := sdlinput.Open(slogAdapter{logger: logger})
	if err != nil {
		return nil, err
	}
	return source, nil
}

func openPlatformPad(mapping automasher.Mapping, logger *slog.Logger) (actionPad, error) {
	pad, err := vigempad.New(mapping)
	if err != nil {
		return nil, err
	}
	return pad, nil
}

func listenPlatformHotkey(combo string, onToggle func(), logger *slog.Logger) (hotkeyListener, error) {
	return nil, fmt.Errorf("global hotkeys are not supported on Windows")
}

func listInputDevices(backend string) error {
	names, err := sdlinput.ListControllers()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No game controllers detected.")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func permissionDeniedHint() string {
	return "access denied talking to the ViGEmBus driver; make sure ViGEmBus is installed and try " +
		"running from an elevated prompt"
}
