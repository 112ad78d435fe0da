//go:build linux

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"masher/internal/adapters/evdevinput"
	"masher/internal/adapters/sdlinput"
	"masher/internal/adapters/uinputpad"
	"masher/internal/adapters/x11hotkey"
	"masher/internal/core/automasher"
)

func parseBackendChoice(value string) (string, error) {
	choice := strings.ToLower(strings.TrimSpace(value))
	switch choice {
	case "auto", "evdev", "sdl":
		return choice, nil
	default:
		return "", fmt.Errorf("invalid --backend %q (expected auto|evdev|sdl)", value)
	}
}

func openSDLSource(logger *slog.Logger) (inputSource, error) {
	source, err := sdlinput.Open(slogAdapter{logger: logger})
	if err != nil {
		return nil, err
	}
	return source, nil
}

func openPlatformSource(cfg config, logger *slog.Logger) (inputSource, error) {
	switch cfg.backend {
	case "sdl":
		return openSDLSource(logger)
	case "evdev":
		source, err := evdevinput.Open(cfg.devicePath, slogAdapter{logger: logger})
		if err != nil {
			return nil, err
		}
		return source, nil
	default:
		source, err := evdevinput.Open(cfg.devicePath, slogAdapter{logger: logger})
		if err == nil {
			return source, nil
		}
		logger.Warn("evdev unavailable, falling back to SDL", "error", err)
		return openSDLSource(logger)
	}
}

func openPlatformPad(mapping automasher.Mapping, logger *slog.Logger) (actionPad, error) {
	pad, err := uinputpad.New(mapping)
	if err != nil {
		return nil, err
	}
	return pad, nil
}

func listenPlatformHotkey(combo string, onToggle func(), logger *slog.Logger) (hotkeyListener, error) {
	hotkey, err := x11hotkey.Listen(combo, onToggle, slogAdapter{logger: logger})
	if err != nil {
		return nil, err
	}
	return hotkey, nil
}

func listInputDevices(backend string) error {
	if backend == "sdl" {
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

	devices, err := evdevinput.ListInputDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No input devices found. Check read access to /dev/input/event*.")
		return nil
	}
	for _, device := range devices {
		tags := ""
		if device.IsGamepad {
			tags += " [gamepad]"
		}
		if device.IsVirtual {
			tags += " [virtual]"
		}
		fmt.Printf("%s\t%s%s\n", device.Path, device.Name, tags)
	}
	return nil
}

func permissionDeniedHint() string {
	return "permission denied opening /dev/input or /dev/uinput; add your user to the input group " +
		"(sudo usermod -aG input $USER) or run with elevated privileges"
}
