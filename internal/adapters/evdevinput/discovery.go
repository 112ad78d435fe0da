//go:build linux

package evdevinput

import (
	"fmt"
	"os"
	"sort"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

type DeviceInfo struct {
	Path      string
	Name      string
	IsVirtual bool
	IsGamepad bool
}

// ListInputDevices enumerates the input devices visible to the process,
// flagging which look like physical gamepads.
func ListInputDevices() ([]DeviceInfo, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, err
	}

	sort.Slice(paths, func(i, j int) bool {
		return paths[i].Path < paths[j].Path
	})

	devices := make([]DeviceInfo, 0, len(paths))
	for _, path := range paths {
		dev, err := openInputDevice(path.Path)
		if err != nil {
			continue
		}

		name := path.Name
		if actualName, err := dev.Name(); err == nil && actualName != "" {
			name = actualName
		}

		devices = append(devices, DeviceInfo{
			Path:      path.Path,
			Name:      name,
			IsVirtual: deviceIsVirtual(dev, name),
			IsGamepad: deviceIsGamepad(dev),
		})
		_ = dev.Close()
	}

	return devices, nil
}

// openSourceDevices opens devicePath when given, otherwise every physical
// gamepad-capable device, in nonblocking mode ready for the read loops.
func openSourceDevices(devicePath string) ([]*evdev.InputDevice, error) {
	if devicePath != "" {
		dev, err := openInputDevice(devicePath)
		if err != nil {
			return nil, err
		}
		if !deviceIsGamepad(dev) {
			_ = dev.Close()
			return nil, fmt.Errorf("%s does not expose gamepad buttons", devicePath)
		}
		if err := dev.NonBlock(); err != nil {
			_ = dev.Close()
			return nil, fmt.Errorf("failed to set nonblocking mode for %s: %w", dev.Path(), err)
		}
		return []*evdev.InputDevice{dev}, nil
	}

	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, err
	}
	sort.Slice(paths, func(i, j int) bool {
		return paths[i].Path < paths[j].Path
	})

	devices := make([]*evdev.InputDevice, 0, len(paths))
	for _, path := range paths {
		dev, err := openInputDevice(path.Path)
		if err != nil {
			continue
		}

		name := path.Name
		if actualName, nameErr := dev.Name(); nameErr == nil && actualName != "" {
			name = actualName
		}
		if deviceIsVirtual(dev, name) || !deviceIsGamepad(dev) {
			_ = dev.Close()
			continue
		}
		if err := dev.NonBlock(); err != nil {
			_ = dev.Close()
			continue
		}
		devices = append(devices, dev)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("no physical gamepad devices found; use --list-devices and pass --device")
	}
	return devices, nil
}

func openInputDevice(path string) (*evdev.InputDevice, error) {
	return evdev.OpenWithFlags(path, os.O_RDONLY)
}

// deviceIsGamepad follows the kernel convention: gamepads expose BTN_SOUTH
// (aka BTN_GAMEPAD) among their key capabilities.
func deviceIsGamepad(device *evdev.InputDevice) bool {
	for _, code := range device.CapableEvents(evdev.EV_KEY) {
		if code == evdev.BTN_SOUTH {
			return true
		}
	}
	return false
}

func deviceIsVirtual(device *evdev.InputDevice, name string) bool {
	id, err := device.InputID()
	if err == nil && id.BusType == uint16(evdev.BUS_VIRTUAL) {
		return true
	}
	lower := strings.ToLower(name)
	for _, token := range []string{"virtual", "uinput", "masher"} {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
