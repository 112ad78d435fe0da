//go:build linux

// Package uinputpad drives a uinput virtual gamepad. The device advertises
// the full gamepad button set so a mapping change never requires recreating
// it; Update presses whichever buttons the current mapping selects.
package uinputpad

import (
	"fmt"
	"sync"

	"masher/internal/core/automasher"

	evdev "github.com/holoplot/go-evdev"
)

const deviceName = "masher virtual pad"

type Pad struct {
	mu      sync.Mutex
	dev     *evdev.InputDevice
	buttons [3]automasher.Button
	sent    automasher.PadState
	closed  bool
}

// New creates the virtual gamepad device. mapping decides which physical
// button code each action emits; an incomplete mapping is fine at creation
// time since the engine stays idle until one is installed.
func New(mapping automasher.Mapping) (*Pad, error) {
	capabilities := map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: gamepadKeyCodes(),
	}
	id := evdev.InputID{
		BusType: uint16(evdev.BUS_VIRTUAL),
		Vendor:  0x1,
		Product: 0x1,
		Version: 1,
	}

	dev, err := evdev.CreateDevice(deviceName, id, capabilities)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", automasher.ErrDeviceUnavailable, err)
	}
	return &Pad{dev: dev, buttons: mapping.Buttons()}, nil
}

// SetButtons redirects the three action slots to new physical codes, e.g.
// after a re-capture. Any pressed state is released on the old codes first.
func (p *Pad) SetButtons(buttons [3]automasher.Button) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sent != (automasher.PadState{}) {
		if err := p.writeLocked(automasher.PadState{}); err != nil {
			return err
		}
		p.sent = automasher.PadState{}
	}
	p.buttons = buttons
	return nil
}

// Update applies a batched state: per-action key events followed by a
// single SYN_REPORT, so the game never observes a partial frame.
func (p *Pad) Update(state automasher.PadState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return automasher.ErrDeviceUnavailable
	}
	if state == p.sent {
		return nil
	}
	if err := p.writeLocked(state); err != nil {
		return fmt.Errorf("%w: %v", automasher.ErrDeviceUnavailable, err)
	}
	p.sent = state
	return nil
}

func (p *Pad) writeLocked(state automasher.PadState) error {
	for i, pressed := range state {
		if pressed == p.sent[i] {
			continue
		}
		value := int32(0)
		if pressed {
			value = 1
		}
		ev := evdev.InputEvent{
			Type:  evdev.EV_KEY,
			Code:  evdev.EvCode(p.buttons[i]),
			Value: value,
		}
		if err := p.dev.WriteOne(&ev); err != nil {
			return err
		}
	}
	syn := evdev.InputEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT, Value: 0}
	return p.dev.WriteOne(&syn)
}

func (p *Pad) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.dev.Close()
}

// gamepadKeyCodes is every button the virtual pad can emit, matching the
// Button constants the rest of the system uses.
func gamepadKeyCodes() []evdev.EvCode {
	return []evdev.EvCode{
		evdev.BTN_SOUTH,
		evdev.BTN_EAST,
		evdev.BTN_NORTH,
		evdev.BTN_WEST,
		evdev.BTN_TL,
		evdev.BTN_TR,
		evdev.BTN_TL2,
		evdev.BTN_TR2,
		evdev.BTN_SELECT,
		evdev.BTN_START,
		evdev.BTN_MODE,
		evdev.BTN_THUMBL,
		evdev.BTN_THUMBR,
		evdev.BTN_DPAD_UP,
		evdev.BTN_DPAD_DOWN,
		evdev.BTN_DPAD_LEFT,
		evdev.BTN_DPAD_RIGHT,
	}
}
