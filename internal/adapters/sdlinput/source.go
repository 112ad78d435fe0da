// Package sdlinput reads physical gamepad state through SDL's game
// controller API. SDL normalizes vendor quirks, so this backend works on
// any platform SDL supports; button identities are translated into the
// evdev-style codes the rest of the system speaks.
package sdlinput

import (
	"fmt"
	"sync"
	"time"

	"masher/internal/core/automasher"

	"github.com/veandco/go-sdl2/sdl"
)

// triggerThreshold is the axis travel beyond which a trigger pull counts
// as a held digital button. SDL trigger axes run 0..32767.
const triggerThreshold = 8000

var sdlButtons = map[sdl.GameControllerButton]automasher.Button{
	sdl.CONTROLLER_BUTTON_A:             automasher.ButtonSouth,
	sdl.CONTROLLER_BUTTON_B:             automasher.ButtonEast,
	sdl.CONTROLLER_BUTTON_X:             automasher.ButtonWest,
	sdl.CONTROLLER_BUTTON_Y:             automasher.ButtonNorth,
	sdl.CONTROLLER_BUTTON_LEFTSHOULDER:  automasher.ButtonBumperL,
	sdl.CONTROLLER_BUTTON_RIGHTSHOULDER: automasher.ButtonBumperR,
	sdl.CONTROLLER_BUTTON_BACK:          automasher.ButtonSelect,
	sdl.CONTROLLER_BUTTON_START:         automasher.ButtonStart,
	sdl.CONTROLLER_BUTTON_GUIDE:         automasher.ButtonMode,
	sdl.CONTROLLER_BUTTON_LEFTSTICK:     automasher.ButtonThumbL,
	sdl.CONTROLLER_BUTTON_RIGHTSTICK:    automasher.ButtonThumbR,
	sdl.CONTROLLER_BUTTON_DPAD_UP:       automasher.ButtonDpadUp,
	sdl.CONTROLLER_BUTTON_DPAD_DOWN:     automasher.ButtonDpadDown,
	sdl.CONTROLLER_BUTTON_DPAD_LEFT:     automasher.ButtonDpadLeft,
	sdl.CONTROLLER_BUTTON_DPAD_RIGHT:    automasher.ButtonDpadRight,
}

// Source polls every attached game controller. SDL state reads are cheap;
// Sample pumps controller state and merges all pads into one hold set.
type Source struct {
	mu     sync.Mutex
	pads   []*sdl.GameController
	logger automasher.Logger
	closed bool
}

func Open(logger automasher.Logger) (*Source, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	// Keep receiving state while the game window has focus.
	sdl.SetHint(sdl.HINT_JOYSTICK_ALLOW_BACKGROUND_EVENTS, "1")
	if err := sdl.Init(sdl.INIT_JOYSTICK | sdl.INIT_GAMECONTROLLER); err != nil {
		return nil, fmt.Errorf("sdl: %w", err)
	}

	s := &Source{logger: logger}
	s.openAttached()
	if len(s.pads) == 0 {
		logger.Warn("No gamepads attached; waiting for hotplug")
	}
	return s, nil
}

func (s *Source) openAttached() {
	for i := 0; i < sdl.NumJoysticks(); i++ {
		if !sdl.IsGameController(i) {
			continue
		}
		pad := sdl.GameControllerOpen(i)
		if pad == nil || !pad.Attached() {
			continue
		}
		s.pads = append(s.pads, pad)
		s.logger.Info("Using gamepad", "name", pad.Joystick().Name())
	}
}

// Sample polls the current button state of every attached pad. The sample
// is fresh by construction, so At is the read time.
func (s *Source) Sample() (automasher.HoldSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return automasher.HoldSample{}, fmt.Errorf("sdl source is closed")
	}

	sdl.GameControllerUpdate()

	held := make(automasher.HoldSet)
	attached := s.pads[:0]
	for _, pad := range s.pads {
		if !pad.Attached() {
			pad.Close()
			continue
		}
		attached = append(attached, pad)

		for sdlButton, button := range sdlButtons {
			if pad.Button(sdlButton) == sdl.PRESSED {
				held[button] = struct{}{}
			}
		}
		if pad.Axis(sdl.CONTROLLER_AXIS_TRIGGERLEFT) > triggerThreshold {
			held[automasher.ButtonTriggerL] = struct{}{}
		}
		if pad.Axis(sdl.CONTROLLER_AXIS_TRIGGERRIGHT) > triggerThreshold {
			held[automasher.ButtonTriggerR] = struct{}{}
		}
	}
	s.pads = attached

	return automasher.HoldSample{Held: held, At: time.Now()}, nil
}

// Rescan picks up controllers attached after Open.
func (s *Source) Rescan() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	opened := make(map[sdl.JoystickID]struct{}, len(s.pads))
	for _, pad := range s.pads {
		opened[pad.Joystick().InstanceID()] = struct{}{}
	}
	for i := 0; i < sdl.NumJoysticks(); i++ {
		if !sdl.IsGameController(i) {
			continue
		}
		pad := sdl.GameControllerOpen(i)
		if pad == nil || !pad.Attached() {
			continue
		}
		if _, ok := opened[pad.Joystick().InstanceID()]; ok {
			pad.Close()
			continue
		}
		s.pads = append(s.pads, pad)
		s.logger.Info("Gamepad attached", "name", pad.Joystick().Name())
	}
}

func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, pad := range s.pads {
		pad.Close()
	}
	s.pads = nil
	sdl.QuitSubSystem(sdl.INIT_JOYSTICK | sdl.INIT_GAMECONTROLLER)
}

// ListControllers names the currently attached game controllers.
func ListControllers() ([]string, error) {
	if err := sdl.Init(sdl.INIT_JOYSTICK | sdl.INIT_GAMECONTROLLER); err != nil {
		return nil, fmt.Errorf("sdl: %w", err)
	}
	defer sdl.QuitSubSystem(sdl.INIT_JOYSTICK | sdl.INIT_GAMECONTROLLER)

	names := make([]string, 0, sdl.NumJoysticks())
	for i := 0; i < sdl.NumJoysticks(); i++ {
		name := sdl.GameControllerNameForIndex(i)
		if name == "" {
			name = sdl.JoystickNameForIndex(i)
		}
		names = append(names, name)
	}
	return names, nil
}
