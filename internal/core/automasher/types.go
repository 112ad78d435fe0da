package automasher

import (
	"errors"
	"fmt"
	"time"
)

// Action is one of the three logical inputs mashed while a textbox is open.
type Action int

const (
	ActionNail Action = iota
	ActionJump
	ActionHeal

	actionCount = 3
)

func (a Action) String() string {
	switch a {
	case ActionNail:
		return "nail"
	case ActionJump:
		return "jump"
	case ActionHeal:
		return "heal"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Actions returns the closed set of logical actions in capture order.
func Actions() [actionCount]Action {
	return [actionCount]Action{ActionNail, ActionJump, ActionHeal}
}

var (
	ErrMappingIncomplete = errors.New("button mapping is incomplete")
	ErrMappingConflict   = errors.New("button mapping binds one button to multiple actions")
	ErrCaptureTimedOut   = errors.New("capture timed out waiting for input")
	ErrCaptureActive     = errors.New("a capture session is already running")
	ErrDeviceUnavailable = errors.New("virtual controller device unavailable")
)

// Mapping binds each logical action to a physical button. The zero value is
// an empty mapping; actions are bound one at a time during capture.
type Mapping struct {
	buttons [actionCount]Button
	bound   [actionCount]bool
}

// NewMapping builds a complete mapping and validates it.
func NewMapping(nail, jump, heal Button) (Mapping, error) {
	var m Mapping
	m.Bind(ActionNail, nail)
	m.Bind(ActionJump, jump)
	m.Bind(ActionHeal, heal)
	if err := m.Validate(); err != nil {
		return Mapping{}, err
	}
	return m, nil
}

func (m *Mapping) Bind(a Action, b Button) {
	m.buttons[a] = b
	m.bound[a] = true
}

// ButtonFor reports the button bound to a, if any.
func (m Mapping) ButtonFor(a Action) (Button, bool) {
	return m.buttons[a], m.bound[a]
}

// Uses reports whether any action is already bound to b.
func (m Mapping) Uses(b Button) bool {
	for i, bound := range m.bound {
		if bound && m.buttons[i] == b {
			return true
		}
	}
	return false
}

func (m Mapping) Complete() bool {
	for _, bound := range m.bound {
		if !bound {
			return false
		}
	}
	return true
}

// Validate checks completeness and pairwise distinctness.
func (m Mapping) Validate() error {
	if !m.Complete() {
		return ErrMappingIncomplete
	}
	for i := 0; i < actionCount; i++ {
		for j := i + 1; j < actionCount; j++ {
			if m.buttons[i] == m.buttons[j] {
				return fmt.Errorf("%w: %s and %s both use %s",
					ErrMappingConflict, Action(i), Action(j), m.buttons[i])
			}
		}
	}
	return nil
}

// Buttons returns the bound buttons in action order. Unbound slots are zero.
func (m Mapping) Buttons() [actionCount]Button {
	return m.buttons
}

// HoldSet is the set of physical buttons currently held by the operator.
type HoldSet map[Button]struct{}

func (h HoldSet) Has(b Button) bool {
	_, ok := h[b]
	return ok
}

// HoldSample is one poll of the physical input source. At is when the
// underlying state was last refreshed, not when Sample was called.
type HoldSample struct {
	Held HoldSet
	At   time.Time
}

// TextboxSample is one poll of the game-side textbox signal.
type TextboxSample struct {
	Active bool
	At     time.Time
}

// PadState is the batched update unit sent to the virtual pad: the pressed
// flag for each action, indexed by Action.
type PadState [actionCount]bool

// InputSource exposes the current physical button hold state. Sample must be
// non-blocking.
type InputSource interface {
	Sample() (HoldSample, error)
}

// TextboxSource exposes the game's textbox-open state. Current must be
// non-blocking.
type TextboxSource interface {
	Current() (TextboxSample, error)
}

// Pad is the virtual controller sink. Update applies a full batched state;
// Close releases the device.
type Pad interface {
	Update(PadState) error
	Close() error
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
