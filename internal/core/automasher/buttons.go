package automasher

import (
	"fmt"
	"strconv"
	"strings"
)

// Button identifies a physical controller button. Values follow the Linux
// input-event key codes so the evdev backend can pass codes through
// untranslated; other backends translate into this space. Trigger pulls are
// represented as the BTN_TL2/BTN_TR2 digital codes.
type Button uint16

const (
	ButtonSouth     Button = 0x130 // BTN_SOUTH / A
	ButtonEast      Button = 0x131 // BTN_EAST / B
	ButtonWest      Button = 0x134 // BTN_WEST / X
	ButtonNorth     Button = 0x133 // BTN_NORTH / Y
	ButtonBumperL   Button = 0x136 // BTN_TL
	ButtonBumperR   Button = 0x137 // BTN_TR
	ButtonTriggerL  Button = 0x138 // BTN_TL2
	ButtonTriggerR  Button = 0x139 // BTN_TR2
	ButtonSelect    Button = 0x13a // BTN_SELECT
	ButtonStart     Button = 0x13b // BTN_START
	ButtonMode      Button = 0x13c // BTN_MODE / guide
	ButtonThumbL    Button = 0x13d // BTN_THUMBL
	ButtonThumbR    Button = 0x13e // BTN_THUMBR
	ButtonDpadUp    Button = 0x220 // BTN_DPAD_UP
	ButtonDpadDown  Button = 0x221 // BTN_DPAD_DOWN
	ButtonDpadLeft  Button = 0x222 // BTN_DPAD_LEFT
	ButtonDpadRight Button = 0x223 // BTN_DPAD_RIGHT
)

var buttonNames = map[Button]string{
	ButtonSouth:     "BTN_SOUTH",
	ButtonEast:      "BTN_EAST",
	ButtonWest:      "BTN_WEST",
	ButtonNorth:     "BTN_NORTH",
	ButtonBumperL:   "BTN_TL",
	ButtonBumperR:   "BTN_TR",
	ButtonTriggerL:  "BTN_TL2",
	ButtonTriggerR:  "BTN_TR2",
	ButtonSelect:    "BTN_SELECT",
	ButtonStart:     "BTN_START",
	ButtonMode:      "BTN_MODE",
	ButtonThumbL:    "BTN_THUMBL",
	ButtonThumbR:    "BTN_THUMBR",
	ButtonDpadUp:    "BTN_DPAD_UP",
	ButtonDpadDown:  "BTN_DPAD_DOWN",
	ButtonDpadLeft:  "BTN_DPAD_LEFT",
	ButtonDpadRight: "BTN_DPAD_RIGHT",
}

var buttonCodes = func() map[string]Button {
	codes := make(map[string]Button, len(buttonNames))
	for code, name := range buttonNames {
		codes[name] = code
	}
	return codes
}()

func (b Button) String() string {
	if name, ok := buttonNames[b]; ok {
		return name
	}
	return strconv.Itoa(int(b))
}

// ParseButton accepts a BTN_* name or a numeric code.
func ParseButton(value string) (Button, error) {
	raw := strings.ToUpper(strings.TrimSpace(value))
	if raw == "" {
		return 0, fmt.Errorf("button is empty")
	}
	if code, ok := buttonCodes[raw]; ok {
		return code, nil
	}

	parsed, err := strconv.ParseInt(raw, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown button %q: use names like BTN_SOUTH/BTN_TR or a numeric code", value)
	}
	if parsed < 0 || parsed > 0xFFFF {
		return 0, fmt.Errorf("button code out of range: %d", parsed)
	}
	return Button(parsed), nil
}
