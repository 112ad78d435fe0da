// Package vigempad drives a ViGEm Xbox 360 virtual controller on Windows.
// The report layout and button bits here mirror the XUSB wire format and
// are platform-independent; the DLL binding lives in pad_windows.go.
package vigempad

import "masher/internal/core/automasher"

// XUSB_BUTTON bits, as defined by the ViGEm client headers.
const (
	xusbDpadUp        uint16 = 0x0001
	xusbDpadDown      uint16 = 0x0002
	xusbDpadLeft      uint16 = 0x0004
	xusbDpadRight     uint16 = 0x0008
	xusbStart         uint16 = 0x0010
	xusbBack          uint16 = 0x0020
	xusbLeftThumb     uint16 = 0x0040
	xusbRightThumb    uint16 = 0x0080
	xusbLeftShoulder  uint16 = 0x0100
	xusbRightShoulder uint16 = 0x0200
	xusbGuide         uint16 = 0x0400
	xusbA             uint16 = 0x1000
	xusbB             uint16 = 0x2000
	xusbX             uint16 = 0x4000
	xusbY             uint16 = 0x8000
)

// xusbReport is XUSB_REPORT: 12 bytes, passed to vigem_target_x360_update.
type xusbReport struct {
	wButtons      uint16
	bLeftTrigger  uint8
	bRightTrigger uint8
	sThumbLX      int16
	sThumbLY      int16
	sThumbRX      int16
	sThumbRY      int16
}

var xusbBits = map[automasher.Button]uint16{
	automasher.ButtonSouth:     xusbA,
	automasher.ButtonEast:      xusbB,
	automasher.ButtonWest:      xusbX,
	automasher.ButtonNorth:     xusbY,
	automasher.ButtonBumperL:   xusbLeftShoulder,
	automasher.ButtonBumperR:   xusbRightShoulder,
	automasher.ButtonSelect:    xusbBack,
	automasher.ButtonStart:     xusbStart,
	automasher.ButtonMode:      xusbGuide,
	automasher.ButtonThumbL:    xusbLeftThumb,
	automasher.ButtonThumbR:    xusbRightThumb,
	automasher.ButtonDpadUp:    xusbDpadUp,
	automasher.ButtonDpadDown:  xusbDpadDown,
	automasher.ButtonDpadLeft:  xusbDpadLeft,
	automasher.ButtonDpadRight: xusbDpadRight,
}

// buildReport translates the pressed actions into an XUSB report. Trigger
// buttons have no button bit; they saturate the analog trigger instead,
// which XInput games read as a full pull.
func buildReport(buttons [3]automasher.Button, state automasher.PadState) xusbReport {
	var report xusbReport
	for i, pressed := range state {
		if !pressed {
			continue
		}
		switch buttons[i] {
		case automasher.ButtonTriggerL:
			report.bLeftTrigger = 0xFF
		case automasher.ButtonTriggerR:
			report.bRightTrigger = 0xFF
		default:
			report.wButtons |= xusbBits[buttons[i]]
		}
	}
	return report
}
