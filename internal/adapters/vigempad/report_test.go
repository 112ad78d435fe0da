package vigempad

import (
	"testing"

	"masher/internal/core/automasher"
)

func TestBuildReportSetsButtonBits(t *testing.T) {
	buttons := [3]automasher.Button{automasher.ButtonSouth, automasher.ButtonEast, automasher.ButtonWest}

	report := buildReport(buttons, automasher.PadState{true, true, true})
	want := xusbA | xusbB | xusbX
	if report.wButtons != want {
		t.Fatalf("wButtons = 0x%04X, want 0x%04X", report.wButtons, want)
	}
	if report.bLeftTrigger != 0 || report.bRightTrigger != 0 {
		t.Fatalf("triggers should stay neutral for button-only mapping")
	}

	report = buildReport(buttons, automasher.PadState{})
	if report != (xusbReport{}) {
		t.Fatalf("all-released state should produce a neutral report, got %+v", report)
	}
}

func TestBuildReportSaturatesTriggers(t *testing.T) {
	buttons := [3]automasher.Button{automasher.ButtonTriggerL, automasher.ButtonTriggerR, automasher.ButtonNorth}

	report := buildReport(buttons, automasher.PadState{true, true, true})
	if report.bLeftTrigger != 0xFF || report.bRightTrigger != 0xFF {
		t.Fatalf("expected saturated triggers, got L=%d R=%d", report.bLeftTrigger, report.bRightTrigger)
	}
	if report.wButtons != xusbY {
		t.Fatalf("wButtons = 0x%04X, want 0x%04X", report.wButtons, xusbY)
	}

	report = buildReport(buttons, automasher.PadState{true, false, false})
	if report.bRightTrigger != 0 || report.wButtons != 0 {
		t.Fatalf("partial press leaked into other slots: %+v", report)
	}
}

func TestBuildReportPartialPress(t *testing.T) {
	buttons := [3]automasher.Button{automasher.ButtonSouth, automasher.ButtonEast, automasher.ButtonWest}

	report := buildReport(buttons, automasher.PadState{false, true, false})
	if report.wButtons != xusbB {
		t.Fatalf("wButtons = 0x%04X, want 0x%04X", report.wButtons, xusbB)
	}
}
