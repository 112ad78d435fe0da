package automasher

import (
	"errors"
	"testing"
	"time"
)

func captureConfig() CaptureConfig {
	return CaptureConfig{
		Debounce:     50 * time.Millisecond,
		Timeout:      2 * time.Second,
		PollInterval: 16 * time.Millisecond,
	}
}

func testCapture(t *testing.T) (*Capture, *fakeInput) {
	t.Helper()
	input := &fakeInput{}
	capture, err := NewCapture(captureConfig(), input, noopLogger{})
	if err != nil {
		t.Fatalf("NewCapture() error = %v", err)
	}
	return capture, input
}

// holdUntilBound presses b and steps until the awaited action advances or
// the step budget runs out.
func holdUntilBound(t *testing.T, c *Capture, input *fakeInput, now time.Time, interval time.Duration, b Button) time.Time {
	t.Helper()
	before := c.Status().Awaiting
	for i := 0; i < 50; i++ {
		input.set(now, b)
		finished, err := c.step(now)
		if err != nil {
			t.Fatalf("step() error = %v", err)
		}
		status := c.Status()
		if finished || status.Awaiting != before {
			return now
		}
		now = now.Add(interval)
	}
	t.Fatalf("button %s never bound to %s", b, before)
	return now
}

// releaseAll steps once with nothing held so the next press registers as new.
func releaseAll(t *testing.T, c *Capture, input *fakeInput, now time.Time) time.Time {
	t.Helper()
	input.set(now)
	if _, err := c.step(now); err != nil {
		t.Fatalf("step() error = %v", err)
	}
	return now.Add(16 * time.Millisecond)
}

func TestCaptureBindsThreeDistinctButtons(t *testing.T) {
	capture, input := testCapture(t)
	now := time.Now()

	now = releaseAll(t, capture, input, now)
	now = holdUntilBound(t, capture, input, now, 16*time.Millisecond, ButtonSouth)
	now = releaseAll(t, capture, input, now.Add(16*time.Millisecond))
	now = holdUntilBound(t, capture, input, now, 16*time.Millisecond, ButtonEast)
	now = releaseAll(t, capture, input, now.Add(16*time.Millisecond))
	holdUntilBound(t, capture, input, now, 16*time.Millisecond, ButtonWest)

	status := capture.Status()
	if !status.Done || status.TimedOut {
		t.Fatalf("unexpected status %+v", status)
	}
	if err := status.Mapping.Validate(); err != nil {
		t.Fatalf("captured mapping invalid: %v", err)
	}
	want := map[Action]Button{ActionNail: ButtonSouth, ActionJump: ButtonEast, ActionHeal: ButtonWest}
	for a, b := range want {
		got, ok := status.Mapping.ButtonFor(a)
		if !ok || got != b {
			t.Fatalf("%s bound to %v, want %s", a, got, b)
		}
	}
}

func TestCaptureIgnoresAlreadyBoundButton(t *testing.T) {
	capture, input := testCapture(t)
	now := time.Now()

	now = releaseAll(t, capture, input, now)
	now = holdUntilBound(t, capture, input, now, 16*time.Millisecond, ButtonSouth)
	now = releaseAll(t, capture, input, now.Add(16*time.Millisecond))

	// Re-pressing the nail button must neither bind nor error.
	for i := 0; i < 10; i++ {
		input.set(now, ButtonSouth)
		if _, err := capture.step(now); err != nil {
			t.Fatalf("step() error = %v", err)
		}
		now = now.Add(16 * time.Millisecond)
	}
	if status := capture.Status(); status.Awaiting != ActionJump {
		t.Fatalf("Awaiting = %v, want jump", status.Awaiting)
	}

	now = releaseAll(t, capture, input, now)
	holdUntilBound(t, capture, input, now, 16*time.Millisecond, ButtonEast)
	if status := capture.Status(); status.Awaiting != ActionHeal {
		t.Fatalf("Awaiting = %v, want heal after distinct button", status.Awaiting)
	}
}

func TestCaptureDebounceRequiresContinuousHold(t *testing.T) {
	capture, input := testCapture(t)
	now := time.Now()
	interval := 16 * time.Millisecond

	now = releaseAll(t, capture, input, now)

	// Tap shorter than the debounce window: press two ticks, release.
	for i := 0; i < 2; i++ {
		input.set(now, ButtonSouth)
		if _, err := capture.step(now); err != nil {
			t.Fatalf("step() error = %v", err)
		}
		now = now.Add(interval)
	}
	now = releaseAll(t, capture, input, now)

	if status := capture.Status(); status.Awaiting != ActionNail {
		t.Fatalf("short tap should not bind, awaiting %v", status.Awaiting)
	}

	holdUntilBound(t, capture, input, now, interval, ButtonSouth)
	if status := capture.Status(); status.Awaiting != ActionJump {
		t.Fatalf("sustained hold should bind nail, awaiting %v", status.Awaiting)
	}
}

func TestCapturePreHeldButtonNeedsRepress(t *testing.T) {
	capture, input := testCapture(t)
	now := time.Now()
	interval := 16 * time.Millisecond

	// Button already down on the very first sample: not a transition.
	for i := 0; i < 10; i++ {
		input.set(now, ButtonSouth)
		if _, err := capture.step(now); err != nil {
			t.Fatalf("step() error = %v", err)
		}
		now = now.Add(interval)
	}
	if status := capture.Status(); status.Awaiting != ActionNail {
		t.Fatalf("pre-held button must not bind, awaiting %v", status.Awaiting)
	}

	now = releaseAll(t, capture, input, now)
	holdUntilBound(t, capture, input, now, interval, ButtonSouth)
	if status := capture.Status(); status.Awaiting != ActionJump {
		t.Fatalf("re-press should bind, awaiting %v", status.Awaiting)
	}
}

func TestCaptureIgnoresAmbiguousSimultaneousPress(t *testing.T) {
	capture, input := testCapture(t)
	now := time.Now()
	interval := 16 * time.Millisecond

	now = releaseAll(t, capture, input, now)

	// Two new buttons in the same sample: ambiguous, no candidate.
	for i := 0; i < 10; i++ {
		input.mu.Lock()
		input.held = HoldSet{ButtonSouth: {}, ButtonEast: {}}
		input.at = now
		input.mu.Unlock()
		if _, err := capture.step(now); err != nil {
			t.Fatalf("step() error = %v", err)
		}
		now = now.Add(interval)
	}
	if status := capture.Status(); status.Awaiting != ActionNail {
		t.Fatalf("ambiguous press must not bind, awaiting %v", status.Awaiting)
	}
}

func TestCaptureTimesOut(t *testing.T) {
	capture, input := testCapture(t)
	now := time.Now()

	input.set(now)
	if _, err := capture.step(now); err != nil {
		t.Fatalf("step() error = %v", err)
	}

	now = now.Add(captureConfig().Timeout + time.Millisecond)
	input.set(now)
	finished, err := capture.step(now)
	if !finished {
		t.Fatalf("expected session to finish on timeout")
	}
	if !errors.Is(err, ErrCaptureTimedOut) {
		t.Fatalf("step() error = %v, want ErrCaptureTimedOut", err)
	}
	status := capture.Status()
	if !status.Done || !status.TimedOut {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestCaptureBindingResetsTimeout(t *testing.T) {
	capture, input := testCapture(t)
	cfg := captureConfig()
	now := time.Now()

	now = releaseAll(t, capture, input, now)

	// Bind nail just before the deadline would hit.
	now = now.Add(cfg.Timeout - 500*time.Millisecond)
	now = holdUntilBound(t, capture, input, now, 16*time.Millisecond, ButtonSouth)

	// Well past the original deadline but within the refreshed one.
	now = now.Add(cfg.Timeout / 2)
	input.set(now)
	finished, err := capture.step(now)
	if finished || err != nil {
		t.Fatalf("session ended early: finished=%v err=%v", finished, err)
	}
}

func TestMappingValidateRejectsReuse(t *testing.T) {
	if _, err := NewMapping(ButtonSouth, ButtonSouth, ButtonWest); !errors.Is(err, ErrMappingConflict) {
		t.Fatalf("NewMapping() error = %v, want ErrMappingConflict", err)
	}
	var partial Mapping
	partial.Bind(ActionNail, ButtonSouth)
	if err := partial.Validate(); !errors.Is(err, ErrMappingIncomplete) {
		t.Fatalf("Validate() error = %v, want ErrMappingIncomplete", err)
	}
}
