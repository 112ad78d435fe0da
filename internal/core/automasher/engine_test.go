package automasher

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeInput struct {
	mu   sync.Mutex
	held HoldSet
	at   time.Time
	err  error
}

func (f *fakeInput) Sample() (HoldSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return HoldSample{}, f.err
	}
	held := make(HoldSet, len(f.held))
	for b := range f.held {
		held[b] = struct{}{}
	}
	return HoldSample{Held: held, At: f.at}, nil
}

func (f *fakeInput) set(at time.Time, buttons ...Button) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = make(HoldSet, len(buttons))
	for _, b := range buttons {
		f.held[b] = struct{}{}
	}
	f.at = at
}

type fakeTextbox struct {
	mu     sync.Mutex
	active bool
	at     time.Time
	err    error
}

func (f *fakeTextbox) Current() (TextboxSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return TextboxSample{}, f.err
	}
	return TextboxSample{Active: f.active, At: f.at}, nil
}

func (f *fakeTextbox) set(active bool, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = active
	f.at = at
}

type recordingPad struct {
	mu      sync.Mutex
	updates []PadState
	failErr error
	closed  bool
}

func (r *recordingPad) Update(state PadState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	r.updates = append(r.updates, state)
	return nil
}

func (r *recordingPad) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingPad) snapshot() []PadState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PadState, len(r.updates))
	copy(out, r.updates)
	return out
}

func (r *recordingPad) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recordingPad) setFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failErr = err
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

var (
	allPressed  = PadState{true, true, true}
	allReleased = PadState{}
)

func testMapping(t *testing.T) Mapping {
	t.Helper()
	m, err := NewMapping(ButtonSouth, ButtonEast, ButtonWest)
	if err != nil {
		t.Fatalf("NewMapping() error = %v", err)
	}
	return m
}

func testEngine(t *testing.T, cfg EngineConfig, m Mapping) (*Engine, *fakeInput, *fakeTextbox, *recordingPad) {
	t.Helper()
	input := &fakeInput{}
	textbox := &fakeTextbox{}
	pad := &recordingPad{}
	engine, err := NewEngine(cfg, m, input, textbox, pad, noopLogger{})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine, input, textbox, pad
}

func timingConfig() EngineConfig {
	return EngineConfig{
		PollInterval:    16 * time.Millisecond,
		PressDuration:   50 * time.Millisecond,
		ReleaseDuration: 50 * time.Millisecond,
		SignalTimeout:   500 * time.Millisecond,
	}
}

// tickAll refreshes both sources at now and runs one engine step.
func tickAll(e *Engine, input *fakeInput, textbox *fakeTextbox, now time.Time, active bool, held ...Button) {
	input.set(now, held...)
	textbox.set(active, now)
	e.step(now)
}

func TestFirstBatchAfterActivationIsPressed(t *testing.T) {
	engine, input, textbox, pad := testEngine(t, timingConfig(), testMapping(t))
	now := time.Now()

	tickAll(engine, input, textbox, now, true, ButtonSouth, ButtonEast, ButtonWest)

	updates := pad.snapshot()
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0] != allPressed {
		t.Fatalf("first batch = %v, want all pressed", updates[0])
	}
	if engine.State() != StateMashing {
		t.Fatalf("State() = %v, want mashing", engine.State())
	}
}

func TestDutyCycleAlternatesWithinTolerance(t *testing.T) {
	cfg := timingConfig()
	engine, input, textbox, pad := testEngine(t, cfg, testMapping(t))
	start := time.Now()

	// Hold the predicate for a full second of synthetic ticks.
	var pressTimes []time.Duration
	last := len(pad.snapshot())
	for elapsed := time.Duration(0); elapsed <= time.Second; elapsed += cfg.PollInterval {
		now := start.Add(elapsed)
		tickAll(engine, input, textbox, now, true, ButtonSouth, ButtonEast, ButtonWest)
		updates := pad.snapshot()
		for _, u := range updates[last:] {
			if u == allPressed {
				pressTimes = append(pressTimes, elapsed)
			}
		}
		last = len(updates)
	}

	if len(pressTimes) < 2 {
		t.Fatalf("expected at least 2 press batches, got %d", len(pressTimes))
	}
	period := cfg.PressDuration + cfg.ReleaseDuration
	for i := 1; i < len(pressTimes); i++ {
		gap := pressTimes[i] - pressTimes[i-1]
		if gap < period-cfg.PollInterval || gap > period+cfg.PollInterval {
			t.Fatalf("press-to-press gap #%d = %v, want %v within one poll interval", i, gap, period)
		}
	}

	// Batches strictly alternate pressed/released.
	updates := pad.snapshot()
	for i := 1; i < len(updates); i++ {
		if updates[i] == updates[i-1] {
			t.Fatalf("consecutive identical batches at %d: %v", i, updates[i])
		}
	}
}

func TestMidMashHoldReleaseForcesReleaseSameTick(t *testing.T) {
	cfg := timingConfig()
	engine, input, textbox, pad := testEngine(t, cfg, testMapping(t))
	start := time.Now()

	// Drive three ticks of mashing (still inside the first press phase),
	// then drop one button mid-press.
	now := start
	for i := 0; i < 3; i++ {
		tickAll(engine, input, textbox, now, true, ButtonSouth, ButtonEast, ButtonWest)
		now = now.Add(cfg.PollInterval)
	}
	updates := pad.snapshot()
	if updates[len(updates)-1] != allPressed {
		t.Fatalf("expected to be mid-press before release, got %v", updates[len(updates)-1])
	}

	tickAll(engine, input, textbox, now, true, ButtonSouth, ButtonWest) // ButtonEast released

	updates = pad.snapshot()
	if updates[len(updates)-1] != allReleased {
		t.Fatalf("expected forced release batch, got %v", updates[len(updates)-1])
	}
	if engine.State() != StateArmed {
		t.Fatalf("State() = %v, want armed", engine.State())
	}
}

func TestTextboxCloseForcesReleaseSameTick(t *testing.T) {
	cfg := timingConfig()
	engine, input, textbox, pad := testEngine(t, cfg, testMapping(t))
	now := time.Now()

	tickAll(engine, input, textbox, now, true, ButtonSouth, ButtonEast, ButtonWest)
	now = now.Add(cfg.PollInterval)
	tickAll(engine, input, textbox, now, false, ButtonSouth, ButtonEast, ButtonWest)

	updates := pad.snapshot()
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[1] != allReleased {
		t.Fatalf("expected release batch after textbox close, got %v", updates[1])
	}
}

func TestStaleSignalsDeactivate(t *testing.T) {
	cfg := timingConfig()
	engine, input, textbox, pad := testEngine(t, cfg, testMapping(t))
	now := time.Now()

	tickAll(engine, input, textbox, now, true, ButtonSouth, ButtonEast, ButtonWest)
	if len(pad.snapshot()) != 1 {
		t.Fatalf("expected activation first")
	}

	// Sources stop updating: stamps frozen while the clock advances past
	// the freshness timeout.
	now = now.Add(cfg.SignalTimeout + cfg.PollInterval)
	engine.step(now)

	updates := pad.snapshot()
	if updates[len(updates)-1] != allReleased {
		t.Fatalf("expected release once signals went stale, got %v", updates[len(updates)-1])
	}
}

func TestInputErrorTreatedAsEmptyHold(t *testing.T) {
	cfg := timingConfig()
	engine, input, textbox, pad := testEngine(t, cfg, testMapping(t))
	now := time.Now()

	tickAll(engine, input, textbox, now, true, ButtonSouth, ButtonEast, ButtonWest)

	now = now.Add(cfg.PollInterval)
	input.mu.Lock()
	input.err = errors.New("device went away")
	input.mu.Unlock()
	textbox.set(true, now)
	engine.step(now)

	updates := pad.snapshot()
	if updates[len(updates)-1] != allReleased {
		t.Fatalf("expected release on input failure, got %v", updates[len(updates)-1])
	}
}

func TestIncompleteMappingStaysIdle(t *testing.T) {
	var partial Mapping
	partial.Bind(ActionNail, ButtonSouth)

	engine, input, textbox, pad := testEngine(t, timingConfig(), partial)
	now := time.Now()

	tickAll(engine, input, textbox, now, true, ButtonSouth, ButtonEast, ButtonWest)

	if len(pad.snapshot()) != 0 {
		t.Fatalf("expected no output with incomplete mapping")
	}
	if engine.State() != StateIdle {
		t.Fatalf("State() = %v, want idle", engine.State())
	}
}

func TestSuspendedEngineForcesReleaseAndStaysQuiet(t *testing.T) {
	cfg := timingConfig()
	engine, input, textbox, pad := testEngine(t, cfg, testMapping(t))
	now := time.Now()

	tickAll(engine, input, textbox, now, true, ButtonSouth, ButtonEast, ButtonWest)
	engine.SetSuspended(true)

	now = now.Add(cfg.PollInterval)
	tickAll(engine, input, textbox, now, true, ButtonSouth, ButtonEast, ButtonWest)

	updates := pad.snapshot()
	if updates[len(updates)-1] != allReleased {
		t.Fatalf("expected release on suspension, got %v", updates[len(updates)-1])
	}
	count := len(updates)

	for i := 0; i < 10; i++ {
		now = now.Add(cfg.PollInterval)
		tickAll(engine, input, textbox, now, true, ButtonSouth, ButtonEast, ButtonWest)
	}
	if len(pad.snapshot()) != count {
		t.Fatalf("expected no output while suspended")
	}
}

func TestDeviceFailureIsTerminalAndReportedOnce(t *testing.T) {
	cfg := timingConfig()
	engine, input, textbox, pad := testEngine(t, cfg, testMapping(t))
	now := time.Now()

	pad.setFail(errors.New("target unplugged"))
	tickAll(engine, input, textbox, now, true, ButtonSouth, ButtonEast, ButtonWest)

	select {
	case err := <-engine.Failures():
		if !errors.Is(err, ErrDeviceUnavailable) {
			t.Fatalf("failure = %v, want ErrDeviceUnavailable", err)
		}
	default:
		t.Fatalf("expected a failure report")
	}
	if !errors.Is(engine.Err(), ErrDeviceUnavailable) {
		t.Fatalf("Err() = %v, want ErrDeviceUnavailable", engine.Err())
	}
	if engine.State() != StateDeviceLost {
		t.Fatalf("State() = %v, want device lost", engine.State())
	}

	// Further ticks stay silent and report nothing more.
	pad.setFail(nil)
	for i := 0; i < 5; i++ {
		now = now.Add(cfg.PollInterval)
		tickAll(engine, input, textbox, now, true, ButtonSouth, ButtonEast, ButtonWest)
	}
	if len(pad.snapshot()) != 0 {
		t.Fatalf("expected no updates after terminal failure")
	}
	select {
	case err := <-engine.Failures():
		t.Fatalf("unexpected second failure report: %v", err)
	default:
	}
}

func TestStopReleasesBeforeClosingPad(t *testing.T) {
	cfg := timingConfig()
	engine, input, textbox, pad := testEngine(t, cfg, testMapping(t))
	now := time.Now()

	tickAll(engine, input, textbox, now, true, ButtonSouth, ButtonEast, ButtonWest)
	updates := pad.snapshot()
	if updates[len(updates)-1] != allPressed {
		t.Fatalf("expected to stop mid-press")
	}

	engine.Stop()

	if !pad.isClosed() {
		t.Fatalf("expected pad to be closed")
	}
	updates = pad.snapshot()
	if updates[len(updates)-1] != allReleased {
		t.Fatalf("expected a release batch before close, got %v", updates[len(updates)-1])
	}
}

func TestRunLoopStopIsIdempotent(t *testing.T) {
	cfg := timingConfig()
	cfg.PollInterval = 2 * time.Millisecond
	engine, _, _, pad := testEngine(t, cfg, testMapping(t))

	engine.Start()
	time.Sleep(20 * time.Millisecond)
	engine.Stop()
	engine.Stop()

	if !pad.isClosed() {
		t.Fatalf("expected pad to be closed after Stop")
	}
}

func TestSetDutyCycleTakesEffectNextPhase(t *testing.T) {
	cfg := timingConfig()
	engine, input, textbox, pad := testEngine(t, cfg, testMapping(t))
	start := time.Now()

	// First press phase runs on the original 50ms timing.
	now := start
	tickAll(engine, input, textbox, now, true, ButtonSouth, ButtonEast, ButtonWest)

	if err := engine.SetDutyCycle(100*time.Millisecond, 20*time.Millisecond); err != nil {
		t.Fatalf("SetDutyCycle() error = %v", err)
	}
	if err := engine.SetDutyCycle(0, 20*time.Millisecond); err == nil {
		t.Fatalf("expected error for zero press duration")
	}

	// Walk far enough to cover the old press phase, the new release phase
	// and a chunk of the new press phase.
	var releaseAt, repressAt time.Duration
	for elapsed := cfg.PollInterval; elapsed <= 300*time.Millisecond; elapsed += cfg.PollInterval {
		before := len(pad.snapshot())
		tickAll(engine, input, textbox, start.Add(elapsed), true, ButtonSouth, ButtonEast, ButtonWest)
		updates := pad.snapshot()
		if len(updates) == before {
			continue
		}
		switch updates[len(updates)-1] {
		case allReleased:
			if releaseAt == 0 {
				releaseAt = elapsed
			}
		case allPressed:
			if releaseAt != 0 && repressAt == 0 {
				repressAt = elapsed
			}
		}
	}

	if releaseAt == 0 || repressAt == 0 {
		t.Fatalf("expected a release and a re-press, got releaseAt=%v repressAt=%v", releaseAt, repressAt)
	}
	// The release phase after the change runs on the new 20ms timing.
	if gap := repressAt - releaseAt; gap > 20*time.Millisecond+cfg.PollInterval {
		t.Fatalf("release phase lasted %v, want ~20ms", gap)
	}
}

func TestSetMappingReplacesButtons(t *testing.T) {
	cfg := timingConfig()
	engine, input, textbox, pad := testEngine(t, cfg, testMapping(t))
	now := time.Now()

	remapped, err := NewMapping(ButtonNorth, ButtonBumperL, ButtonBumperR)
	if err != nil {
		t.Fatalf("NewMapping() error = %v", err)
	}
	engine.SetMapping(remapped)

	// Old chord no longer activates.
	tickAll(engine, input, textbox, now, true, ButtonSouth, ButtonEast, ButtonWest)
	if len(pad.snapshot()) != 0 {
		t.Fatalf("old chord should not activate after remap")
	}

	now = now.Add(cfg.PollInterval)
	tickAll(engine, input, textbox, now, true, ButtonNorth, ButtonBumperL, ButtonBumperR)
	if len(pad.snapshot()) != 1 {
		t.Fatalf("new chord should activate after remap")
	}
}
