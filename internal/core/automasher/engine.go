package automasher

import (
	"fmt"
	"sync"
	"time"
)

type EngineConfig struct {
	// PollInterval is the cadence at which both signal sources are sampled
	// and the duty cycle advances.
	PollInterval time.Duration
	// PressDuration and ReleaseDuration define the mash duty cycle.
	PressDuration   time.Duration
	ReleaseDuration time.Duration
	// SignalTimeout bounds signal staleness: a sample older than this is
	// treated as empty/inactive rather than trusted.
	SignalTimeout time.Duration
	// StartSuspended starts the engine with output disabled until
	// SetSuspended(false).
	StartSuspended bool
}

const (
	DefaultPollInterval    = 16 * time.Millisecond
	DefaultPressDuration   = 50 * time.Millisecond
	DefaultReleaseDuration = 50 * time.Millisecond
	DefaultSignalTimeout   = 500 * time.Millisecond
)

func (c *EngineConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PressDuration <= 0 {
		c.PressDuration = DefaultPressDuration
	}
	if c.ReleaseDuration <= 0 {
		c.ReleaseDuration = DefaultReleaseDuration
	}
	if c.SignalTimeout <= 0 {
		c.SignalTimeout = DefaultSignalTimeout
	}
}

// EngineState is a coarse view of the engine for status surfaces.
type EngineState int

const (
	// StateIdle: no complete mapping, or the engine is suspended.
	StateIdle EngineState = iota
	// StateArmed: ready, waiting for the hold + textbox predicate.
	StateArmed
	// StateMashing: actively duty-cycling the virtual pad.
	StateMashing
	// StateDeviceLost: terminal, the virtual pad rejected an update.
	StateDeviceLost
)

func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateMashing:
		return "mashing"
	case StateDeviceLost:
		return "device lost"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Engine fuses the physical hold state and the textbox signal into a
// duty-cycled batch stream on the virtual pad. It is the single writer to
// the pad: no other component may call Update.
type Engine struct {
	cfg     EngineConfig
	input   InputSource
	textbox TextboxSource
	pad     Pad
	logger  Logger

	mu        sync.Mutex
	mapping   Mapping
	suspended bool
	active    bool
	pressed   bool
	phaseEnd  time.Time
	padState  PadState
	failure   error

	failureCh chan error
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   bool
	stopOnce  sync.Once
}

func NewEngine(cfg EngineConfig, mapping Mapping, input InputSource, textbox TextboxSource, pad Pad, logger Logger) (*Engine, error) {
	if input == nil {
		return nil, fmt.Errorf("input source is nil")
	}
	if textbox == nil {
		return nil, fmt.Errorf("textbox source is nil")
	}
	if pad == nil {
		return nil, fmt.Errorf("pad is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	cfg.applyDefaults()

	return &Engine{
		cfg:       cfg,
		input:     input,
		textbox:   textbox,
		pad:       pad,
		logger:    logger,
		mapping:   mapping,
		suspended: cfg.StartSuspended,
		failureCh: make(chan error, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Start launches the tick loop. It may be called once.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()
	go e.run()
}

// Stop forces all actions released, closes the pad and waits for the loop.
// Safe to call more than once and without a prior Start.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.mu.Lock()
		started := e.started
		e.mu.Unlock()
		if started {
			<-e.doneCh
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		if e.failure == nil && e.padState != (PadState{}) {
			if err := e.pad.Update(PadState{}); err != nil {
				e.logger.Warn("Release on stop failed", "err", err)
			}
		}
		e.padState = PadState{}
		e.active = false
		if err := e.pad.Close(); err != nil {
			e.logger.Warn("Pad close failed", "err", err)
		}
	})
}

// Failures delivers the terminal device error, at most once.
func (e *Engine) Failures() <-chan error {
	return e.failureCh
}

// Err reports the terminal device failure, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failure
}

// SetDutyCycle adjusts the press/release timing while running. A phase
// already in progress finishes on its old deadline.
func (e *Engine) SetDutyCycle(press, release time.Duration) error {
	if press <= 0 {
		return fmt.Errorf("press duration must be positive, got %v", press)
	}
	if release <= 0 {
		return fmt.Errorf("release duration must be positive, got %v", release)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.PressDuration = press
	e.cfg.ReleaseDuration = release
	return nil
}

// DutyCycle reports the current press/release timing.
func (e *Engine) DutyCycle() (press, release time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.PressDuration, e.cfg.ReleaseDuration
}

func (e *Engine) SetMapping(m Mapping) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mapping = m
}

func (e *Engine) Mapping() Mapping {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mapping
}

// SetSuspended disables or re-enables output. While suspended the engine
// behaves as if the activation predicate were false, so any held state is
// released on the next tick.
func (e *Engine) SetSuspended(suspended bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.suspended = suspended
}

func (e *Engine) Suspended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.suspended
}

func (e *Engine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.failure != nil:
		return StateDeviceLost
	case e.suspended || !e.mapping.Complete():
		return StateIdle
	case e.active:
		return StateMashing
	default:
		return StateArmed
	}
}

func (e *Engine) run() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case now := <-ticker.C:
			e.step(now)
		}
	}
}

// step runs one tick: sample, recompute activation, advance the duty cycle
// and emit at most one batched pad update. Deactivation observed in a tick
// is reflected in that same tick's batch.
func (e *Engine) step(now time.Time) {
	hold := e.sampleHold(now)
	textbox := e.sampleTextbox(now)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failure != nil {
		return
	}

	active := !e.suspended && e.mapping.Complete() && textbox && e.allHeld(hold)

	if active && !e.active {
		// Fresh duty cycle: the release phase counts as already served so
		// the first batch is a press.
		e.pressed = false
		e.phaseEnd = now
	}

	var next PadState
	if active {
		if !now.Before(e.phaseEnd) {
			e.pressed = !e.pressed
			dur := e.cfg.ReleaseDuration
			if e.pressed {
				dur = e.cfg.PressDuration
			}
			// Advance from the old deadline so the cycle does not drift by
			// a tick per phase; resynchronize after a long stall.
			phaseEnd := e.phaseEnd.Add(dur)
			if phaseEnd.Before(now) {
				phaseEnd = now.Add(dur)
			}
			e.phaseEnd = phaseEnd
		}
		if e.pressed {
			next = PadState{true, true, true}
		}
	}

	if e.active != active {
		e.logger.Debug("Mash activation changed", "active", active)
	}
	e.active = active

	if next == e.padState {
		return
	}
	if err := e.pad.Update(next); err != nil {
		e.failure = fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		e.active = false
		e.logger.Error("Virtual pad update failed; stopping output", "err", err)
		select {
		case e.failureCh <- e.failure:
		default:
		}
		return
	}
	e.padState = next
}

func (e *Engine) allHeld(hold HoldSet) bool {
	for _, a := range Actions() {
		b, ok := e.mapping.ButtonFor(a)
		if !ok || !hold.Has(b) {
			return false
		}
	}
	return true
}

func (e *Engine) sampleHold(now time.Time) HoldSet {
	sample, err := e.input.Sample()
	if err != nil {
		e.logger.Warn("Input sample failed", "err", err)
		return nil
	}
	if now.Sub(sample.At) > e.cfg.SignalTimeout {
		return nil
	}
	return sample.Held
}

func (e *Engine) sampleTextbox(now time.Time) bool {
	sample, err := e.textbox.Current()
	if err != nil {
		e.logger.Warn("Textbox sample failed", "err", err)
		return false
	}
	if now.Sub(sample.At) > e.cfg.SignalTimeout {
		return false
	}
	return sample.Active
}
