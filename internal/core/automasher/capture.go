package automasher

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type CaptureConfig struct {
	// Debounce is the continuous hold required before a button is accepted.
	Debounce time.Duration
	// Timeout aborts the session when no action has been bound for this long.
	Timeout time.Duration
	// PollInterval is the sampling cadence of Run.
	PollInterval time.Duration
}

const (
	DefaultCaptureDebounce = 250 * time.Millisecond
	DefaultCaptureTimeout  = 10 * time.Second
)

func (c *CaptureConfig) applyDefaults() {
	if c.Debounce <= 0 {
		c.Debounce = DefaultCaptureDebounce
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultCaptureTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
}

// CaptureStatus describes a capture session to status surfaces.
type CaptureStatus struct {
	// Awaiting is the action currently being bound. Meaningless once Done.
	Awaiting Action
	Done     bool
	TimedOut bool
	// Mapping is the captured result, valid only when Done && !TimedOut.
	Mapping Mapping
}

// Capture binds the three actions to buttons, in order, by watching which
// new button the operator holds. Each session starts from a zero mapping;
// nothing leaks from a previous session.
type Capture struct {
	cfg    CaptureConfig
	input  InputSource
	logger Logger

	mu          sync.Mutex
	mapping     Mapping
	next        int
	prev        HoldSet
	sampled     bool
	candidate   Button
	candidateOk bool
	heldSince   time.Time
	deadline    time.Time
	done        bool
	timedOut    bool
}

func NewCapture(cfg CaptureConfig, input InputSource, logger Logger) (*Capture, error) {
	if input == nil {
		return nil, fmt.Errorf("input source is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	cfg.applyDefaults()
	return &Capture{cfg: cfg, input: input, logger: logger}, nil
}

func (c *Capture) Status() CaptureStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := CaptureStatus{
		Done:     c.done,
		TimedOut: c.timedOut,
	}
	if c.next < actionCount {
		status.Awaiting = Actions()[c.next]
	}
	if c.done && !c.timedOut {
		status.Mapping = c.mapping
	}
	return status
}

// Run drives the session at the configured cadence until it completes,
// times out, or ctx is cancelled.
func (c *Capture) Run(ctx context.Context) (Mapping, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Mapping{}, ctx.Err()
		case now := <-ticker.C:
			finished, err := c.step(now)
			if err != nil {
				return Mapping{}, err
			}
			if finished {
				return c.Status().Mapping, nil
			}
		}
	}
}

// step advances the session by one sample. It returns true once the session
// has finished, successfully or not.
func (c *Capture) step(now time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		if c.timedOut {
			return true, ErrCaptureTimedOut
		}
		return true, nil
	}
	if c.deadline.IsZero() {
		c.deadline = now.Add(c.cfg.Timeout)
	}

	held := c.sampleLocked()

	if c.candidateOk {
		switch {
		case !held.Has(c.candidate):
			c.candidateOk = false
		case now.Sub(c.heldSince) >= c.cfg.Debounce:
			action := Actions()[c.next]
			c.mapping.Bind(action, c.candidate)
			c.logger.Info("Bound action", "action", action.String(), "button", c.candidate.String())
			c.next++
			c.candidateOk = false
			c.deadline = now.Add(c.cfg.Timeout)
			if c.next == actionCount {
				if err := c.mapping.Validate(); err != nil {
					c.done = true
					return true, err
				}
				c.done = true
				return true, nil
			}
		}
	}

	// The first sample only establishes the baseline: buttons already held
	// when the session starts must be released and pressed again.
	if !c.candidateOk && c.sampled {
		if b, ok := c.newHeldButton(held); ok {
			c.candidate = b
			c.heldSince = now
			c.candidateOk = true
		}
	}
	c.prev = held
	c.sampled = true

	if now.After(c.deadline) {
		c.done = true
		c.timedOut = true
		return true, ErrCaptureTimedOut
	}
	return false, nil
}

// newHeldButton finds the button to start debouncing: exactly one button
// that was not held last sample and is not already bound. Buttons reused
// from earlier in the session are ignored, not errors.
func (c *Capture) newHeldButton(held HoldSet) (Button, bool) {
	var found Button
	count := 0
	for b := range held {
		if c.prev.Has(b) {
			continue
		}
		if c.mapping.Uses(b) {
			continue
		}
		found = b
		count++
	}
	if count != 1 {
		return 0, false
	}
	return found, true
}

func (c *Capture) sampleLocked() HoldSet {
	sample, err := c.input.Sample()
	if err != nil {
		c.logger.Warn("Input sample failed during capture", "err", err)
		return nil
	}
	return sample.Held
}
