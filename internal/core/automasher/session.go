package automasher

import (
	"context"
	"errors"
	"sync"
)

// Session is the process-scoped surface the UI and CLI talk to: the active
// mapping, the engine suspend handshake and capture-session bookkeeping.
// Capture mode and mash mode are mutually exclusive; BeginCapture suspends
// the engine for the duration of the session.
type Session struct {
	engine *Engine
	input  InputSource
	logger Logger

	mu            sync.Mutex
	mapping       Mapping
	hasMapping    bool
	capture       *Capture
	captureCancel context.CancelFunc
	captureDone   chan struct{}
	lastStatus    CaptureStatus
	persist       func(Mapping)
}

func NewSession(engine *Engine, input InputSource, logger Logger) (*Session, error) {
	if engine == nil {
		return nil, errors.New("engine is nil")
	}
	if input == nil {
		return nil, errors.New("input source is nil")
	}
	if logger == nil {
		return nil, errors.New("logger is nil")
	}
	return &Session{engine: engine, input: input, logger: logger}, nil
}

// OnMappingChange registers a callback invoked with every newly installed
// mapping, before the engine picks it up. Used to rebind the pad's output
// buttons and persist settings.
func (s *Session) OnMappingChange(fn func(Mapping)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persist = fn
}

// Mapping returns the active mapping, if one has been installed.
func (s *Session) Mapping() (Mapping, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping, s.hasMapping
}

// SetMapping validates and installs a mapping directly, bypassing capture.
func (s *Session) SetMapping(m Mapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.mapping = m
	s.hasMapping = true
	persist := s.persist
	s.mu.Unlock()

	if persist != nil {
		persist(m)
	}
	s.engine.SetMapping(m)
	return nil
}

// BeginCapture starts a capture session in the background. The engine is
// suspended until the session ends; on success the captured mapping replaces
// the previous one, on timeout the previous mapping is retained.
func (s *Session) BeginCapture(cfg CaptureConfig) error {
	s.mu.Lock()
	if s.capture != nil {
		s.mu.Unlock()
		return ErrCaptureActive
	}

	capture, err := NewCapture(cfg, s.input, s.logger)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.capture = capture
	s.captureCancel = cancel
	s.captureDone = done
	s.mu.Unlock()

	// Restore whatever the operator had set, not a blanket resume: a
	// suspension toggled before the capture must survive it.
	wasSuspended := s.engine.Suspended()
	s.engine.SetSuspended(true)
	s.logger.Info("Capture started; engine suspended")

	go func() {
		defer close(done)
		mapping, err := capture.Run(ctx)

		s.mu.Lock()
		s.lastStatus = capture.Status()
		s.capture = nil
		s.captureCancel = nil
		s.mu.Unlock()

		switch {
		case err == nil:
			if installErr := s.SetMapping(mapping); installErr != nil {
				s.logger.Error("Captured mapping rejected", "err", installErr)
			} else {
				s.logger.Info("Capture complete", "mapping", describeMapping(mapping))
			}
		case errors.Is(err, ErrCaptureTimedOut):
			s.logger.Warn("Capture timed out; previous mapping retained")
		case errors.Is(err, context.Canceled):
			s.logger.Info("Capture cancelled")
		default:
			s.logger.Error("Capture failed", "err", err)
		}

		s.engine.SetSuspended(wasSuspended)
	}()
	return nil
}

// CancelCapture aborts a running capture session, if any, and waits for the
// engine to be resumed.
func (s *Session) CancelCapture() {
	s.mu.Lock()
	cancel := s.captureCancel
	done := s.captureDone
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// CaptureStatus reports the running session, or the outcome of the most
// recent one.
func (s *Session) CaptureStatus() CaptureStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture != nil {
		return s.capture.Status()
	}
	return s.lastStatus
}

// CaptureActive reports whether a capture session is running.
func (s *Session) CaptureActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture != nil
}

func describeMapping(m Mapping) string {
	out := ""
	for i, a := range Actions() {
		if i > 0 {
			out += " "
		}
		b, _ := m.ButtonFor(a)
		out += a.String() + "=" + b.String()
	}
	return out
}
