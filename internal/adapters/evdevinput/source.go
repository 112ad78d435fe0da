//go:build linux

// Package evdevinput reads physical gamepad button state from Linux evdev
// devices and exposes it as poll-friendly hold snapshots.
package evdevinput

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"masher/internal/core/automasher"

	evdev "github.com/holoplot/go-evdev"
)

// triggerThreshold is the analog travel beyond which a trigger pull counts
// as a held digital button.
const triggerThreshold = 64

// Source aggregates one or more evdev gamepad devices into a single hold
// set. Background read loops keep the set current; Sample never blocks.
type Source struct {
	devices []*evdev.InputDevice

	mu   sync.Mutex
	held map[automasher.Button]struct{}
	last time.Time

	stopCh    chan struct{}
	stopOnce  sync.Once
	readersWG sync.WaitGroup
}

// Open opens the device at devicePath, or every gamepad-capable device when
// devicePath is empty, and starts the read loops.
func Open(devicePath string, logger automasher.Logger) (*Source, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	devices, err := openSourceDevices(devicePath)
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		name, _ := dev.Name()
		logger.Info("Using gamepad device", "path", dev.Path(), "name", name)
	}

	s := &Source{
		devices: devices,
		held:    make(map[automasher.Button]struct{}),
		last:    time.Now(),
		stopCh:  make(chan struct{}),
	}
	for _, dev := range devices {
		s.readersWG.Add(1)
		go s.readLoop(dev, logger)
	}
	return s, nil
}

// Sample returns the current hold set. At reflects source liveness: it is
// refreshed by every healthy pass of the read loops, not only by events.
func (s *Source) Sample() (automasher.HoldSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := make(automasher.HoldSet, len(s.held))
	for b := range s.held {
		held[b] = struct{}{}
	}
	return automasher.HoldSample{Held: held, At: s.last}, nil
}

func (s *Source) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		for _, dev := range s.devices {
			_ = dev.Close()
		}
		s.readersWG.Wait()
	})
}

func (s *Source) readLoop(dev *evdev.InputDevice, logger automasher.Logger) {
	defer s.readersWG.Done()

	path := dev.Path()
	for {
		events, err := dev.ReadSlice(64)
		if err != nil {
			if s.stopped() || isDeviceClosedError(err) {
				return
			}
			if isWouldBlockError(err) {
				s.touch()
				if !s.sleepWithStop(10 * time.Millisecond) {
					return
				}
				continue
			}
			logger.Warn("Read failed", "path", path, "err", err)
			if !s.sleepWithStop(100 * time.Millisecond) {
				return
			}
			continue
		}

		s.mu.Lock()
		for _, event := range events {
			s.applyLocked(uint16(event.Type), uint16(event.Code), event.Value)
		}
		s.last = time.Now()
		s.mu.Unlock()
	}
}

// applyLocked folds one input event into the hold set. Key events map
// directly; trigger axes become the BTN_TL2/BTN_TR2 digital codes.
func (s *Source) applyLocked(eventType, code uint16, value int32) {
	switch evdev.EvType(eventType) {
	case evdev.EV_KEY:
		b := automasher.Button(code)
		switch value {
		case 1:
			s.held[b] = struct{}{}
		case 0:
			delete(s.held, b)
		}
	case evdev.EV_ABS:
		var b automasher.Button
		switch evdev.EvCode(code) {
		case evdev.ABS_Z:
			b = automasher.ButtonTriggerL
		case evdev.ABS_RZ:
			b = automasher.ButtonTriggerR
		default:
			return
		}
		if value > triggerThreshold {
			s.held[b] = struct{}{}
		} else {
			delete(s.held, b)
		}
	}
}

func (s *Source) touch() {
	s.mu.Lock()
	s.last = time.Now()
	s.mu.Unlock()
}

func (s *Source) stopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *Source) sleepWithStop(duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-s.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

func isDeviceClosedError(err error) bool {
	return errors.Is(err, syscall.EBADF) || errors.Is(err, syscall.ENODEV)
}

func isWouldBlockError(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}
