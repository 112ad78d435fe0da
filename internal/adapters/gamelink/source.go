// Package gamelink receives the game's textbox state from the companion
// mod, which publishes line-delimited JSON reports on a local TCP port.
// The source keeps only the latest report and its arrival time; the engine
// decides how much staleness to trust.
package gamelink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"masher/internal/core/automasher"
)

const (
	dialTimeout    = 2 * time.Second
	redialInterval = time.Second
	readDeadline   = 5 * time.Second
)

// report is one line from the mod, e.g. {"textbox":true}.
type report struct {
	Textbox bool `json:"textbox"`
}

// Source maintains a reconnecting client connection to the mod endpoint.
type Source struct {
	addr   string
	logger automasher.Logger

	mu     sync.Mutex
	active bool
	at     time.Time
	conn   net.Conn

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// Open starts the reader. A missing or not-yet-listening endpoint is not an
// error: the source simply stays stale (and the engine stays deactivated)
// until the mod comes up.
func Open(addr string, logger automasher.Logger) (*Source, error) {
	if addr == "" {
		return nil, fmt.Errorf("gamelink address is empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	s := &Source{
		addr:   addr,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Current returns the latest textbox report. At is its arrival time, so a
// dead connection ages out naturally.
func (s *Source) Current() (automasher.TextboxSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return automasher.TextboxSample{Active: s.active, At: s.at}, nil
}

func (s *Source) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.mu.Unlock()
		<-s.doneCh
	})
}

func (s *Source) run() {
	defer close(s.doneCh)

	for {
		conn, err := net.DialTimeout("tcp", s.addr, dialTimeout)
		if err != nil {
			if !s.sleepWithStop(redialInterval) {
				return
			}
			continue
		}
		s.logger.Info("Connected to game link", "addr", s.addr)

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		s.readLines(conn)

		s.mu.Lock()
		s.conn = nil
		// A broken link means the textbox state is unknown; mark it
		// inactive rather than letting the last report linger.
		s.active = false
		s.mu.Unlock()
		_ = conn.Close()

		if s.stopped() {
			return
		}
		s.logger.Warn("Game link lost; reconnecting", "addr", s.addr)
		if !s.sleepWithStop(redialInterval) {
			return
		}
	}
}

func (s *Source) readLines(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		if !scanner.Scan() {
			return
		}
		active, err := parseReport(scanner.Bytes())
		if err != nil {
			s.logger.Warn("Bad game link report", "err", err)
			continue
		}
		s.mu.Lock()
		s.active = active
		s.at = time.Now()
		s.mu.Unlock()
	}
}

func parseReport(line []byte) (bool, error) {
	var r report
	if err := json.Unmarshal(line, &r); err != nil {
		return false, fmt.Errorf("failed to parse report %q: %w", line, err)
	}
	return r.Textbox, nil
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
