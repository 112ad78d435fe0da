//go:build linux

// Package x11hotkey grabs a global keyboard shortcut on X11 so the operator
// can suspend or resume mashing without leaving the game window.
package x11hotkey

import (
	"fmt"
	"sync"

	"masher/internal/core/automasher"

	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

type Hotkey struct {
	xu     *xgbutil.XUtil
	logger automasher.Logger

	stopOnce sync.Once
	doneCh   chan struct{}
}

// Listen grabs combo (e.g. "Mod4-F8") on the root window and invokes
// onToggle on every press. The grab is global: it fires regardless of
// which window has focus.
func Listen(combo string, onToggle func(), logger automasher.Logger) (*Hotkey, error) {
	if combo == "" {
		return nil, fmt.Errorf("hotkey combo is empty")
	}
	if onToggle == nil {
		return nil, fmt.Errorf("toggle callback is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to open X11 connection: %w", err)
	}
	keybind.Initialize(xu)

	err = keybind.KeyPressFun(func(xu *xgbutil.XUtil, event xevent.KeyPressEvent) {
		logger.Debug("Suspend hotkey pressed", "combo", combo)
		onToggle()
	}).Connect(xu, xu.RootWin(), combo, true)
	if err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("failed to grab hotkey %q: %w", combo, err)
	}

	h := &Hotkey{
		xu:     xu,
		logger: logger,
		doneCh: make(chan struct{}),
	}
	go h.eventLoop()

	logger.Info("Suspend hotkey registered", "combo", combo)
	return h, nil
}

func (h *Hotkey) eventLoop() {
	defer close(h.doneCh)
	xevent.Main(h.xu)
}

func (h *Hotkey) Stop() {
	h.stopOnce.Do(func() {
		xevent.Quit(h.xu)
		keybind.Detach(h.xu, h.xu.RootWin())
		h.xu.Conn().Close()
		<-h.doneCh
	})
}
