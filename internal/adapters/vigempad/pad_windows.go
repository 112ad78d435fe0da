//go:build windows

package vigempad

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"masher/internal/core/automasher"
)

// vigemErrorNone is VIGEM_ERROR_NONE; all other values are failures.
const vigemErrorNone = 0x20000000

var (
	vigemDLL = syscall.NewLazyDLL("ViGEmClient.dll")

	procAlloc      = vigemDLL.NewProc("vigem_alloc")
	procFree       = vigemDLL.NewProc("vigem_free")
	procConnect    = vigemDLL.NewProc("vigem_connect")
	procDisconnect = vigemDLL.NewProc("vigem_disconnect")
	procX360Alloc  = vigemDLL.NewProc("vigem_target_x360_alloc")
	procTargetAdd  = vigemDLL.NewProc("vigem_target_add")
	procTargetRem  = vigemDLL.NewProc("vigem_target_remove")
	procTargetFree = vigemDLL.NewProc("vigem_target_free")
	procX360Update = vigemDLL.NewProc("vigem_target_x360_update")
)

// Pad owns one ViGEm client connection and one plugged Xbox 360 target.
// The handle pair is acquired once in New and released exactly once in
// Close, on every exit path.
type Pad struct {
	mu      sync.Mutex
	client  uintptr
	target  uintptr
	buttons [3]automasher.Button
	sent    automasher.PadState
	closed  bool
}

// New connects to the ViGEm bus and plugs in a virtual Xbox 360 pad.
// Failures wrap ErrDeviceUnavailable: a missing bus driver is terminal,
// not retryable.
func New(mapping automasher.Mapping) (*Pad, error) {
	if err := vigemDLL.Load(); err != nil {
		return nil, fmt.Errorf("%w: ViGEmClient.dll not found: %v", automasher.ErrDeviceUnavailable, err)
	}

	client, _, _ := procAlloc.Call()
	if client == 0 {
		return nil, fmt.Errorf("%w: vigem_alloc failed", automasher.ErrDeviceUnavailable)
	}
	if ret, _, _ := procConnect.Call(client); ret != vigemErrorNone {
		procFree.Call(client)
		return nil, fmt.Errorf("%w: vigem_connect returned 0x%08X", automasher.ErrDeviceUnavailable, ret)
	}

	target, _, _ := procX360Alloc.Call()
	if target == 0 {
		procDisconnect.Call(client)
		procFree.Call(client)
		return nil, fmt.Errorf("%w: vigem_target_x360_alloc failed", automasher.ErrDeviceUnavailable)
	}
	if ret, _, _ := procTargetAdd.Call(client, target); ret != vigemErrorNone {
		procTargetFree.Call(target)
		procDisconnect.Call(client)
		procFree.Call(client)
		return nil, fmt.Errorf("%w: vigem_target_add returned 0x%08X", automasher.ErrDeviceUnavailable, ret)
	}

	return &Pad{client: client, target: target, buttons: mapping.Buttons()}, nil
}

// SetButtons redirects the three action slots to new physical codes.
func (p *Pad) SetButtons(buttons [3]automasher.Button) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sent != (automasher.PadState{}) {
		if err := p.updateLocked(automasher.PadState{}); err != nil {
			return err
		}
		p.sent = automasher.PadState{}
	}
	p.buttons = buttons
	return nil
}

func (p *Pad) Update(state automasher.PadState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return automasher.ErrDeviceUnavailable
	}
	if state == p.sent {
		return nil
	}
	if err := p.updateLocked(state); err != nil {
		return err
	}
	p.sent = state
	return nil
}

func (p *Pad) updateLocked(state automasher.PadState) error {
	report := buildReport(p.buttons, state)
	ret, _, _ := procX360Update.Call(p.client, p.target, uintptr(unsafe.Pointer(&report)))
	if ret != vigemErrorNone {
		return fmt.Errorf("%w: vigem_target_x360_update returned 0x%08X", automasher.ErrDeviceUnavailable, ret)
	}
	return nil
}

func (p *Pad) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	// Best-effort neutral report before unplugging.
	report := xusbReport{}
	procX360Update.Call(p.client, p.target, uintptr(unsafe.Pointer(&report)))

	procTargetRem.Call(p.client, p.target)
	procTargetFree.Call(p.target)
	procDisconnect.Call(p.client)
	procFree.Call(p.client)
	return nil
}
