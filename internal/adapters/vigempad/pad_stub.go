//go:build !windows

package vigempad

import (
	"fmt"

	"masher/internal/core/automasher"
)

type Pad struct{}

func New(mapping automasher.Mapping) (*Pad, error) {
	return nil, fmt.Errorf("vigem pad is only available on Windows")
}

func (p *Pad) SetButtons(buttons [3]automasher.Button) error {
	return fmt.Errorf("vigem pad is only available on Windows")
}

func (p *Pad) Update(state automasher.PadState) error {
	return automasher.ErrDeviceUnavailable
}

func (p *Pad) Close() error {
	return nil
}
