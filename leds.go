// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ap2link

import (
	"fmt"

	"github.com/ZaparooProject/go-ap2link/internal/frame"
)

// FrameLEDs drives the LED satellite by writing framed commands to its
// transport. Writes are fire-and-forget. Not safe for concurrent use.
type FrameLEDs struct {
	transport Transport
	buf       []byte
}

// NewFrameLEDs returns LEDs that write to t.
func NewFrameLEDs(t Transport) *FrameLEDs {
	return &FrameLEDs{
		transport: t,
		buf:       make([]byte, 0, frame.MaxFrameLength),
	}
}

// Send encodes and writes one command. Oversized payloads fail with
// ErrOversizedPayload before anything is written.
func (l *FrameLEDs) Send(cmd byte, payload ...byte) error {
	wire, err := frame.AppendFrame(l.buf[:0], cmd, payload)
	if err != nil {
		return err
	}
	l.buf = wire
	n, err := l.transport.Write(wire)
	if err != nil {
		return fmt.Errorf("led command 0x%02X: %w", cmd, err)
	}
	if n != len(wire) {
		return fmt.Errorf("led command 0x%02X: short write %d/%d: %w", cmd, n, len(wire), ErrTransportWrite)
	}
	return nil
}

// SetRendering implements LEDs
func (l *FrameLEDs) SetRendering(enabled bool) error {
	if enabled {
		return l.Send(CmdLEDOn)
	}
	return l.Send(CmdLEDOff)
}

// Blink implements LEDs
func (l *FrameLEDs) Blink(row, col uint8, c Color, count, duration uint8) error {
	return l.Send(CmdLEDKeyBlink, row, col, c.Blue, c.Green, c.Red, c.Alpha, count, duration)
}

// ForwardKeypress implements LEDs
func (l *FrameLEDs) ForwardKeypress(row, col uint8) error {
	return l.Send(CmdLEDKeyDown, row, col)
}

// NextProfile implements LEDs
func (l *FrameLEDs) NextProfile() error { return l.Send(CmdLEDNextProfile) }

// PrevProfile implements LEDs
func (l *FrameLEDs) PrevProfile() error { return l.Send(CmdLEDPrevProfile) }

// SetProfile selects a profile by index.
func (l *FrameLEDs) SetProfile(profile uint8) error { return l.Send(CmdLEDSetProfile, profile) }

// NextIntensity implements LEDs
func (l *FrameLEDs) NextIntensity() error { return l.Send(CmdLEDNextIntensity) }

// NextAnimationSpeed implements LEDs
func (l *FrameLEDs) NextAnimationSpeed() error { return l.Send(CmdLEDNextAnimationSpeed) }

// SetForegroundColor paints every key with c until reset.
func (l *FrameLEDs) SetForegroundColor(c Color) error {
	return l.Send(CmdLEDSetForegroundColor, c.Blue, c.Green, c.Red, c.Alpha)
}

// ResetForegroundColor implements LEDs
func (l *FrameLEDs) ResetForegroundColor() error { return l.Send(CmdLEDClearForegroundColor) }

// SetMask implements LEDs
func (l *FrameLEDs) SetMask(key uint8) error { return l.Send(CmdLEDSetMask, key) }

// ClearMask implements LEDs
func (l *FrameLEDs) ClearMask(key uint8) error { return l.Send(CmdLEDClearMask, key) }

// RequestStatus implements LEDs
func (l *FrameLEDs) RequestStatus() error { return l.Send(CmdLEDGetStatus) }

// EnterIAP implements LEDs
func (l *FrameLEDs) EnterIAP() error { return l.Send(CmdLEDEnterIAP) }
