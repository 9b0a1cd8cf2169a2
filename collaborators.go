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

// LEDs is the LED satellite as seen by the coordinator. FrameLEDs is the
// serial implementation; tests substitute recorders.
type LEDs interface {
	SetRendering(enabled bool) error
	Blink(row, col uint8, color Color, count, duration uint8) error
	ForwardKeypress(row, col uint8) error
	NextProfile() error
	PrevProfile() error
	NextIntensity() error
	NextAnimationSpeed() error
	ResetForegroundColor() error
	SetMask(key uint8) error
	ClearMask(key uint8) error
	RequestStatus() error
	EnterIAP() error
}

// Radio is the wireless satellite. Pairing itself happens on the radio.
type Radio interface {
	Start() error
	Broadcast(peer uint8) error
	Disconnect() error
	Unpair() error
	Bootload() error
}

// HostHandler receives host commands the core does not handle and debug
// output from the LED satellite. Implementations must not block and must
// not call Coordinator methods other than OnHostCommand and Status.
type HostHandler interface {
	HandleHostCommand(data []byte)
	HandleLEDDebug(payload []byte)
}

// KeyEvent is one key transition reported by the matrix scanner.
type KeyEvent struct {
	Keycode Keycode
	Row     uint8
	Col     uint8
	Pressed bool
}

// Hooks are the entry points the host environment drives. Coordinator
// implements them.
type Hooks interface {
	// OnByteReceived feeds one byte from an interrupt-driven LED receiver.
	OnByteReceived(b byte)
	// OnTick runs one scan: status polling, decoding, relay drain, idle check.
	OnTick() error
	// OnKeyEvent reports whether the key was fully handled by the core.
	OnKeyEvent(ev KeyEvent) bool
	// OnHostCommand accepts a host report without blocking.
	OnHostCommand(data []byte)
}

type nopHostHandler struct{}

func (nopHostHandler) HandleHostCommand(data []byte) {
	Debugf("host: unhandled command % X", data)
}

func (nopHostHandler) HandleLEDDebug(payload []byte) {
	Debugf("led debug: %q", payload)
}
