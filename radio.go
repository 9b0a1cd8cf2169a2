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

import "fmt"

// Radio satellite messages. These are fixed blobs in the radio firmware's
// own format; peer-specific messages are followed by the peer index byte.
var (
	radioWakeup         = []byte{0x7b, 0x12, 0x53, 0x00, 0x03, 0x00, 0x01, 0x7d, 0x02, 0x01, 0x02}
	radioStartBroadcast = []byte{0x7b, 0x12, 0x53, 0x00, 0x03, 0x00, 0x00, 0x7d, 0x40, 0x01}
	radioConnect        = []byte{0x7b, 0x12, 0x53, 0x00, 0x03, 0x00, 0x00, 0x7d, 0x40, 0x04}
	radioUnpair         = []byte{0x7b, 0x12, 0x53, 0x00, 0x02, 0x00, 0x00, 0x7d, 0x40, 0x05}
	radioBootload       = []byte{0x7b, 0x10, 0x51, 0x10, 0x03, 0x00, 0x00, 0x7d, 0x02, 0x01, 0x01}
)

const noPeer = -1

// SerialRadio drives the radio satellite over its transport. Broadcasting
// to the same peer twice in a row connects to it.
// Not safe for concurrent use.
type SerialRadio struct {
	transport     Transport
	buf           []byte
	lastBroadcast int
	connected     int
}

// NewSerialRadio returns a Radio writing to t.
func NewSerialRadio(t Transport) *SerialRadio {
	return &SerialRadio{
		transport:     t,
		buf:           make([]byte, 0, len(radioWakeup)),
		lastBroadcast: noPeer,
		connected:     noPeer,
	}
}

// Start implements Radio
func (r *SerialRadio) Start() error {
	return r.write("wakeup", radioWakeup)
}

// Broadcast implements Radio. Peers above the last slot are clamped.
func (r *SerialRadio) Broadcast(peer uint8) error {
	if peer >= NumPeers {
		peer = NumPeers - 1
	}
	if err := r.write("broadcast", append(append(r.buf[:0], radioStartBroadcast...), peer)); err != nil {
		return err
	}
	if r.lastBroadcast == int(peer) {
		if err := r.write("connect", append(append(r.buf[:0], radioConnect...), peer)); err != nil {
			return err
		}
		r.connected = int(peer)
	}
	r.lastBroadcast = int(peer)
	return nil
}

// Disconnect implements Radio. Reports go back to USB; the radio keeps its
// pairings so nothing is sent.
func (r *SerialRadio) Disconnect() error {
	r.connected = noPeer
	return nil
}

// Unpair implements Radio
func (r *SerialRadio) Unpair() error {
	return r.write("unpair", radioUnpair)
}

// Bootload implements Radio
func (r *SerialRadio) Bootload() error {
	return r.write("bootload", radioBootload)
}

// Connected returns the connected peer, or false when on USB.
func (r *SerialRadio) Connected() (uint8, bool) {
	if r.connected == noPeer {
		return 0, false
	}
	return uint8(r.connected), true
}

func (r *SerialRadio) write(what string, msg []byte) error {
	n, err := r.transport.Write(msg)
	if err != nil {
		return fmt.Errorf("radio %s: %w", what, err)
	}
	if n != len(msg) {
		return fmt.Errorf("radio %s: short write %d/%d: %w", what, n, len(msg), ErrTransportWrite)
	}
	return nil
}
