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
	"sync/atomic"

	"github.com/ZaparooProject/go-ap2link/internal/frame"
)

// Relay slot states. Only the producer moves empty→writing→full and only
// the drainer moves full→reading→empty, so each side owns the payload while
// its transitional state is set.
const (
	slotEmpty uint32 = iota
	slotWriting
	slotFull
	slotReading
)

// RelayStats counts relay traffic.
type RelayStats struct {
	Posted  uint64
	Dropped uint64
	Drained uint64
}

// Relay is a single-slot mailbox between a host command producer and the
// scan loop that transmits to the LED satellite. Neither side blocks or
// allocates. A Post while a command is pending is dropped, not queued, so
// commands arriving faster than one per scan are lost.
//
// The zero value is an empty relay.
type Relay struct {
	state   atomic.Uint32
	posted  atomic.Uint64
	dropped atomic.Uint64
	drained atomic.Uint64
	slot    Frame
}

// Post stores one command for the next Drain. It returns false when the slot
// is occupied or the payload exceeds the frame capacity.
func (r *Relay) Post(cmd byte, payload []byte) bool {
	if len(payload) > frame.MaxPayload {
		r.dropped.Add(1)
		Debugf("relay: dropping cmd 0x%02X, %d byte payload", cmd, len(payload))
		return false
	}
	if !r.state.CompareAndSwap(slotEmpty, slotWriting) {
		r.dropped.Add(1)
		Debugf("relay: slot occupied, dropping cmd 0x%02X", cmd)
		return false
	}

	r.slot.Command = cmd
	r.slot.Length = uint8(len(payload))
	copy(r.slot.Data[:], payload)

	r.state.Store(slotFull)
	r.posted.Add(1)
	return true
}

// Drain takes the pending command, if any, and empties the slot.
// Only one goroutine may drain.
func (r *Relay) Drain() (Frame, bool) {
	if !r.state.CompareAndSwap(slotFull, slotReading) {
		return Frame{}, false
	}
	f := r.slot
	r.state.Store(slotEmpty)
	r.drained.Add(1)
	return f, true
}

// Pending reports whether a command is waiting to be drained.
func (r *Relay) Pending() bool {
	return r.state.Load() == slotFull
}

// Stats returns the relay counters.
func (r *Relay) Stats() RelayStats {
	return RelayStats{
		Posted:  r.posted.Load(),
		Dropped: r.dropped.Load(),
		Drained: r.drained.Load(),
	}
}
