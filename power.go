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
	"time"
)

// PowerState is whether the keyboard is rendering or sleeping.
type PowerState int

// Power states
const (
	Awake PowerState = iota
	Asleep
)

func (s PowerState) String() string {
	if s == Asleep {
		return "asleep"
	}
	return "awake"
}

// Link selects where key reports go: USB or one of the wireless peers.
type Link uint8

// Links
const (
	LinkUSB Link = iota
	LinkPeer0
	LinkPeer1
	LinkPeer2
	LinkPeer3
)

// NumPeers is the number of wireless pairing slots on the radio.
const NumPeers = 4

// Valid reports whether l is USB or one of the four peers.
func (l Link) Valid() bool {
	return l <= LinkPeer3
}

// Peer returns the zero-based peer index. ok is false for USB.
func (l Link) Peer() (peer uint8, ok bool) {
	if l == LinkUSB || !l.Valid() {
		return 0, false
	}
	return uint8(l - LinkPeer0), true
}

func (l Link) String() string {
	switch {
	case l == LinkUSB:
		return "usb"
	case l.Valid():
		return fmt.Sprintf("peer%d", l-LinkPeer0)
	default:
		return fmt.Sprintf("link(%d)", uint8(l))
	}
}

// ParseLink parses "usb" or "peer0".."peer3".
func ParseLink(s string) (Link, error) {
	for l := LinkUSB; l <= LinkPeer3; l++ {
		if l.String() == s {
			return l, nil
		}
	}
	return LinkUSB, fmt.Errorf("unknown link %q: %w", s, ErrInvalidParameter)
}

// Link selection acknowledgement blink, at the number row key for the peer
const (
	ackBlinkRow      = 0
	ackBlinkCount    = 8
	ackBlinkDuration = 50
)

// PowerMachine tracks sleep state, the active link and the idle timer.
// It does no I/O; every transition returns the effects the caller must apply.
// Not safe for concurrent use.
type PowerMachine struct {
	lastActivity time.Time
	idleTimeout  time.Duration
	state        PowerState
	link         Link
	sleepEnabled bool
	rendering    bool
}

// NewPowerMachine starts Awake on the given link with rendering enabled and
// the idle timer started at now. A zero idleTimeout disables sleep.
func NewPowerMachine(initial Link, idleTimeout time.Duration, sleepEnabled bool, now time.Time) *PowerMachine {
	if !initial.Valid() {
		initial = LinkUSB
	}
	return &PowerMachine{
		state:        Awake,
		link:         initial,
		idleTimeout:  idleTimeout,
		sleepEnabled: sleepEnabled && idleTimeout > 0,
		rendering:    true,
		lastActivity: now,
	}
}

// KeyPressed resets the idle timer and wakes the keyboard if it was asleep.
func (m *PowerMachine) KeyPressed(now time.Time) []Effect {
	m.touch(now)
	if m.state != Asleep {
		return nil
	}
	m.state = Awake
	m.rendering = true
	Debugf("power: wake on %s", m.link)
	return []Effect{RenderingEffect{Enabled: true}}
}

// Activity resets the idle timer without waking, for forwarded commands.
func (m *PowerMachine) Activity(now time.Time) {
	m.touch(now)
}

// Tick puts the keyboard to sleep once the idle timeout has elapsed while it
// is awake and rendering. It returns the rendering-disable effect only on
// the transition.
func (m *PowerMachine) Tick(now time.Time) []Effect {
	if !m.sleepEnabled || m.state != Awake || !m.rendering {
		return nil
	}
	if now.Sub(m.lastActivity) < m.idleTimeout {
		return nil
	}
	m.state = Asleep
	m.rendering = false
	Debugf("power: sleep on %s after %s idle", m.link, now.Sub(m.lastActivity))
	return []Effect{RenderingEffect{Enabled: false}}
}

// SelectLink switches the active link whether asleep or awake. Choosing a
// peer starts a broadcast on it and blinks its number key; choosing USB
// disconnects the radio.
func (m *PowerMachine) SelectLink(l Link, now time.Time) []Effect {
	if !l.Valid() {
		Debugf("power: ignoring invalid %s", l)
		return nil
	}
	m.touch(now)

	peer, ok := l.Peer()
	if !ok {
		return m.Disconnect()
	}
	m.link = l
	return []Effect{
		RadioEffect{Action: RadioBroadcast, Link: l},
		BlinkEffect{
			Row:      ackBlinkRow,
			Col:      peer + 1,
			Color:    ColorBlue,
			Count:    ackBlinkCount,
			Duration: ackBlinkDuration,
		},
	}
}

// Disconnect falls back to USB.
func (m *PowerMachine) Disconnect() []Effect {
	m.link = LinkUSB
	return []Effect{RadioEffect{Action: RadioDisconnect, Link: LinkUSB}}
}

// Unpair clears the pairing of the active link. The selection is unchanged.
func (m *PowerMachine) Unpair() []Effect {
	return []Effect{RadioEffect{Action: RadioUnpair, Link: m.link}}
}

// SetRendering records an LED on/off change made outside the machine.
func (m *PowerMachine) SetRendering(enabled bool) {
	m.rendering = enabled
}

// State returns the current power state.
func (m *PowerMachine) State() PowerState { return m.state }

// Link returns the active link.
func (m *PowerMachine) Link() Link { return m.link }

// Rendering reports whether LED output is believed to be on.
func (m *PowerMachine) Rendering() bool { return m.rendering }

// IdleFor returns the time since the last activity.
func (m *PowerMachine) IdleFor(now time.Time) time.Duration {
	return now.Sub(m.lastActivity)
}

// touch only moves the timer forward so a stale timestamp cannot shorten
// the idle period.
func (m *PowerMachine) touch(now time.Time) {
	if now.After(m.lastActivity) {
		m.lastActivity = now
	}
}
