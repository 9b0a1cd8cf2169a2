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

//go:build !prod

package ap2link

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for idle timer tests.
type fakeClock struct {
	now time.Time
	mu  sync.Mutex
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingLEDs records every LED call as a short string.
type recordingLEDs struct {
	err   error
	calls []string
	mu    sync.Mutex
}

func (r *recordingLEDs) record(format string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	return r.err
}

func (r *recordingLEDs) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingLEDs) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

func (r *recordingLEDs) SetRendering(enabled bool) error { return r.record("rendering %t", enabled) }
func (r *recordingLEDs) Blink(row, col uint8, c Color, count, duration uint8) error {
	return r.record("blink %d,%d %02X%02X%02X x%d/%d", row, col, c.Red, c.Green, c.Blue, count, duration)
}
func (r *recordingLEDs) ForwardKeypress(row, col uint8) error { return r.record("keypress %d,%d", row, col) }
func (r *recordingLEDs) NextProfile() error                   { return r.record("next profile") }
func (r *recordingLEDs) PrevProfile() error                   { return r.record("prev profile") }
func (r *recordingLEDs) NextIntensity() error                 { return r.record("next intensity") }
func (r *recordingLEDs) NextAnimationSpeed() error            { return r.record("next speed") }
func (r *recordingLEDs) ResetForegroundColor() error          { return r.record("reset fg") }
func (r *recordingLEDs) SetMask(key uint8) error              { return r.record("mask %d", key) }
func (r *recordingLEDs) ClearMask(key uint8) error            { return r.record("unmask %d", key) }
func (r *recordingLEDs) RequestStatus() error                 { return r.record("status") }
func (r *recordingLEDs) EnterIAP() error                      { return r.record("iap") }

// recordingRadio records radio calls.
type recordingRadio struct {
	calls []string
	mu    sync.Mutex
}

func (r *recordingRadio) record(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
	return nil
}

func (r *recordingRadio) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingRadio) Start() error               { return r.record("start") }
func (r *recordingRadio) Broadcast(peer uint8) error { return r.record(fmt.Sprintf("broadcast %d", peer)) }
func (r *recordingRadio) Disconnect() error          { return r.record("disconnect") }
func (r *recordingRadio) Unpair() error              { return r.record("unpair") }
func (r *recordingRadio) Bootload() error            { return r.record("bootload") }

// recordingHost records host handler calls.
type recordingHost struct {
	commands [][]byte
	debug    [][]byte
	mu       sync.Mutex
}

func (h *recordingHost) HandleHostCommand(data []byte) {
	h.mu.Lock()
	h.commands = append(h.commands, append([]byte(nil), data...))
	h.mu.Unlock()
}

func (h *recordingHost) HandleLEDDebug(payload []byte) {
	h.mu.Lock()
	h.debug = append(h.debug, append([]byte(nil), payload...))
	h.mu.Unlock()
}

// coordinatorFixture bundles a coordinator with its fakes.
type coordinatorFixture struct {
	c     *Coordinator
	led   *MockTransport
	radio *MockTransport
	leds  *recordingLEDs
	rad   *recordingRadio
	host  *recordingHost
	clock *fakeClock
}

// newTestCoordinator creates a coordinator on mock transports with recording
// collaborators. mutate may adjust the default config before construction.
func newTestCoordinator(t *testing.T, mutate func(*Config)) *coordinatorFixture {
	t.Helper()
	fx := &coordinatorFixture{
		led:   NewMockTransport(),
		radio: NewMockTransport(),
		leds:  &recordingLEDs{},
		rad:   &recordingRadio{},
		host:  &recordingHost{},
		clock: newFakeClock(),
	}
	config := DefaultConfig()
	config.SettleDelay = 0
	if mutate != nil {
		mutate(config)
	}
	c, err := NewCoordinator(fx.led, fx.radio, config,
		WithLEDs(fx.leds),
		WithRadio(fx.rad),
		WithHostHandler(fx.host),
		WithClock(fx.clock.Now),
	)
	require.NoError(t, err)
	fx.c = c
	return fx
}
