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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/go-ap2link/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, cmd byte, payload ...byte) []byte {
	t.Helper()
	b, err := frame.Encode(cmd, payload)
	require.NoError(t, err)
	return b
}

func statusRecord(caps bool) []byte {
	rec := make([]byte, StatusRecordSize)
	if caps {
		rec[StatusRecordSize-1] = 1
	}
	return rec
}

func TestNewCoordinator_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewCoordinator(nil, NewMockTransport(), nil)
	require.ErrorIs(t, err, ErrInvalidParameter)

	config := DefaultConfig()
	config.FrameTimeout = 0
	_, err = NewCoordinator(NewMockTransport(), NewMockTransport(), config)
	require.ErrorIs(t, err, ErrInvalidParameter)

	_, err = NewCoordinator(NewMockTransport(), NewMockTransport(), nil, WithLEDs(nil))
	require.ErrorIs(t, err, ErrInvalidParameter)

	c, err := NewCoordinator(NewMockTransport(), NewMockTransport(), nil)
	require.NoError(t, err)
	assert.Equal(t, LinkUSB, c.Link())
	assert.Equal(t, Awake, c.PowerState())
}

func TestCoordinator_CapsLockFrameScenario(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, nil)

	wire := encode(t, CmdRadioStatus, 0x01)
	require.Equal(t, []byte{0x7B, 0x30, 0x01, 0x01, 0xCE, 0x7D}, wire)

	fx.led.Inject(wire...)
	require.NoError(t, fx.c.Tick())
	assert.True(t, fx.c.Status().CapsLock)

	for range 5 {
		fx.clock.Advance(time.Millisecond)
		require.NoError(t, fx.c.Tick())
		assert.True(t, fx.c.Status().CapsLock, "capslock must persist across idle ticks")
	}

	fx.led.Inject(encode(t, CmdRadioStatus, 0x00)...)
	require.NoError(t, fx.c.Tick())
	assert.False(t, fx.c.Status().CapsLock)
}

func TestCoordinator_OnByteReceived(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, nil)

	for _, b := range encode(t, CmdRadioStatus, 0x01, byte(LinkPeer1)) {
		fx.c.OnByteReceived(b)
	}
	assert.Equal(t, Status{CapsLock: true, Link: LinkPeer1}, fx.c.Status())
}

func TestCoordinator_RadioStatusRecords(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, func(c *Config) { c.CapsLockIndicator = true })

	fx.radio.Inject(statusRecord(false)...)
	fx.radio.Inject(statusRecord(true)...)
	require.NoError(t, fx.c.Tick())
	assert.True(t, fx.c.Status().CapsLock)
	assert.Equal(t, []string{"mask 28", "unmask 28"}, fx.leds.Calls())
	assert.Equal(t, uint64(2), fx.c.Stats().StatusRecords)

	// A partial record is dropped and leaves the mirror alone.
	fx.radio.Inject(statusRecord(false)[:6]...)
	require.NoError(t, fx.c.Tick())
	assert.True(t, fx.c.Status().CapsLock)
	assert.Equal(t, uint64(1), fx.c.Stats().PartialRecords)
	assert.Zero(t, fx.radio.Pending())
}

func TestCoordinator_RadioStatusBoundedPerTick(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, func(c *Config) { c.MaxStatusRecordsPerTick = 2 })

	for range 3 {
		fx.radio.Inject(statusRecord(true)...)
	}
	require.NoError(t, fx.c.Tick())
	assert.Equal(t, StatusRecordSize, fx.radio.Pending())
	require.NoError(t, fx.c.Tick())
	assert.Zero(t, fx.radio.Pending())
}

func TestCoordinator_LEDStatusUpdatesRendering(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, nil)

	fx.led.Inject(encode(t, CmdLEDStatus, 6, 2, 0, 1)...)
	require.NoError(t, fx.c.Tick())
	assert.Equal(t, LEDStatus{Profiles: 6, CurrentProfile: 2, IsReactive: true}, fx.c.LEDStatus())

	// With the matrix off the keyboard never sleeps.
	fx.clock.Advance(time.Hour)
	require.NoError(t, fx.c.Tick())
	assert.Equal(t, Awake, fx.c.PowerState())
}

func TestCoordinator_LEDDebugForwardedToHost(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, nil)

	fx.led.Inject(encode(t, CmdLEDDebug, 'o', 'k')...)
	require.NoError(t, fx.c.Tick())
	assert.Equal(t, [][]byte{[]byte("ok")}, fx.host.debug)
}

func TestCoordinator_ResyncsAfterGarbage(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, nil)

	fx.led.Inject(0x00, frame.Header, 0x30, 0x02, 0xFF)
	fx.led.Inject(encode(t, CmdRadioStatus, 0x01)...)
	require.NoError(t, fx.c.Tick())
	assert.True(t, fx.c.Status().CapsLock)
}

func TestCoordinator_PartialFrameTimesOut(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, nil)

	// A lone header claims the bytes of the real frame behind it until the
	// line goes quiet.
	fx.led.Inject(frame.Header)
	fx.led.Inject(encode(t, CmdRadioStatus, 0x01)...)
	require.NoError(t, fx.c.Tick())
	assert.False(t, fx.c.Status().CapsLock)

	fx.clock.Advance(DefaultConfig().FrameTimeout)
	require.NoError(t, fx.c.Tick())
	assert.True(t, fx.c.Status().CapsLock)
	assert.NotZero(t, fx.c.Stats().Decoder.Rejected)
}

func TestCoordinator_HostForwardDrainedOnTick(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, nil)

	fx.c.OnHostCommand([]byte{HostForwardToLED, 0x05, 1, 2, 3})
	fx.c.OnHostCommand([]byte{HostForwardToLED, 0x06, 9})
	assert.Empty(t, fx.led.Written(), "forwarding must wait for the scan")

	require.NoError(t, fx.c.Tick())
	assert.Equal(t, encode(t, 0x05, 1, 2, 3), fx.led.Written())
	stats := fx.c.Stats()
	assert.Equal(t, uint64(1), stats.Forwarded)
	assert.Equal(t, uint64(1), stats.Relay.Dropped)

	fx.led.ResetWritten()
	require.NoError(t, fx.c.Tick())
	assert.Empty(t, fx.led.Written())
}

func TestCoordinator_HostCommandRouting(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, nil)

	fx.c.OnHostCommand(nil)
	fx.c.OnHostCommand([]byte{HostForwardToLED})
	fx.c.OnHostCommand([]byte{0x02, 0xAA})
	fx.c.OnHostCommand([]byte{HostForwardToLED, CmdLEDGetStatus})

	assert.Equal(t, [][]byte{{0x02, 0xAA}}, fx.host.commands)
	require.NoError(t, fx.c.Tick())
	assert.Equal(t, encode(t, CmdLEDGetStatus), fx.led.Written())
}

func TestCoordinator_ForwardResetsIdleTimer(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, func(c *Config) { c.IdleTimeout = time.Minute })

	fx.clock.Advance(50 * time.Second)
	fx.c.OnHostCommand([]byte{HostForwardToLED, CmdLEDNextProfile})
	require.NoError(t, fx.c.Tick())

	fx.clock.Advance(50 * time.Second)
	require.NoError(t, fx.c.Tick())
	assert.Equal(t, Awake, fx.c.PowerState())

	fx.clock.Advance(10 * time.Second)
	require.NoError(t, fx.c.Tick())
	assert.Equal(t, Asleep, fx.c.PowerState())
}

func TestCoordinator_SleepAndWake(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, func(c *Config) {
		c.IdleTimeout = time.Minute
		c.InitialLink = LinkPeer0
	})

	fx.clock.Advance(time.Minute)
	for range 3 {
		require.NoError(t, fx.c.Tick())
	}
	assert.Equal(t, Asleep, fx.c.PowerState())
	assert.Equal(t, LinkPeer0, fx.c.Link())
	assert.Equal(t, []string{"rendering false"}, fx.leds.Calls(), "sleep disables rendering once")

	fx.leds.Reset()
	assert.False(t, fx.c.OnKeyEvent(KeyEvent{Row: 1, Col: 1, Pressed: true}))
	assert.Equal(t, Awake, fx.c.PowerState())
	assert.Equal(t, []string{"rendering true"}, fx.leds.Calls())
	assert.True(t, fx.c.LEDStatus().MatrixEnabled)
}

func TestCoordinator_LEDOnWhileAsleepOnlyWakes(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, func(c *Config) {
		c.IdleTimeout = time.Minute
		c.InitialLink = LinkPeer0
	})

	fx.clock.Advance(time.Minute)
	for range 3 {
		require.NoError(t, fx.c.Tick())
	}
	require.Equal(t, Asleep, fx.c.PowerState())

	fx.leds.Reset()
	assert.False(t, fx.c.OnKeyEvent(KeyEvent{Keycode: KeyLEDOn, Pressed: true}))
	assert.Equal(t, Awake, fx.c.PowerState())
	assert.Equal(t, []string{"rendering true", "reset fg"}, fx.leds.Calls())
	assert.True(t, fx.c.LEDStatus().MatrixEnabled)
}

func TestCoordinator_KeyEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		leds     []string
		radio    []string
		key      Keycode
		link     Link
		handled  bool
		ledsOff  bool
		reactive bool
	}{
		{
			name:    "bt1",
			key:     KeyBT1,
			handled: true,
			link:    LinkPeer0,
			leds:    []string{"blink 0,1 0000FF x8/50"},
			radio:   []string{"broadcast 0"},
		},
		{
			name:    "bt4",
			key:     KeyBT4,
			handled: true,
			link:    LinkPeer3,
			leds:    []string{"blink 0,4 0000FF x8/50"},
			radio:   []string{"broadcast 3"},
		},
		{name: "usb", key: KeyUSB, handled: true, link: LinkUSB, radio: []string{"disconnect"}},
		{name: "unpair", key: KeyBTUnpair, handled: true, radio: []string{"unpair"}},
		{name: "led off", key: KeyLEDOff, leds: []string{"rendering false"}},
		{name: "led on while lit cycles", key: KeyLEDOn, leds: []string{"next profile", "reset fg"}},
		{
			name:    "led on while dark enables",
			key:     KeyLEDOn,
			ledsOff: true,
			leds:    []string{"rendering true", "reset fg"},
		},
		{name: "next profile", key: KeyLEDNextProfile, leds: []string{"next profile", "reset fg"}},
		{name: "prev profile", key: KeyLEDPrevProfile, leds: []string{"prev profile", "reset fg"}},
		{
			name:    "intensity",
			key:     KeyLEDNextIntensity,
			handled: true,
			leds:    []string{"next intensity", "reset fg"},
		},
		{name: "speed", key: KeyLEDSpeed, handled: true, leds: []string{"next speed", "reset fg"}},
		{name: "plain key", key: KeyNone},
		{name: "plain key reactive", key: KeyNone, reactive: true, leds: []string{"keypress 2,3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fx := newTestCoordinator(t, nil)
			switch {
			case tt.ledsOff:
				fx.led.Inject(encode(t, CmdLEDStatus, 1, 0, 0, 0)...)
			case tt.reactive:
				fx.led.Inject(encode(t, CmdLEDStatus, 1, 0, 1, 1)...)
			}
			require.NoError(t, fx.c.Tick())

			handled := fx.c.OnKeyEvent(KeyEvent{Keycode: tt.key, Row: 2, Col: 3, Pressed: true})
			assert.Equal(t, tt.handled, handled)
			assert.Equal(t, tt.leds, fx.leds.Calls())
			assert.Equal(t, tt.radio, fx.rad.Calls())
			assert.Equal(t, tt.link, fx.c.Link())
		})
	}
}

func TestCoordinator_KeyReleaseIgnored(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, nil)

	assert.False(t, fx.c.OnKeyEvent(KeyEvent{Keycode: KeyBT2}))
	assert.Empty(t, fx.rad.Calls())
	assert.Equal(t, LinkUSB, fx.c.Link())
}

func TestCoordinator_Start(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, func(c *Config) {
		c.InitBaud = 9600
		c.RuntimeBaud = 115200
	})
	fx.led.Inject(0xDE, 0xAD) // wakeup response noise
	fx.radio.Inject(0x01)

	require.NoError(t, fx.c.Start(context.Background()))

	assert.Equal(t, frame.WakeupSequence[:], fx.led.Written())
	assert.Equal(t, []int{9600, 115200}, fx.led.BaudRates())
	assert.Zero(t, fx.led.Pending())
	assert.Zero(t, fx.radio.Pending())
	assert.Equal(t, []string{"start"}, fx.rad.Calls())
	assert.Equal(t, []string{"status"}, fx.leds.Calls())
}

func TestCoordinator_StartRetriesWakeup(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, func(c *Config) {
		c.Retry = &RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, BackoffMultiplier: 1}
	})
	fx.led.SetWriteError(ErrTransportWrite)

	err := fx.c.Start(context.Background())
	require.ErrorIs(t, err, ErrTransportWrite)
	assert.Empty(t, fx.rad.Calls(), "radio is not started when the LEDs fail")
}

func TestCoordinator_StartCancelled(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, func(c *Config) { c.SettleDelay = time.Hour })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, fx.c.Start(ctx), context.Canceled)
}

func TestCoordinator_EnterBootloader(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, nil)

	require.NoError(t, fx.c.EnterBootloader(context.Background()))
	assert.Equal(t, []string{"iap"}, fx.leds.Calls())
	assert.Equal(t, []string{"bootload"}, fx.rad.Calls())
}

func TestCoordinator_TickReportsTransportErrors(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, nil)

	fx.c.OnHostCommand([]byte{HostForwardToLED, 0x05})
	fx.led.SetWriteError(NewTransportWriteError("write", "mock"))
	err := fx.c.Tick()
	require.ErrorIs(t, err, ErrTransportWrite)
	assert.True(t, IsRetryable(err))

	require.NoError(t, fx.radio.Close())
	err = fx.c.Tick()
	require.ErrorIs(t, err, ErrTransportClosed)
	assert.True(t, IsFatal(err))
}

func TestCoordinator_Resync(t *testing.T) {
	t.Parallel()
	fx := newTestCoordinator(t, nil)

	fx.led.Inject(encode(t, CmdRadioStatus, 0x00)...)
	require.NoError(t, fx.c.Tick())
	before := fx.c.Stats().Decoder.Frames
	require.NotZero(t, before)

	fx.led.Inject(frame.Header, 0x30)
	require.NoError(t, fx.c.Tick())
	fx.led.Inject(0x01, 0x02)
	fx.radio.Inject(0x01)

	require.NoError(t, fx.c.Resync())
	assert.Zero(t, fx.led.Pending())
	assert.Zero(t, fx.radio.Pending())

	fx.led.Inject(encode(t, CmdRadioStatus, 0x01)...)
	require.NoError(t, fx.c.Tick())
	assert.True(t, fx.c.Status().CapsLock)
	assert.Equal(t, before+1, fx.c.Stats().Decoder.Frames)
}

type failingLEDs struct{ recordingLEDs }

func (*failingLEDs) Blink(uint8, uint8, Color, uint8, uint8) error { return errors.New("blink failed") }

func TestCoordinator_EffectFailureDoesNotStopOthers(t *testing.T) {
	t.Parallel()
	leds := &failingLEDs{}
	rad := &recordingRadio{}
	c, err := NewCoordinator(NewMockTransport(), NewMockTransport(), nil, WithLEDs(leds), WithRadio(rad))
	require.NoError(t, err)

	assert.True(t, c.OnKeyEvent(KeyEvent{Keycode: KeyBT2, Pressed: true}))
	assert.Equal(t, []string{"broadcast 1"}, rad.Calls())
	assert.Equal(t, LinkPeer1, c.Link())
}
