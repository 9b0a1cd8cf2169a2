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

package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/ZaparooProject/go-ap2link"
	"github.com/ZaparooProject/go-ap2link/detection"
	"github.com/ZaparooProject/go-ap2link/internal/frame"
	"github.com/ZaparooProject/go-ap2link/polling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type consoleFixture struct {
	con   *console
	coord *ap2link.Coordinator
	led   *ap2link.MockTransport
	radio *ap2link.MockTransport
	out   *bytes.Buffer
}

func newConsoleFixture(t *testing.T) *consoleFixture {
	t.Helper()
	out := &bytes.Buffer{}
	con := newConsole(out)
	led := ap2link.NewMockTransport()
	radio := ap2link.NewMockTransport()

	cfg := ap2link.DefaultConfig()
	cfg.SettleDelay = 0
	coord, err := ap2link.NewCoordinator(led, radio, cfg, ap2link.WithHostHandler(con))
	require.NoError(t, err)
	con.coord = coord

	return &consoleFixture{con: con, coord: coord, led: led, radio: radio, out: out}
}

func (f *consoleFixture) exec(line string) string {
	f.out.Reset()
	f.con.exec(context.Background(), line)
	return f.out.String()
}

func TestConsoleKey(t *testing.T) {
	t.Parallel()
	f := newConsoleFixture(t)

	assert.Contains(t, f.exec("key bt2"), "bt2: handled")
	assert.Equal(t, ap2link.LinkPeer1, f.coord.Link())
	assert.Equal(t,
		[]byte{0x7b, 0x12, 0x53, 0x00, 0x03, 0x00, 0x00, 0x7d, 0x40, 0x01, 0x01},
		f.radio.Written())

	assert.Contains(t, f.exec("k LED_OFF"), "led_off: passed to keymap")
	assert.Contains(t, f.exec("key usb"), "usb: handled")
	assert.Equal(t, ap2link.LinkUSB, f.coord.Link())

	assert.Contains(t, f.exec("key hyper"), "Error:")
	assert.Contains(t, f.exec("key"), "usage: key")
}

func TestConsolePress(t *testing.T) {
	t.Parallel()
	f := newConsoleFixture(t)

	assert.Empty(t, f.exec("press 2 0x0d"))
	assert.Contains(t, f.exec("press 2"), "usage: press")
	assert.Contains(t, f.exec("press x 1"), "row:")
	assert.Contains(t, f.exec("press 1 300"), "col:")
}

func TestConsoleForward(t *testing.T) {
	t.Parallel()
	f := newConsoleFixture(t)

	assert.Empty(t, f.exec("fwd 0a 1c"))
	require.NoError(t, f.coord.Tick())

	want, err := frame.Encode(ap2link.CmdLEDSetMask, []byte{0x1c})
	require.NoError(t, err)
	assert.Equal(t, want, f.led.Written())
	assert.Equal(t, uint64(1), f.coord.Stats().Forwarded)

	assert.Contains(t, f.exec("fwd"), "usage: fwd")
	assert.Contains(t, f.exec("fwd zz"), "invalid hex")
}

func TestConsoleRawGoesToHostHandler(t *testing.T) {
	t.Parallel()
	f := newConsoleFixture(t)

	assert.Contains(t, f.exec("raw 02 aa"), "host command: 02 AA")
	assert.Contains(t, f.exec("raw"), "usage: raw")
}

func TestConsoleLEDDebug(t *testing.T) {
	t.Parallel()
	f := newConsoleFixture(t)

	wire, err := frame.Encode(ap2link.CmdLEDDebug, []byte("hi"))
	require.NoError(t, err)
	f.led.Inject(wire...)
	f.out.Reset()
	require.NoError(t, f.coord.Tick())
	assert.Contains(t, f.out.String(), `led debug: "hi"`)
}

func TestConsoleStatus(t *testing.T) {
	t.Parallel()
	f := newConsoleFixture(t)
	f.con.metrics = func() polling.Metrics { return polling.Metrics{Scans: 42} }

	out := f.exec("status")
	assert.Contains(t, out, "link:   usb (awake)")
	assert.Contains(t, out, "capslock=false")
	assert.Contains(t, out, "scans:  42")
}

func TestConsoleBoot(t *testing.T) {
	t.Parallel()
	f := newConsoleFixture(t)

	assert.Contains(t, f.exec("boot"), "bootloader")
	iap, err := frame.Encode(ap2link.CmdLEDEnterIAP, nil)
	require.NoError(t, err)
	assert.Equal(t, iap, f.led.Written())
	assert.Equal(t,
		[]byte{0x7b, 0x10, 0x51, 0x10, 0x03, 0x00, 0x00, 0x7d, 0x02, 0x01, 0x01},
		f.radio.Written())

	f.radio.SetWriteError(ap2link.ErrTransportWrite)
	assert.Contains(t, f.exec("boot"), "Error: enter bootloader")
}

func TestConsoleExecControl(t *testing.T) {
	t.Parallel()
	f := newConsoleFixture(t)
	ctx := context.Background()

	assert.False(t, f.con.exec(ctx, "   "))
	assert.False(t, f.con.exec(ctx, "help"))
	assert.Contains(t, f.out.String(), "Commands:")
	assert.False(t, f.con.exec(ctx, "dance"))
	assert.Contains(t, f.out.String(), "Unknown command: dance")
	assert.True(t, f.con.exec(ctx, "quit"))
	assert.True(t, f.con.exec(ctx, "Q"))
}

func TestParseHex(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		args    []string
		want    []byte
		wantErr bool
	}{
		{name: "spaced", args: []string{"7B", "30"}, want: []byte{0x7B, 0x30}},
		{name: "prefixed", args: []string{"0x7b", "0X30"}, want: []byte{0x7B, 0x30}},
		{name: "joined", args: []string{"7b30ce"}, want: []byte{0x7B, 0x30, 0xCE}},
		{name: "single nibble", args: []string{"1", "f"}, want: []byte{0x01, 0x0F}},
		{name: "not hex", args: []string{"xyz"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseHex(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReportStoppedIncludesTrace(t *testing.T) {
	t.Parallel()
	tb := ap2link.NewTraceBuffer("uart", "/dev/ttyS1", 4)
	tb.RecordTX([]byte{0x7B, 0x0F}, "status")

	var out bytes.Buffer
	reportStopped(&out, tb.WrapError(ap2link.ErrTransportClosed))
	assert.Contains(t, out.String(), "Scan loop stopped: transport is closed")
	assert.Contains(t, out.String(), "7B 0F")
}

func TestPrintDevices(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	printDevices(&out, nil)
	assert.Equal(t, "No satellite ports found\n", out.String())

	out.Reset()
	printDevices(&out, []detection.DeviceInfo{
		{Path: "/dev/ttyUSB1", Role: detection.RoleLED, Confidence: detection.High},
		{Path: "/dev/ttyS0"},
	})
	assert.Contains(t, out.String(), "/dev/ttyUSB1: led satellite")
	assert.Contains(t, out.String(), "/dev/ttyS0: serial port (confidence: low)")
}
