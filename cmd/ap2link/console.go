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
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/go-ap2link"
	"github.com/ZaparooProject/go-ap2link/polling"
	"github.com/chzyer/readline"
)

// coordinator is the part of *ap2link.Coordinator the console drives.
type coordinator interface {
	OnKeyEvent(ev ap2link.KeyEvent) bool
	OnHostCommand(data []byte)
	EnterBootloader(ctx context.Context) error
	Status() ap2link.Status
	LEDStatus() ap2link.LEDStatus
	PowerState() ap2link.PowerState
	Link() ap2link.Link
	Stats() ap2link.CoordinatorStats
}

// console is the interactive bench shell. It doubles as the coordinator's
// host handler so unhandled host commands and LED debug output show up
// between prompts.
type console struct {
	coord   coordinator
	out     io.Writer
	metrics func() polling.Metrics
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

// HandleHostCommand implements ap2link.HostHandler
func (c *console) HandleHostCommand(data []byte) {
	_, _ = fmt.Fprintf(c.out, "host command: % X\n", data)
}

// HandleLEDDebug implements ap2link.HostHandler
func (c *console) HandleLEDDebug(payload []byte) {
	_, _ = fmt.Fprintf(c.out, "led debug: %q\n", payload)
}

// run reads commands until quit, EOF or ctx is done.
func (c *console) run(ctx context.Context, cancel context.CancelFunc, rl *readline.Instance) {
	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			_, _ = fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
		if c.exec(ctx, line) {
			_, _ = fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// exec runs one command line and reports whether the console should exit.
func (c *console) exec(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		c.printHelp()
	case "key", "k":
		err = c.cmdKey(args)
	case "press", "p":
		err = c.cmdPress(args)
	case "fwd", "f":
		err = c.cmdForward(args)
	case "raw":
		err = c.cmdRaw(args)
	case "status", "s":
		c.cmdStatus()
	case "boot":
		err = c.cmdBoot(ctx)
	case "quit", "exit", "q":
		return true
	default:
		_, _ = fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	if err != nil {
		_, _ = fmt.Fprintf(c.out, "Error: %v\n", err)
	}
	return false
}

func (c *console) printHelp() {
	_, _ = fmt.Fprintln(c.out, `Commands:
  key <name>             press a special key (bt1..bt4, usb, unpair, led_on, led_off,
                         next_profile, prev_profile, next_intensity, speed)
  press <row> <col>      press an ordinary matrix key
  fwd <cmd> [hex...]     queue a command for the LED satellite
  raw <hex...>           deliver a raw host command
  status                 show link, power and LED state
  boot                   put the LED satellite into its bootloader
  quit                   exit`)
}

func (c *console) cmdKey(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: key <name>")
	}
	kc, err := ap2link.ParseKeycode(args[0])
	if err != nil {
		return err
	}
	handled := c.coord.OnKeyEvent(ap2link.KeyEvent{Keycode: kc, Pressed: true})
	if handled {
		_, _ = fmt.Fprintf(c.out, "%s: handled\n", kc)
	} else {
		_, _ = fmt.Fprintf(c.out, "%s: passed to keymap\n", kc)
	}
	return nil
}

func (c *console) cmdPress(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: press <row> <col>")
	}
	row, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		return fmt.Errorf("row: %w", err)
	}
	col, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		return fmt.Errorf("col: %w", err)
	}
	c.coord.OnKeyEvent(ap2link.KeyEvent{Row: uint8(row), Col: uint8(col), Pressed: true})
	return nil
}

func (c *console) cmdForward(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: fwd <cmd> [hex...]")
	}
	data, err := parseHex(args)
	if err != nil {
		return err
	}
	c.coord.OnHostCommand(append([]byte{ap2link.HostForwardToLED}, data...))
	return nil
}

func (c *console) cmdRaw(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: raw <hex...>")
	}
	data, err := parseHex(args)
	if err != nil {
		return err
	}
	c.coord.OnHostCommand(data)
	return nil
}

func (c *console) cmdStatus() {
	st := c.coord.Stats()
	_, _ = fmt.Fprintf(c.out, "link:   %s (%s)\n", c.coord.Link(), c.coord.PowerState())
	_, _ = fmt.Fprintf(c.out, "radio:  %s\n", c.coord.Status())
	_, _ = fmt.Fprintf(c.out, "leds:   %s\n", c.coord.LEDStatus())
	_, _ = fmt.Fprintf(c.out, "frames: %d ok, %d rejected, %d bytes skipped\n",
		st.Decoder.Frames, st.Decoder.Rejected, st.Decoder.Skipped)
	_, _ = fmt.Fprintf(c.out, "relay:  %d posted, %d dropped, %d forwarded\n",
		st.Relay.Posted, st.Relay.Dropped, st.Forwarded)
	_, _ = fmt.Fprintf(c.out, "radio records: %d (%d partial)\n", st.StatusRecords, st.PartialRecords)
	if c.metrics != nil {
		m := c.metrics()
		_, _ = fmt.Fprintf(c.out, "scans:  %d (%d errors, %d recoveries, last %s)\n",
			m.Scans, m.ScanErrors, m.Recoveries, m.LastScanLatency.Round(time.Microsecond))
	}
}

func (c *console) cmdBoot(ctx context.Context) error {
	if err := c.coord.EnterBootloader(ctx); err != nil {
		return fmt.Errorf("enter bootloader: %w", err)
	}
	_, _ = fmt.Fprintln(c.out, "LED satellite is in its bootloader")
	return nil
}

// parseHex accepts "7B 30", "0x7b 0x30" and "7b30".
func parseHex(args []string) ([]byte, error) {
	var sb strings.Builder
	for _, a := range args {
		a = strings.TrimPrefix(strings.ToLower(a), "0x")
		if len(a)%2 == 1 {
			a = "0" + a
		}
		sb.WriteString(a)
	}
	data, err := hex.DecodeString(sb.String())
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}
