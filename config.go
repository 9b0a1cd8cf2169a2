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

// StatusRecordSize is the size of one radio status record: ten reserved
// bytes followed by the capslock flag.
const StatusRecordSize = 11

// Config holds coordinator timing and behaviour options
type Config struct {
	// Retry guards the LED wakeup write during Start
	Retry *RetryConfig
	// IdleTimeout is how long without key presses or forwarded commands
	// before the LEDs are put to sleep
	IdleTimeout time.Duration
	// FrameTimeout abandons a partially received LED frame once the line
	// has been quiet this long
	FrameTimeout time.Duration
	// StatusReadTimeout bounds the wait for the rest of a radio status record
	StatusReadTimeout time.Duration
	// SettleDelay is the pause around satellite startup and bootloader steps
	SettleDelay time.Duration
	// MaxStatusRecordsPerTick caps radio status reads in a single scan
	MaxStatusRecordsPerTick int
	// InitBaud is used for the LED wakeup sequence, RuntimeBaud afterwards
	InitBaud    int
	RuntimeBaud int
	// InitialLink is the link selected at startup
	InitialLink Link
	// CapsLockKey is the LED index masked by the capslock indicator
	CapsLockKey uint8
	// SleepEnabled turns the idle sleep on
	SleepEnabled bool
	// CapsLockIndicator reflects capslock on the LED matrix
	CapsLockIndicator bool
}

// DefaultConfig returns the default coordinator configuration
func DefaultConfig() *Config {
	return &Config{
		Retry:                   DefaultRetryConfig(),
		IdleTimeout:             10 * time.Minute,
		FrameTimeout:            20 * time.Millisecond,
		StatusReadTimeout:       10 * time.Millisecond,
		SettleDelay:             15 * time.Millisecond,
		MaxStatusRecordsPerTick: 8,
		InitBaud:                115200,
		RuntimeBaud:             115200,
		InitialLink:             LinkUSB,
		CapsLockKey:             28, // row 2, col 0 on the 14 column matrix
		SleepEnabled:            true,
	}
}

// Validate checks the configuration for values the coordinator cannot use.
func (c *Config) Validate() error {
	switch {
	case c.IdleTimeout < 0:
		return fmt.Errorf("idle timeout %s: %w", c.IdleTimeout, ErrInvalidParameter)
	case c.FrameTimeout <= 0:
		return fmt.Errorf("frame timeout %s: %w", c.FrameTimeout, ErrInvalidParameter)
	case c.StatusReadTimeout <= 0:
		return fmt.Errorf("status read timeout %s: %w", c.StatusReadTimeout, ErrInvalidParameter)
	case c.SettleDelay < 0:
		return fmt.Errorf("settle delay %s: %w", c.SettleDelay, ErrInvalidParameter)
	case c.MaxStatusRecordsPerTick < 1:
		return fmt.Errorf("max status records per tick %d: %w", c.MaxStatusRecordsPerTick, ErrInvalidParameter)
	case c.InitBaud <= 0 || c.RuntimeBaud <= 0:
		return fmt.Errorf("baud rates %d/%d: %w", c.InitBaud, c.RuntimeBaud, ErrInvalidParameter)
	case !c.InitialLink.Valid():
		return fmt.Errorf("initial link %s: %w", c.InitialLink, ErrInvalidParameter)
	}
	return nil
}
