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

package config

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-ap2link"
)

// ErrNoPorts is returned when either satellite port is unset.
var ErrNoPorts = errors.New("both led and radio ports must be set")

// Validate checks configuration correctness.
// It performs declarative validation only and does not mutate f.
func Validate(f *File) error {
	// ------------------------------------------------------------
	// PORTS
	// ------------------------------------------------------------

	if f.Ports.LED == "" || f.Ports.Radio == "" {
		return ErrNoPorts
	}
	if f.Ports.LED == f.Ports.Radio {
		return fmt.Errorf("led and radio share port %q: %w", f.Ports.LED, ap2link.ErrInvalidParameter)
	}

	// ------------------------------------------------------------
	// COORDINATOR
	// ------------------------------------------------------------

	c := f.Coordinator
	if c.InitialLink != "" {
		if _, err := ap2link.ParseLink(c.InitialLink); err != nil {
			return fmt.Errorf("coordinator.initial_link: %w", err)
		}
	}
	if c.FrameTimeout < 0 || c.StatusReadTimeout < 0 {
		return fmt.Errorf("coordinator timeouts must not be negative: %w", ap2link.ErrInvalidParameter)
	}
	if c.InitBaud < 0 || c.RuntimeBaud < 0 {
		return fmt.Errorf("coordinator baud rates must not be negative: %w", ap2link.ErrInvalidParameter)
	}
	if c.StartupRetryAttempts < 0 {
		return fmt.Errorf("coordinator.startup_retry_attempts %d: %w",
			c.StartupRetryAttempts, ap2link.ErrInvalidParameter)
	}
	if err := f.CoordinatorConfig().Validate(); err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}

	// ------------------------------------------------------------
	// POLLING
	// ------------------------------------------------------------

	p := f.Polling
	if p.ScanInterval < 0 || p.SleepThreshold < 0 {
		return fmt.Errorf("polling intervals must not be negative: %w", ap2link.ErrInvalidParameter)
	}
	if p.MaxConsecutiveErrors != nil && *p.MaxConsecutiveErrors < 0 {
		return fmt.Errorf("polling.max_consecutive_errors %d: %w",
			*p.MaxConsecutiveErrors, ap2link.ErrInvalidParameter)
	}

	return nil
}
