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

package polling

import "time"

// SleepRecoveryConfig configures resynchronization after host sleep/wake
type SleepRecoveryConfig struct {
	// Enabled enables sleep detection and recovery attempts
	Enabled bool

	// TimeDiscontinuityThreshold is the minimum elapsed time beyond the expected
	// scan interval that indicates a sleep occurred. Default: 2 seconds
	TimeDiscontinuityThreshold time.Duration

	// MaxRecoveryAttempts is the number of resync attempts before
	// treating as a fatal error. Default: 3
	MaxRecoveryAttempts int

	// RecoveryBackoff is the delay between recovery attempts
	RecoveryBackoff time.Duration
}

// DefaultSleepRecoveryConfig returns sensible defaults for sleep recovery
func DefaultSleepRecoveryConfig() SleepRecoveryConfig {
	return SleepRecoveryConfig{
		Enabled:                    true,
		TimeDiscontinuityThreshold: 2 * time.Second,
		MaxRecoveryAttempts:        3,
		RecoveryBackoff:            50 * time.Millisecond,
	}
}

// DetectSleep checks if the elapsed time since the last scan indicates a system sleep.
// Returns true if elapsed time exceeds (scanInterval + TimeDiscontinuityThreshold).
func (cfg SleepRecoveryConfig) DetectSleep(elapsed, scanInterval time.Duration) bool {
	if !cfg.Enabled {
		return false
	}
	return elapsed > scanInterval+cfg.TimeDiscontinuityThreshold
}

// Config holds scan loop configuration options
type Config struct {
	// ScanInterval is the period of the scan (tick) call
	ScanInterval time.Duration
	// MaxConsecutiveErrors stops the loop after this many failed scans in a
	// row. Zero means never.
	MaxConsecutiveErrors int
	// SleepRecovery configures resync after host sleep/wake cycles
	SleepRecovery SleepRecoveryConfig
}

// DefaultConfig returns the default scan loop configuration
func DefaultConfig() *Config {
	return &Config{
		ScanInterval:         2 * time.Millisecond,
		MaxConsecutiveErrors: 50,
		SleepRecovery:        DefaultSleepRecoveryConfig(),
	}
}
