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

// Package config loads the ap2link daemon configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ZaparooProject/go-ap2link"
	"github.com/ZaparooProject/go-ap2link/polling"
	"gopkg.in/yaml.v3"
)

// File is the on-disk layout. Zero values mean "use the default".
type File struct {
	Ports       PortsConfig       `yaml:"ports"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Polling     PollingConfig     `yaml:"polling"`
	Debug       DebugConfig       `yaml:"debug"`
}

// ---- PORTS ----

type PortsConfig struct {
	LED   string `yaml:"led"`
	Radio string `yaml:"radio"`
}

// ---- COORDINATOR ----

type CoordinatorConfig struct {
	IdleTimeout          *time.Duration `yaml:"idle_timeout"`
	FrameTimeout         time.Duration  `yaml:"frame_timeout"`
	StatusReadTimeout    time.Duration  `yaml:"status_read_timeout"`
	SettleDelay          *time.Duration `yaml:"settle_delay"`
	MaxStatusRecords     int            `yaml:"max_status_records"`
	InitBaud             int            `yaml:"init_baud"`
	RuntimeBaud          int            `yaml:"runtime_baud"`
	InitialLink          string         `yaml:"initial_link"`
	CapsLockKey          *uint8         `yaml:"capslock_key"`
	SleepEnabled         *bool          `yaml:"sleep"`
	CapsLockIndicator    bool           `yaml:"capslock_indicator"`
	StartupRetryAttempts int            `yaml:"startup_retry_attempts"`
}

// ---- POLLING ----

type PollingConfig struct {
	ScanInterval         time.Duration `yaml:"scan_interval"`
	MaxConsecutiveErrors *int          `yaml:"max_consecutive_errors"`
	SleepRecovery        *bool         `yaml:"sleep_recovery"`
	SleepThreshold       time.Duration `yaml:"sleep_threshold"`
}

// ---- DEBUG ----

type DebugConfig struct {
	Enabled bool   `yaml:"enabled"`
	LogDir  string `yaml:"log_dir"`
}

// Load reads and parses path. Unknown keys are rejected so typos surface
// instead of silently falling back to defaults.
func Load(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	var cfg File
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// empty file
			return &cfg, nil
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Parse decodes a configuration document held in memory.
func Parse(data []byte) (*File, error) {
	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// CoordinatorConfig overlays the file on ap2link.DefaultConfig.
// It MUST be called only after Validate().
func (f *File) CoordinatorConfig() *ap2link.Config {
	cfg := ap2link.DefaultConfig()
	c := f.Coordinator

	if c.IdleTimeout != nil {
		cfg.IdleTimeout = *c.IdleTimeout
	}
	if c.FrameTimeout > 0 {
		cfg.FrameTimeout = c.FrameTimeout
	}
	if c.StatusReadTimeout > 0 {
		cfg.StatusReadTimeout = c.StatusReadTimeout
	}
	if c.SettleDelay != nil {
		cfg.SettleDelay = *c.SettleDelay
	}
	if c.MaxStatusRecords > 0 {
		cfg.MaxStatusRecordsPerTick = c.MaxStatusRecords
	}
	if c.InitBaud > 0 {
		cfg.InitBaud = c.InitBaud
	}
	if c.RuntimeBaud > 0 {
		cfg.RuntimeBaud = c.RuntimeBaud
	}
	if c.InitialLink != "" {
		if l, err := ap2link.ParseLink(c.InitialLink); err == nil {
			cfg.InitialLink = l
		}
	}
	if c.CapsLockKey != nil {
		cfg.CapsLockKey = *c.CapsLockKey
	}
	if c.SleepEnabled != nil {
		cfg.SleepEnabled = *c.SleepEnabled
	}
	cfg.CapsLockIndicator = c.CapsLockIndicator
	if c.StartupRetryAttempts > 0 {
		cfg.Retry.MaxAttempts = c.StartupRetryAttempts
	}
	return cfg
}

// PollingConfig overlays the file on polling.DefaultConfig.
func (f *File) PollingConfig() *polling.Config {
	cfg := polling.DefaultConfig()
	p := f.Polling

	if p.ScanInterval > 0 {
		cfg.ScanInterval = p.ScanInterval
	}
	if p.MaxConsecutiveErrors != nil {
		cfg.MaxConsecutiveErrors = *p.MaxConsecutiveErrors
	}
	if p.SleepRecovery != nil {
		cfg.SleepRecovery.Enabled = *p.SleepRecovery
	}
	if p.SleepThreshold > 0 {
		cfg.SleepRecovery.TimeDiscontinuityThreshold = p.SleepThreshold
	}
	return cfg
}
