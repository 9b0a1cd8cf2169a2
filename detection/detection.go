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

// Package detection finds serial ports that a satellite controller may be
// attached to and identifies the LED satellite by asking it for its status.
package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-ap2link"
	"github.com/ZaparooProject/go-ap2link/internal/frame"
	"github.com/ZaparooProject/go-ap2link/internal/syncutil"
	"github.com/ZaparooProject/go-ap2link/transport/uart"
	"go.bug.st/serial/enumerator"
)

// Confidence represents the confidence level of device detection
type Confidence int

const (
	// Low confidence - an unrecognised serial port
	Low Confidence = iota
	// Medium confidence - a known USB-serial adapter
	Medium
	// High confidence - the satellite answered a probe
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// Role is what a detected port is attached to.
type Role int

const (
	// RoleUnknown is any port that did not answer as an LED satellite. The
	// radio satellite does not answer unprompted, so it shows up here too.
	RoleUnknown Role = iota
	// RoleLED is a port whose far end answered a status request
	RoleLED
)

func (r Role) String() string {
	if r == RoleLED {
		return "led"
	}
	return "unknown"
}

// DeviceInfo represents a candidate satellite port
type DeviceInfo struct {
	// Additional metadata (vidpid, serial, product)
	Metadata map[string]string
	// Connection path (e.g., "/dev/ttyUSB0", "COM3")
	Path string
	// LEDStatus is the status the LED satellite reported, for RoleLED
	LEDStatus  ap2link.LEDStatus
	Role       Role
	Confidence Confidence
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	if d.Role == RoleLED {
		return fmt.Sprintf("%s: led satellite (%s)", d.Path, d.LEDStatus)
	}
	return fmt.Sprintf("%s: serial port (confidence: %s)", d.Path, d.Confidence)
}

// Options configures the detection behavior
type Options struct {
	// USB VID:PID pairs to skip (e.g., ["1234:5678"])
	Blocklist []string
	// Device paths to explicitly ignore (e.g., ["/dev/ttyUSB0", "COM2"])
	IgnorePaths []string
	// ProbeTimeout bounds the wait for a status reply on one port
	ProbeTimeout time.Duration
	// CacheTTL is how long results are reused; zero disables the cache
	CacheTTL time.Duration
	// BaudRate used for probing
	BaudRate int
	// Probe sends a wakeup and a status request to every candidate port
	Probe bool
}

// DefaultOptions returns sensible default detection options
func DefaultOptions() Options {
	return Options{
		Blocklist:    DefaultBlocklist(),
		ProbeTimeout: 250 * time.Millisecond,
		CacheTTL:     30 * time.Second,
		BaudRate:     uart.DefaultBaudRate,
		Probe:        true,
	}
}

// ErrNoDevicesFound indicates no candidate ports were found
var ErrNoDevicesFound = errors.New("no satellite ports found")

// knownAdapters are USB-serial bridges commonly wired to satellite debug
// headers.
var knownAdapters = []string{
	"067B:2303", // Prolific PL2303
	"0403:6001", // FTDI FT232
	"10C4:EA60", // Silicon Labs CP210x
	"1A86:7523", // QinHeng CH340
}

// Detector enumerates and probes serial ports. The zero value is not usable;
// call New.
type Detector struct {
	list    func() ([]*enumerator.PortDetails, error)
	open    func(path string, baud int) (ap2link.Transport, error)
	cached  []DeviceInfo
	cacheAt time.Time
	now     func() time.Time
	mu      syncutil.Mutex
}

// New creates a detector for the ports on this machine.
func New() *Detector {
	return &Detector{
		list: enumerator.GetDetailedPortsList,
		open: func(path string, baud int) (ap2link.Transport, error) {
			return uart.New(path, baud)
		},
		now: time.Now,
	}
}

var defaultDetector = New()

// Detect searches for satellite ports using the default detector
func Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	return defaultDetector.Detect(ctx, opts)
}

// Detect lists serial ports, drops blocked and ignored ones and, when
// opts.Probe is set, probes each for an LED satellite. LED satellites sort
// first. A nil opts means DefaultOptions.
func (d *Detector) Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if opts.CacheTTL > 0 && d.cached != nil && d.now().Sub(d.cacheAt) <= opts.CacheTTL {
		// Cached results bypass enumeration, so filter them again.
		if devices := filterDevices(d.cached, opts); len(devices) > 0 {
			return devices, nil
		}
		return nil, ErrNoDevicesFound
	}

	ports, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var leds, others []DeviceInfo
	for _, port := range ports {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		device := newDeviceInfo(port)
		if isFiltered(device, opts) {
			continue
		}
		if opts.Probe {
			if status, ok := d.probe(ctx, port.Name, opts); ok {
				device.Role = RoleLED
				device.Confidence = High
				device.LEDStatus = status
				leds = append(leds, device)
				continue
			}
		}
		others = append(others, device)
	}

	devices := append(leds, others...)
	if len(devices) == 0 {
		// Clear stale cache so a now-disconnected port is not reported.
		d.cached = nil
		return nil, ErrNoDevicesFound
	}
	d.cached = append([]DeviceInfo(nil), devices...)
	d.cacheAt = d.now()
	return devices, nil
}

// ClearCache forgets cached results.
func (d *Detector) ClearCache() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}

func newDeviceInfo(port *enumerator.PortDetails) DeviceInfo {
	device := DeviceInfo{
		Path:       port.Name,
		Confidence: Low,
		Metadata:   make(map[string]string),
	}
	if port.IsUSB {
		if vidpid := formatVIDPID(port.VID, port.PID); vidpid != "" {
			device.Metadata["vidpid"] = vidpid
			if matchesVIDPID(vidpid, knownAdapters) {
				device.Confidence = Medium
			}
		}
		if port.SerialNumber != "" {
			device.Metadata["serial"] = port.SerialNumber
		}
		if port.Product != "" {
			device.Metadata["product"] = port.Product
		}
	}
	return device
}

func isFiltered(device DeviceInfo, opts *Options) bool {
	if IsPathIgnored(device.Path, opts.IgnorePaths) {
		return true
	}
	vidpid, ok := device.Metadata["vidpid"]
	return ok && IsBlocked(vidpid, opts.Blocklist)
}

// filterDevices applies IgnorePaths and Blocklist filtering to a device list.
func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	var filtered []DeviceInfo
	for _, device := range devices {
		if !isFiltered(device, opts) {
			filtered = append(filtered, device)
		}
	}
	return filtered
}

// probe wakes the port's far end and waits for an LED status frame.
//
// A single attempt is made per port: anything that is not a satellite gets
// as little traffic as possible.
func (d *Detector) probe(ctx context.Context, path string, opts *Options) (ap2link.LEDStatus, bool) {
	t, err := d.open(path, opts.BaudRate)
	if err != nil {
		ap2link.Debugf("detect: %s: %v", path, err)
		return ap2link.LEDStatus{}, false
	}
	defer func() { _ = t.Close() }()

	request, err := frame.AppendFrame(append([]byte(nil), frame.WakeupSequence[:]...), ap2link.CmdLEDGetStatus, nil)
	if err != nil {
		return ap2link.LEDStatus{}, false
	}
	if _, err := t.Write(request); err != nil {
		ap2link.Debugf("detect: %s: %v", path, err)
		return ap2link.LEDStatus{}, false
	}

	deadline := time.Now().Add(opts.ProbeTimeout)
	decoder := frame.NewDecoder()
	buf := make([]byte, 64)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return ap2link.LEDStatus{}, false
		}
		n, err := t.ReadTimeout(buf, probeReadSlice)
		if err != nil {
			return ap2link.LEDStatus{}, false
		}
		for _, b := range buf[:n] {
			f, ok := decoder.Feed(b)
			for ok {
				for _, e := range ap2link.Dispatch(f) {
					if st, isStatus := e.(ap2link.LEDStatusEffect); isStatus {
						return st.Status, true
					}
				}
				f, ok = decoder.Next()
			}
		}
	}
	return ap2link.LEDStatus{}, false
}

const probeReadSlice = 20 * time.Millisecond
