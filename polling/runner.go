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

// Package polling drives the coordinator's scan call from a ticker.
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-ap2link"
)

// ErrTooManyErrors is reported when scans keep failing and recovery did not help.
var ErrTooManyErrors = errors.New("too many consecutive scan errors")

// Scanner is one periodic unit of work, normally *ap2link.Coordinator.
type Scanner interface {
	Tick() error
}

// Callbacks defines callback functions for runner events
type Callbacks struct {
	// OnError is called for every failed scan
	OnError func(err error)
	// OnStopped is called once when the loop exits by itself
	OnStopped func(err error)
}

// Metrics tracks operational metrics for Runner
type Metrics struct {
	Scans           int64         // Total number of scans
	ScanErrors      int64         // Number of failed scans
	Recoveries      int64         // Number of successful recoveries
	LastScanLatency time.Duration // Duration of the last scan
}

// Runner calls Scanner.Tick every Config.ScanInterval on its own goroutine.
type Runner struct {
	scanner   Scanner
	recoverer Recoverer
	config    *Config
	callbacks Callbacks
	stopChan  chan struct{}
	wg        sync.WaitGroup // Tracks the loop goroutine
	// Atomic counters for metrics
	scans           int64
	scanErrors      int64
	recoveries      int64
	lastScanLatency int64 // in nanoseconds
	// Running state to prevent multiple goroutines
	running int64 // 0 = stopped, 1 = running
	// consecutive is only touched by the loop goroutine
	consecutive int
}

// NewRunner creates a runner. recoverer may be nil, in which case host sleep
// is ignored and repeated errors stop the loop. A nil config uses
// DefaultConfig.
func NewRunner(scanner Scanner, config *Config, callbacks Callbacks, recoverer Recoverer) *Runner {
	if config == nil {
		config = DefaultConfig()
	}
	return &Runner{
		scanner:   scanner,
		recoverer: recoverer,
		config:    config,
		callbacks: callbacks,
		stopChan:  make(chan struct{}, 1), // Buffered to prevent deadlock in Stop()
	}
}

// Start launches the scan loop. It is a no-op while already running. The
// loop also ends when ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	if r.config.ScanInterval <= 0 {
		return fmt.Errorf("scan interval %s: %w", r.config.ScanInterval, ap2link.ErrInvalidParameter)
	}
	if !atomic.CompareAndSwapInt64(&r.running, 0, 1) {
		return nil
	}
	// Discard a stop signal left over from a loop that already exited.
	select {
	case <-r.stopChan:
	default:
	}
	r.consecutive = 0
	r.wg.Add(1)
	go r.loop(ctx)
	return nil
}

// Running reports whether the loop goroutine is active.
func (r *Runner) Running() bool {
	return atomic.LoadInt64(&r.running) == 1
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.config.ScanInterval)

	var stopErr error
	defer func() {
		ticker.Stop()
		atomic.StoreInt64(&r.running, 0)
		if stopErr != nil && r.callbacks.OnStopped != nil {
			r.callbacks.OnStopped(stopErr)
		}
	}()

	last := time.Now()
	if stopErr = r.scan(ctx); stopErr != nil {
		return
	}

	for {
		select {
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if r.config.SleepRecovery.DetectSleep(elapsed, r.config.ScanInterval) {
				ap2link.Debugf("polling: %s gap between scans, host probably slept", elapsed)
				if stopErr = r.recover(ctx); stopErr != nil {
					return
				}
			}
			if stopErr = r.scan(ctx); stopErr != nil {
				return
			}
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// scan runs one Tick and returns a non-nil error when the loop must end.
func (r *Runner) scan(ctx context.Context) error {
	start := time.Now()
	err := r.scanner.Tick()
	atomic.AddInt64(&r.scans, 1)
	atomic.StoreInt64(&r.lastScanLatency, time.Since(start).Nanoseconds())

	if err == nil {
		r.consecutive = 0
		return nil
	}

	atomic.AddInt64(&r.scanErrors, 1)
	r.consecutive++
	if r.callbacks.OnError != nil {
		r.callbacks.OnError(err)
	}
	if ap2link.IsFatal(err) {
		return err
	}
	if r.config.MaxConsecutiveErrors > 0 && r.consecutive >= r.config.MaxConsecutiveErrors {
		if r.recoverer == nil {
			return fmt.Errorf("%w: %w", ErrTooManyErrors, err)
		}
		if rerr := r.recover(ctx); rerr != nil {
			return fmt.Errorf("%w: %w", ErrTooManyErrors, rerr)
		}
	}
	return nil
}

func (r *Runner) recover(ctx context.Context) error {
	if r.recoverer == nil {
		return nil
	}
	if err := r.recoverer.AttemptRecovery(ctx); err != nil {
		return fmt.Errorf("recovery failed: %w", err)
	}
	atomic.AddInt64(&r.recoveries, 1)
	r.consecutive = 0
	return nil
}

// Stop stops the runner and waits for the loop goroutine to exit
func (r *Runner) Stop(_ context.Context) error {
	select {
	case r.stopChan <- struct{}{}:
		// Successfully signaled stop
	default:
		// A stop is already pending
	}
	r.wg.Wait()
	return nil
}

// GetMetrics returns current operational metrics
func (r *Runner) GetMetrics() Metrics {
	return Metrics{
		Scans:           atomic.LoadInt64(&r.scans),
		ScanErrors:      atomic.LoadInt64(&r.scanErrors),
		Recoveries:      atomic.LoadInt64(&r.recoveries),
		LastScanLatency: time.Duration(atomic.LoadInt64(&r.lastScanLatency)),
	}
}
