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

import (
	"context"
	"time"

	"github.com/ZaparooProject/go-ap2link/internal/syncutil"
)

// Recoverer brings the satellite links back into a known state after the
// host was suspended or scans kept failing.
type Recoverer interface {
	// AttemptRecovery returns nil once the links are usable again.
	AttemptRecovery(ctx context.Context) error
}

// Resyncer is implemented by ap2link.Coordinator.
type Resyncer interface {
	Resync() error
}

// ResyncRecoverer retries Resync with a fixed backoff.
type ResyncRecoverer struct {
	target      Resyncer
	backoff     time.Duration
	maxAttempts int
	mu          syncutil.Mutex
}

// NewResyncRecoverer creates a recoverer for target. Non-positive values
// select 3 attempts and a 50ms backoff.
func NewResyncRecoverer(target Resyncer, backoff time.Duration, maxAttempts int) *ResyncRecoverer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	return &ResyncRecoverer{
		target:      target,
		backoff:     backoff,
		maxAttempts: maxAttempts,
	}
}

// AttemptRecovery implements Recoverer
func (r *ResyncRecoverer) AttemptRecovery(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for attempt := range r.maxAttempts {
		if attempt > 0 {
			timer := time.NewTimer(r.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if lastErr = r.target.Resync(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
