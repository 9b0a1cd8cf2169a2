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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	config := DefaultRetryConfig()
	assert.Greater(t, config.MaxAttempts, 1)
	assert.Greater(t, config.MaxBackoff, config.InitialBackoff)
	assert.Greater(t, config.BackoffMultiplier, 1.0)
	assert.GreaterOrEqual(t, config.Jitter, 0.0)
	assert.LessOrEqual(t, config.Jitter, 1.0)
}

func TestRetryWithConfig(t *testing.T) {
	t.Parallel()

	errPermanent := errors.New("permanent")
	tests := []struct {
		wantErr   error
		name      string
		failures  []error
		attempts  int
		wantCalls int
	}{
		{name: "first try succeeds", attempts: 3, wantCalls: 1},
		{
			name:      "transient then success",
			attempts:  3,
			failures:  []error{ErrTransportWrite, ErrTransportTimeout},
			wantCalls: 3,
		},
		{
			name:      "gives up after max attempts",
			attempts:  2,
			failures:  []error{ErrTransportWrite, ErrTransportWrite, ErrTransportWrite},
			wantCalls: 2,
			wantErr:   ErrTransportWrite,
		},
		{
			name:      "non-retryable stops immediately",
			attempts:  5,
			failures:  []error{errPermanent},
			wantCalls: 1,
			wantErr:   errPermanent,
		},
		{
			name:      "zero attempts still runs once",
			attempts:  0,
			failures:  []error{ErrTransportWrite},
			wantCalls: 1,
			wantErr:   ErrTransportWrite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			calls := 0
			err := RetryWithConfig(context.Background(), fastRetry(tt.attempts), func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRetryWithConfig_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithConfig(ctx, fastRetry(3), func() error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestRetryWithConfig_CancelDuringBackoffReturnsLastError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	config := &RetryConfig{MaxAttempts: 3, InitialBackoff: time.Hour, BackoffMultiplier: 1}

	err := RetryWithConfig(ctx, config, func() error {
		cancel()
		return ErrTransportWrite
	})
	require.ErrorIs(t, err, ErrTransportWrite)
}

func TestNextBackoff(t *testing.T) {
	t.Parallel()

	config := &RetryConfig{BackoffMultiplier: 2.0, MaxBackoff: 50 * time.Millisecond}
	assert.Equal(t, 20*time.Millisecond, nextBackoff(10*time.Millisecond, config))
	assert.Equal(t, 50*time.Millisecond, nextBackoff(40*time.Millisecond, config))
}

func TestJittered(t *testing.T) {
	t.Parallel()

	base := 10 * time.Millisecond
	assert.Equal(t, base, jittered(base, 0))
	for range 50 {
		got := jittered(base, 0.5)
		assert.GreaterOrEqual(t, got, base)
		assert.LessOrEqual(t, got, base+base/2)
	}
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	require.NoError(t, sleepContext(context.Background(), time.Millisecond))
	require.NoError(t, sleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
