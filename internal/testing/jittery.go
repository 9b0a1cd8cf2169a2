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

package testing

import (
	"math/rand/v2"
	"time"

	"github.com/ZaparooProject/go-ap2link"
)

// JitterConfig configures how JitteryTransport distorts reads.
type JitterConfig struct {
	// Seed makes the distortion reproducible; 0 picks a random seed
	Seed uint64
	// FragmentMinBytes is the smallest non-empty Poll result
	FragmentMinBytes int
	// EmptyPollPercent is the chance that a Poll reports nothing even though
	// bytes are waiting, as when they are still in the UART FIFO
	EmptyPollPercent int
	// FragmentReads splits pending data into random sized Poll results
	FragmentReads bool
}

// DefaultJitterConfig returns a configuration that fragments every read and
// hides data from one poll in five.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		FragmentReads:    true,
		FragmentMinBytes: 1,
		EmptyPollPercent: 20,
	}
}

// JitteryTransport wraps a Transport and delivers received bytes in random
// fragments and at random times. Bytes are never lost or reordered.
type JitteryTransport struct {
	ap2link.Transport
	rng     *rand.Rand
	pending []byte
	scratch []byte
	config  JitterConfig
	polls   int
	empty   int
}

// NewJitteryTransport wraps backend.
func NewJitteryTransport(backend ap2link.Transport, config JitterConfig) *JitteryTransport {
	var rng *rand.Rand
	if config.Seed != 0 {
		rng = rand.New(rand.NewPCG(config.Seed, config.Seed^0xDEADBEEF)) //nolint:gosec // Test code, not crypto
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // Test code, not crypto
	}

	if config.FragmentMinBytes < 1 {
		config.FragmentMinBytes = 1
	}

	return &JitteryTransport{
		Transport: backend,
		config:    config,
		rng:       rng,
		scratch:   make([]byte, 256),
	}
}

// fill moves everything the backend has into the local buffer.
func (j *JitteryTransport) fill() error {
	for {
		n, err := j.Transport.Poll(j.scratch)
		if err != nil {
			return err //nolint:wrapcheck // Pass-through wrapper
		}
		if n == 0 {
			return nil
		}
		j.pending = append(j.pending, j.scratch[:n]...)
	}
}

// Poll implements ap2link.Transport
func (j *JitteryTransport) Poll(p []byte) (int, error) {
	j.polls++
	if err := j.fill(); err != nil {
		return 0, err
	}
	if len(j.pending) == 0 || len(p) == 0 {
		return 0, nil
	}
	if j.config.EmptyPollPercent > 0 && j.rng.IntN(100) < j.config.EmptyPollPercent {
		j.empty++
		return 0, nil
	}

	n := min(len(p), len(j.pending))
	if j.config.FragmentReads && n > j.config.FragmentMinBytes {
		n = j.config.FragmentMinBytes + j.rng.IntN(n-j.config.FragmentMinBytes+1)
	}
	copy(p, j.pending[:n])
	j.pending = j.pending[n:]
	return n, nil
}

// ReadTimeout implements ap2link.Transport. A timed read waits for the
// rest of the data, so it is not fragmented.
func (j *JitteryTransport) ReadTimeout(p []byte, _ time.Duration) (int, error) {
	if err := j.fill(); err != nil {
		return 0, err
	}
	n := copy(p, j.pending)
	j.pending = j.pending[n:]
	return n, nil
}

// Flush implements ap2link.Transport
func (j *JitteryTransport) Flush() error {
	j.pending = nil
	return j.Transport.Flush() //nolint:wrapcheck // Pass-through wrapper
}

// SetBaudRate implements ap2link.BaudRateSetter when the backend does.
func (j *JitteryTransport) SetBaudRate(baud int) error {
	if s, ok := j.Transport.(ap2link.BaudRateSetter); ok {
		return s.SetBaudRate(baud) //nolint:wrapcheck // Pass-through wrapper
	}
	return nil
}

// Pending returns the number of bytes held back from the core.
func (j *JitteryTransport) Pending() int {
	return len(j.pending)
}

// Polls returns how many times Poll was called and how many of those were
// answered empty on purpose.
func (j *JitteryTransport) Polls() (total, hidden int) {
	return j.polls, j.empty
}
