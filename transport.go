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
	"time"

	"github.com/ZaparooProject/go-ap2link/internal/syncutil"
)

// Transport is a byte serial connection to one satellite controller.
// This can be implemented by a UART port or an in-memory simulator.
//
// None of the methods may block beyond the timeout they are given; an empty
// receive buffer is reported as zero bytes read, never as an error.
type Transport interface {
	// Write queues bytes for transmission. It does not wait for the
	// satellite to consume them.
	Write(p []byte) (int, error)

	// Poll copies bytes that have already arrived into p and returns
	// immediately. Zero means nothing is pending.
	Poll(p []byte) (int, error)

	// ReadTimeout reads until p is full or timeout elapses.
	ReadTimeout(p []byte, timeout time.Duration) (int, error)

	// Flush discards everything waiting in the receive buffer.
	Flush() error

	// Close closes the transport
	Close() error

	// Type returns the transport type
	Type() TransportType
}

// BaudRateSetter is implemented by transports whose speed can change at runtime.
type BaudRateSetter interface {
	SetBaudRate(baud int) error
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents a UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// MockTransport provides an in-memory implementation of Transport for testing.
// Bytes injected with Inject are what the satellite "sent"; bytes written by
// the core are recorded and can be inspected with Written.
type MockTransport struct {
	writeErr error
	rx       []byte
	tx       []byte
	bauds    []int
	writes   int
	flushes  int
	mu       syncutil.Mutex
	closed   bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Write implements Transport
func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrTransportClosed
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.tx = append(m.tx, p...)
	m.writes++
	return len(p), nil
}

// Poll implements Transport
func (m *MockTransport) Poll(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrTransportClosed
	}
	n := copy(p, m.rx)
	m.rx = m.rx[n:]
	return n, nil
}

// ReadTimeout implements Transport. The mock never waits: whatever is pending
// when the call is made is all the caller gets.
func (m *MockTransport) ReadTimeout(p []byte, _ time.Duration) (int, error) {
	return m.Poll(p)
}

// Flush implements Transport
func (m *MockTransport) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rx = nil
	m.flushes++
	return nil
}

// Close implements Transport
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Type implements Transport
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// SetBaudRate implements BaudRateSetter
func (m *MockTransport) SetBaudRate(baud int) error {
	m.mu.Lock()
	m.bauds = append(m.bauds, baud)
	m.mu.Unlock()
	return nil
}

// Test helper methods

// Inject appends bytes to the receive buffer as if the satellite sent them.
func (m *MockTransport) Inject(p ...byte) {
	m.mu.Lock()
	m.rx = append(m.rx, p...)
	m.mu.Unlock()
}

// Pending returns the number of injected bytes not yet read.
func (m *MockTransport) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rx)
}

// Written returns a copy of everything written so far.
func (m *MockTransport) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.tx...)
}

// WriteCount returns how many Write calls succeeded.
func (m *MockTransport) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// ResetWritten clears the record of written bytes.
func (m *MockTransport) ResetWritten() {
	m.mu.Lock()
	m.tx = nil
	m.writes = 0
	m.mu.Unlock()
}

// FlushCount returns how many times Flush was called.
func (m *MockTransport) FlushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// BaudRates returns every baud rate set on the transport, in order.
func (m *MockTransport) BaudRates() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.bauds...)
}

// SetWriteError makes every following Write fail with err (nil clears it).
func (m *MockTransport) SetWriteError(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}
