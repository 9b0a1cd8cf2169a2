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

// Package uart provides a serial port transport for the satellite links.
package uart

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ZaparooProject/go-ap2link"
	"go.bug.st/serial"
)

// DefaultBaudRate is the speed both satellites start at.
const DefaultBaudRate = 115200

const (
	traceSize       = 32
	maxFlushReads   = 16
	noTimeoutSet    = time.Duration(-2)
	drainMaxRetries = 3
)

// Transport implements ap2link.Transport over a serial port.
type Transport struct {
	port     serial.Port
	trace    *ap2link.TraceBuffer
	portName string
	timeout  time.Duration
	mu       sync.Mutex
}

// New opens portName at baud (DefaultBaudRate when zero), 8N1.
func New(portName string, baud int) (*Transport, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(portName, mode(baud))
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}
	return newWithPort(port, portName), nil
}

func newWithPort(port serial.Port, portName string) *Transport {
	return &Transport{
		port:     port,
		portName: portName,
		timeout:  noTimeoutSet,
		trace:    ap2link.NewTraceBuffer("uart", portName, traceSize),
	}
}

func mode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// ListPorts returns the serial ports present on this machine.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// Write sends all of p. It returns once the bytes are queued with the driver.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return 0, t.closedError("write")
	}
	t.trace.RecordTX(p, "")
	written := 0
	for written < len(p) {
		n, err := t.port.Write(p[written:])
		written += n
		if err != nil {
			if isInterruptedSystemCall(err) {
				continue
			}
			return written, t.wrap("write", err)
		}
		if n == 0 {
			return written, t.trace.WrapError(ap2link.NewTransportWriteError("write", t.portName))
		}
	}
	return written, nil
}

// Poll returns bytes already received without waiting.
func (t *Transport) Poll(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readOnce(p, 0, "poll")
}

// ReadTimeout reads until p is full or timeout has passed since the call.
func (t *Transport) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	deadline := time.Now().Add(timeout)
	total := 0
	for total < len(p) {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		n, err := t.readOnce(p[total:], remaining, "read")
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 && remaining == 0 {
			break
		}
	}
	if total < len(p) {
		t.trace.RecordTimeout(fmt.Sprintf("%d/%d bytes", total, len(p)))
	}
	return total, nil
}

func (t *Transport) readOnce(p []byte, timeout time.Duration, note string) (int, error) {
	if t.port == nil {
		return 0, t.closedError(note)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := t.setReadTimeout(timeout); err != nil {
		return 0, err
	}
	n, err := t.port.Read(p)
	if n > 0 {
		t.trace.RecordRX(p[:n], note)
	}
	if err != nil {
		if isInterruptedSystemCall(err) {
			return n, nil
		}
		return n, t.wrap(note, err)
	}
	return n, nil
}

func (t *Transport) setReadTimeout(timeout time.Duration) error {
	if t.timeout == timeout {
		return nil
	}
	if err := t.port.SetReadTimeout(timeout); err != nil {
		t.timeout = noTimeoutSet
		return fmt.Errorf("UART set timeout failed: %w", err)
	}
	t.timeout = timeout
	return nil
}

// Flush discards everything in the receive path, including bytes the
// driver has not handed over yet.
func (t *Transport) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return t.closedError("flush")
	}
	if err := t.port.ResetInputBuffer(); err != nil {
		return t.wrap("flush", err)
	}
	var scratch [64]byte
	for range maxFlushReads {
		n, err := t.readOnce(scratch[:], 0, "flush")
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// SetBaudRate implements ap2link.BaudRateSetter
func (t *Transport) SetBaudRate(baud int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return t.closedError("set baud")
	}
	if err := t.port.SetMode(mode(baud)); err != nil {
		return fmt.Errorf("UART set baud %d failed: %w", baud, err)
	}
	return nil
}

// Close waits for queued output and closes the port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	drainErr := t.drainWithRetry()
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	t.port = nil
	return drainErr
}

// Type implements ap2link.Transport
func (*Transport) Type() ap2link.TransportType {
	return ap2link.TransportUART
}

// PortName returns the device path.
func (t *Transport) PortName() string {
	return t.portName
}

// Trace returns recent wire traffic, newest last.
func (t *Transport) Trace() []ap2link.TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trace.Entries()
}

func (t *Transport) wrap(op string, err error) error {
	errType := ap2link.ErrorTypeTransient
	var portErr *serial.PortError
	switch {
	case ap2link.IsFatal(err):
		errType = ap2link.ErrorTypePermanent
	case errors.As(err, &portErr) && portErr.Code() == serial.PortClosed:
		errType = ap2link.ErrorTypePermanent
		err = fmt.Errorf("%w: %w", ap2link.ErrTransportClosed, err)
	}
	return t.trace.WrapError(ap2link.NewTransportError(op, t.portName, err, errType))
}

func (t *Transport) closedError(op string) error {
	return ap2link.NewTransportError(op, t.portName, ap2link.ErrTransportClosed, ap2link.ErrorTypePermanent)
}

// isInterruptedSystemCall checks if an error is due to EINTR
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry waits for output to be sent, retrying on EINTR.
func (t *Transport) drainWithRetry() error {
	baseDelay := 2 * time.Millisecond

	for attempt := range drainMaxRetries {
		err := t.port.Drain()
		if err == nil {
			return nil
		}
		if !isInterruptedSystemCall(err) || attempt == drainMaxRetries-1 {
			return fmt.Errorf("UART drain failed: %w", err)
		}
		time.Sleep(baseDelay << attempt)
	}
	return nil
}
