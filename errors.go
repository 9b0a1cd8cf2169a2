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
	"errors"
	"fmt"
	"io"
	"runtime"
	"syscall"

	"github.com/ZaparooProject/go-ap2link/internal/frame"
)

// Error categories for retry and scan loop decisions
var (
	// Transport errors - potentially retryable
	ErrTransportTimeout  = errors.New("transport timeout")
	ErrTransportWrite    = errors.New("transport write failed")
	ErrTransportRead     = errors.New("transport read failed")
	ErrTransportClosed   = errors.New("transport is closed")
	ErrTransportNotReady = errors.New("transport not ready")

	// Framing errors - recovered locally by the decoder, exported for
	// transports that validate whole frames
	ErrFrameCorrupted   = errors.New("frame corrupted")
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// Data errors - not retryable
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrDataTooLarge     = errors.New("data too large")

	// ErrOversizedPayload is returned when a command payload does not fit the
	// satellite's fixed frame buffer.
	ErrOversizedPayload = frame.ErrOversizedPayload
)

// retryableErrors may succeed when the same operation is tried again.
var retryableErrors = []error{
	ErrTransportTimeout,
	ErrTransportRead,
	ErrTransportWrite,
	ErrFrameCorrupted,
	ErrChecksumMismatch,
}

// fatalErrors mean the link is gone for good.
var fatalErrors = []error{
	ErrTransportClosed,
	io.EOF,
	io.ErrClosedPipe,
}

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates the satellite did not answer in time
	ErrorTypeTimeout
)

// TransportError attaches the failing operation and port to a link error.
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

func (e *TransportError) Error() string {
	if e.Port == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether a single operation that failed with err is
// worth repeating.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return matchesAny(err, retryableErrors)
}

// IsFatal reports whether err means the satellite link is gone and the scan
// loop should stop. A fatal error is never retried; a non-fatal one may
// still not be retryable.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) && te.Type == ErrorTypePermanent {
		return true
	}
	return isDeviceGoneError(err) || matchesAny(err, fatalErrors)
}

// Errnos seen when a USB-serial adapter is unplugged mid transfer.
var (
	deviceGoneErrnos = []syscall.Errno{syscall.EIO, syscall.ENXIO, syscall.ENODEV}

	// ERROR_ACCESS_DENIED, ERROR_GEN_FAILURE, ERROR_NO_SUCH_DEVICE. Spelled
	// as numbers because syscall only names them on Windows.
	windowsDeviceGoneErrnos = []syscall.Errno{5, 31, 433}
)

func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	candidates := deviceGoneErrnos
	if runtime.GOOS == "windows" {
		candidates = append(candidates[:len(candidates):len(candidates)], windowsDeviceGoneErrnos...)
	}
	for _, gone := range candidates {
		if errno == gone {
			return true
		}
	}
	return false
}

// NewTransportError creates a transport error; transient and timeout errors
// are retryable.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTimeoutError reports a satellite that did not answer in time.
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewDataTooLargeError reports a write that can never fit.
func NewDataTooLargeError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrDataTooLarge, ErrorTypePermanent)
}

// NewTransportWriteError reports a failed write that may be retried.
func NewTransportWriteError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportWrite, ErrorTypeTransient)
}

// NewTransportReadError reports a failed read that may be retried.
func NewTransportReadError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportRead, ErrorTypeTransient)
}

// NewTransportNotReadyError reports a port that is open but not yet usable.
func NewTransportNotReadyError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportNotReady, ErrorTypeTimeout)
}
