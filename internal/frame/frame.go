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

// Package frame implements the byte-level wire format shared by the main
// controller and its serial satellites.
//
// A frame on the wire is
//
//	0x7B | command | length | payload[length] | checksum | 0x7D
//
// where checksum makes command, length, payload and checksum sum to zero
// (mod 256). The length prefix alone delimits the payload, so payload bytes
// equal to either marker need no escaping.
package frame

import (
	"errors"
	"fmt"
)

// ErrOversizedPayload is returned when a payload exceeds MaxPayload.
var ErrOversizedPayload = errors.New("oversized payload")

// Frame is one validated unit of the wire protocol. The payload lives in a
// fixed array so decoded frames never allocate.
type Frame struct {
	Data    [MaxPayload]byte
	Command byte
	Length  uint8
}

// New builds a frame from a command and payload, copying the payload.
func New(cmd byte, payload []byte) (Frame, error) {
	var f Frame
	if len(payload) > MaxPayload {
		return f, fmt.Errorf("command 0x%02X: %d bytes: %w", cmd, len(payload), ErrOversizedPayload)
	}
	f.Command = cmd
	f.Length = uint8(len(payload))
	copy(f.Data[:], payload)
	return f, nil
}

// Payload returns the valid part of the frame data.
func (f *Frame) Payload() []byte {
	if f.Length > MaxPayload {
		return f.Data[:]
	}
	return f.Data[:f.Length]
}

// String formats the frame for debug output
func (f Frame) String() string {
	return fmt.Sprintf("frame{cmd=0x%02X len=%d data=% X}", f.Command, f.Length, f.Payload())
}

// AppendFrame appends the wire encoding of cmd and payload to dst.
func AppendFrame(dst []byte, cmd byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return dst, fmt.Errorf("command 0x%02X: %d bytes: %w", cmd, len(payload), ErrOversizedPayload)
	}
	length := byte(len(payload))
	dst = append(dst, Header, cmd, length)
	dst = append(dst, payload...)
	dst = append(dst, frameChecksum(cmd, length, payload), Trailer)
	return dst, nil
}

// Encode returns the wire encoding of cmd and payload.
func Encode(cmd byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("command 0x%02X: %d bytes: %w", cmd, len(payload), ErrOversizedPayload)
	}
	return AppendFrame(make([]byte, 0, len(payload)+Overhead), cmd, payload)
}

// Bytes returns the wire encoding of f.
func (f *Frame) Bytes() []byte {
	// Length is bounded by construction so this cannot fail.
	b, _ := Encode(f.Command, f.Payload())
	return b
}
