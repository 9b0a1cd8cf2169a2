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
	"strings"
	"time"
)

// Wire traces keep the last few frames exchanged on a link so that a failure
// can be reported together with what was on the line:
//
//	if te := ap2link.GetTrace(err); te != nil {
//	    log.Printf("wire trace:\n%s", te.FormatTrace())
//	}

// TraceDirection indicates the direction of wire data
type TraceDirection string

const (
	// TraceTX indicates data sent to a satellite
	TraceTX TraceDirection = "TX"
	// TraceRX indicates data received from a satellite
	TraceRX TraceDirection = "RX"
)

const (
	defaultTraceSize = 16
	maxTraceHexBytes = 32
	traceTimeLayout  = "15:04:05.000"
)

// TraceEntry is one write, read or timeout on the wire.
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

func (e TraceEntry) String() string {
	s := fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format(traceTimeLayout), e.Direction, formatHexBytes(e.Data))
	if e.Note != "" {
		s += " (" + e.Note + ")"
	}
	return s
}

// arrow is how FormatTrace shows the direction: > to the satellite, < from it.
func (e TraceEntry) arrow() string {
	if e.Direction == TraceRX {
		return "<"
	}
	return ">"
}

// TraceableError is an error carrying the wire trace of the link it
// happened on.
type TraceableError struct {
	Err       error
	Transport string
	Port      string
	Trace     []TraceEntry
}

func (e *TraceableError) Error() string {
	return e.Err.Error()
}

func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace renders the trace one entry per line, oldest first.
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s:%s] (no trace data)", e.Transport, e.Port)
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "[%s:%s] Wire trace (%d entries):\n", e.Transport, e.Port, len(e.Trace))
	for _, entry := range e.Trace {
		_, _ = fmt.Fprintf(&sb, "  %s %s", entry.arrow(), formatHexBytes(entry.Data))
		if entry.Note != "" {
			_, _ = fmt.Fprintf(&sb, " (%s)", entry.Note)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatHexBytes(data []byte) string {
	switch {
	case len(data) == 0:
		return "(empty)"
	case len(data) > maxTraceHexBytes:
		return fmt.Sprintf("% X ... (%d bytes total)", data[:maxTraceHexBytes], len(data))
	default:
		return fmt.Sprintf("% X", data)
	}
}

// TraceBuffer is a fixed size ring of the most recent entries on one link.
// It is not safe for concurrent use; transports record under their own lock.
type TraceBuffer struct {
	transport string
	port      string
	ring      []TraceEntry
	next      int
	full      bool
}

// NewTraceBuffer creates a trace buffer holding up to size entries.
func NewTraceBuffer(transport, port string, size int) *TraceBuffer {
	if size <= 0 {
		size = defaultTraceSize
	}
	return &TraceBuffer{
		transport: transport,
		port:      port,
		ring:      make([]TraceEntry, size),
	}
}

// RecordTX records bytes written to the satellite.
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note)
}

// RecordRX records bytes read from the satellite.
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note)
}

// RecordTimeout records a read that came back empty.
func (tb *TraceBuffer) RecordTimeout(note string) {
	tb.record(TraceRX, nil, "TIMEOUT: "+note)
}

func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	tb.ring[tb.next] = TraceEntry{
		Timestamp: time.Now(),
		Direction: dir,
		Note:      note,
		Data:      append([]byte(nil), data...),
	}
	tb.next++
	if tb.next == len(tb.ring) {
		tb.next = 0
		tb.full = true
	}
}

// Entries returns a copy of the recorded entries, oldest first.
func (tb *TraceBuffer) Entries() []TraceEntry {
	if !tb.full {
		return append([]TraceEntry(nil), tb.ring[:tb.next]...)
	}
	out := make([]TraceEntry, 0, len(tb.ring))
	out = append(out, tb.ring[tb.next:]...)
	return append(out, tb.ring[:tb.next]...)
}

// WrapError attaches a snapshot of the trace to err. A nil err stays nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &TraceableError{
		Err:       err,
		Transport: tb.transport,
		Port:      tb.port,
		Trace:     tb.Entries(),
	}
}

// Clear empties the trace.
func (tb *TraceBuffer) Clear() {
	clear(tb.ring)
	tb.next = 0
	tb.full = false
}

// HasTrace reports whether err carries a wire trace.
func HasTrace(err error) bool {
	return GetTrace(err) != nil
}

// GetTrace extracts the wire trace from err, or nil if there is none.
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
