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

// Package testing provides simulated satellite controllers that speak the
// same serial protocol as the real LED and radio chips, so the coordinator
// can be exercised end to end without hardware.
package testing

import (
	"bytes"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-ap2link"
	"github.com/ZaparooProject/go-ap2link/internal/frame"
	"github.com/ZaparooProject/go-ap2link/internal/syncutil"
)

// line is the satellite end of an in-memory serial connection. Bytes in
// toCore are what the core will read next.
type line struct {
	toCore  []byte
	bauds   []int
	flushes int
	mu      syncutil.Mutex
	closed  bool
}

// Poll implements ap2link.Transport
func (l *line) Poll(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ap2link.ErrTransportClosed
	}
	n := copy(p, l.toCore)
	l.toCore = l.toCore[n:]
	return n, nil
}

// ReadTimeout implements ap2link.Transport. The simulator answers
// synchronously, so everything the satellite will send is already queued.
func (l *line) ReadTimeout(p []byte, _ time.Duration) (int, error) {
	return l.Poll(p)
}

// Flush implements ap2link.Transport
func (l *line) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.toCore = nil
	l.flushes++
	return nil
}

// Close implements ap2link.Transport
func (l *line) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

// Type implements ap2link.Transport
func (*line) Type() ap2link.TransportType {
	return ap2link.TransportMock
}

// SetBaudRate implements ap2link.BaudRateSetter
func (l *line) SetBaudRate(baud int) error {
	l.mu.Lock()
	l.bauds = append(l.bauds, baud)
	l.mu.Unlock()
	return nil
}

// BaudRates returns every baud rate the core selected, in order.
func (l *line) BaudRates() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.bauds...)
}

// FlushCount returns how many times the core flushed the line.
func (l *line) FlushCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushes
}

// Pending returns the number of bytes the core has not read yet.
func (l *line) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.toCore)
}

// SendRaw queues bytes for the core verbatim, for line noise and partial
// frames.
func (l *line) SendRaw(p ...byte) {
	l.mu.Lock()
	l.toCore = append(l.toCore, p...)
	l.mu.Unlock()
}

// =============================================================================
// LED satellite
// =============================================================================

// ledMaxIntensity is the brightest level before the intensity wraps to 0.
const ledMaxIntensity = 8

// LEDCommand is one decoded frame the core sent to the LED satellite.
type LEDCommand struct {
	Payload []byte
	Command byte
}

func (c LEDCommand) String() string {
	return fmt.Sprintf("0x%02X % X", c.Command, c.Payload)
}

// LEDSatellite simulates the LED controller. It decodes the core's frames,
// tracks matrix state and answers status requests. Every state change is
// reported back with a status frame, as the real firmware does.
type LEDSatellite struct {
	line
	decoder  *frame.Decoder
	commands []LEDCommand
	status   ap2link.LEDStatus
	wakeups  int
	inIAP    bool
	ackKeys  bool
}

// NewLEDSatellite creates an LED satellite starting in status.
func NewLEDSatellite(status ap2link.LEDStatus) *LEDSatellite {
	return &LEDSatellite{
		decoder: frame.NewDecoder(),
		status:  status,
	}
}

// SetKeyAcks makes the satellite acknowledge every forwarded keypress.
func (s *LEDSatellite) SetKeyAcks(enabled bool) {
	s.mu.Lock()
	s.ackKeys = enabled
	s.mu.Unlock()
}

// Write implements ap2link.Transport
func (s *LEDSatellite) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ap2link.ErrTransportClosed
	}
	n := len(p)
	// The wakeup blob is line noise for the receiver; it restarts parsing
	// after it.
	if i := bytes.Index(p, frame.WakeupSequence[:]); i >= 0 {
		s.wakeups++
		s.decoder.Reset()
		p = p[i+len(frame.WakeupSequence):]
	}
	for _, b := range p {
		f, ok := s.decoder.Feed(b)
		for ok {
			s.handle(&f)
			f, ok = s.decoder.Next()
		}
	}
	return n, nil
}

func (s *LEDSatellite) handle(f *frame.Frame) {
	payload := append([]byte(nil), f.Payload()...)
	s.commands = append(s.commands, LEDCommand{Command: f.Command, Payload: payload})

	changed := true
	switch f.Command {
	case ap2link.CmdLEDOn:
		s.status.MatrixEnabled = true
	case ap2link.CmdLEDOff:
		s.status.MatrixEnabled = false
	case ap2link.CmdLEDSetProfile:
		if len(payload) == 0 || s.status.Profiles == 0 {
			return
		}
		s.status.CurrentProfile = payload[0] % s.status.Profiles
	case ap2link.CmdLEDNextProfile:
		if s.status.Profiles == 0 {
			return
		}
		s.status.CurrentProfile = (s.status.CurrentProfile + 1) % s.status.Profiles
	case ap2link.CmdLEDPrevProfile:
		if s.status.Profiles == 0 {
			return
		}
		s.status.CurrentProfile = (s.status.CurrentProfile + s.status.Profiles - 1) % s.status.Profiles
	case ap2link.CmdLEDNextIntensity:
		s.status.Intensity = (s.status.Intensity + 1) % (ledMaxIntensity + 1)
	case ap2link.CmdLEDKeyDown:
		changed = false
		if s.ackKeys && len(payload) >= 2 {
			s.send(ap2link.CmdLEDKeyAck, payload[:2]...)
		}
	case ap2link.CmdLEDEnterIAP:
		changed = false
		s.inIAP = true
	case ap2link.CmdLEDGetStatus:
	default:
		changed = false
	}
	if changed {
		s.sendStatus()
	}
}

func (s *LEDSatellite) sendStatus() {
	st := s.status
	s.send(ap2link.CmdLEDStatus,
		st.Profiles, st.CurrentProfile, boolByte(st.MatrixEnabled), boolByte(st.IsReactive),
		st.Intensity, st.Errors)
}

// send queues a frame for the core. The caller holds s.mu.
func (s *LEDSatellite) send(cmd byte, payload ...byte) {
	wire, err := frame.AppendFrame(s.toCore, cmd, payload)
	if err != nil {
		panic(fmt.Sprintf("led satellite: %v", err))
	}
	s.toCore = wire
}

// Send queues an unsolicited frame, such as debug output, for the core.
func (s *LEDSatellite) Send(cmd byte, payload ...byte) {
	s.mu.Lock()
	s.send(cmd, payload...)
	s.mu.Unlock()
}

// Commands returns the frames received so far.
func (s *LEDSatellite) Commands() []LEDCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LEDCommand(nil), s.commands...)
}

// CommandIDs returns just the command ids received so far.
func (s *LEDSatellite) CommandIDs() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]byte, len(s.commands))
	for i, c := range s.commands {
		ids[i] = c.Command
	}
	return ids
}

// ClearCommands forgets the received frames.
func (s *LEDSatellite) ClearCommands() {
	s.mu.Lock()
	s.commands = nil
	s.mu.Unlock()
}

// Status returns the satellite's current state.
func (s *LEDSatellite) Status() ap2link.LEDStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Wakeups returns how many wakeup sequences were received.
func (s *LEDSatellite) Wakeups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wakeups
}

// InIAP reports whether the satellite was told to enter its bootloader.
func (s *LEDSatellite) InIAP() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inIAP
}

// DecoderStats exposes how the satellite's receiver saw the core's output.
func (s *LEDSatellite) DecoderStats() frame.DecoderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decoder.Stats()
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// =============================================================================
// Radio satellite
// =============================================================================

// Messages the radio firmware understands. Peer messages carry the peer
// index in one trailing byte.
var (
	radioMsgWakeup    = []byte{0x7b, 0x12, 0x53, 0x00, 0x03, 0x00, 0x01, 0x7d, 0x02, 0x01, 0x02}
	radioMsgBroadcast = []byte{0x7b, 0x12, 0x53, 0x00, 0x03, 0x00, 0x00, 0x7d, 0x40, 0x01}
	radioMsgConnect   = []byte{0x7b, 0x12, 0x53, 0x00, 0x03, 0x00, 0x00, 0x7d, 0x40, 0x04}
	radioMsgUnpair    = []byte{0x7b, 0x12, 0x53, 0x00, 0x02, 0x00, 0x00, 0x7d, 0x40, 0x05}
	radioMsgBootload  = []byte{0x7b, 0x10, 0x51, 0x10, 0x03, 0x00, 0x00, 0x7d, 0x02, 0x01, 0x01}
)

// RadioSatellite simulates the wireless controller. It names every message
// the core writes and sends status records on request.
type RadioSatellite struct {
	line
	events []string
}

// NewRadioSatellite creates a radio satellite.
func NewRadioSatellite() *RadioSatellite {
	return &RadioSatellite{}
}

// Write implements ap2link.Transport. Each write is one radio message.
func (r *RadioSatellite) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ap2link.ErrTransportClosed
	}
	r.events = append(r.events, classifyRadioMessage(p))
	return len(p), nil
}

func classifyRadioMessage(p []byte) string {
	peerMsg := func(prefix []byte) (byte, bool) {
		if len(p) == len(prefix)+1 && bytes.HasPrefix(p, prefix) {
			return p[len(prefix)], true
		}
		return 0, false
	}
	switch {
	case bytes.Equal(p, radioMsgWakeup):
		return "wakeup"
	case bytes.Equal(p, radioMsgUnpair):
		return "unpair"
	case bytes.Equal(p, radioMsgBootload):
		return "bootload"
	}
	if peer, ok := peerMsg(radioMsgBroadcast); ok {
		return fmt.Sprintf("broadcast %d", peer)
	}
	if peer, ok := peerMsg(radioMsgConnect); ok {
		return fmt.Sprintf("connect %d", peer)
	}
	return fmt.Sprintf("unknown % X", p)
}

// SendStatus queues one complete status record.
func (r *RadioSatellite) SendStatus(capsLock bool) {
	var rec [ap2link.StatusRecordSize]byte
	rec[ap2link.StatusRecordSize-1] = boolByte(capsLock)
	r.SendRaw(rec[:]...)
}

// Events returns the messages received so far, in order.
func (r *RadioSatellite) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// ClearEvents forgets the received messages.
func (r *RadioSatellite) ClearEvents() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
