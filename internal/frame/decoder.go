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

package frame

// ParseState is the position of the decoder inside the current frame
type ParseState uint8

const (
	StateAwaitHeader ParseState = iota
	StateAwaitCommand
	StateAwaitLength
	StateAwaitBody
	StateAwaitChecksum
	StateAwaitTrailer
)

func (s ParseState) String() string {
	switch s {
	case StateAwaitHeader:
		return "header"
	case StateAwaitCommand:
		return "command"
	case StateAwaitLength:
		return "length"
	case StateAwaitBody:
		return "body"
	case StateAwaitChecksum:
		return "checksum"
	case StateAwaitTrailer:
		return "trailer"
	default:
		return "unknown"
	}
}

// backlogSize bounds the bytes waiting to be (re)scanned. Unconsumed input
// never exceeds one frame plus the byte being fed, so two frames is ample.
const backlogSize = 2 * MaxFrameLength

// DecoderStats counts what the decoder has seen since creation or Reset
type DecoderStats struct {
	Frames   uint64 // frames delivered
	Rejected uint64 // candidate frames discarded (bad length, checksum or trailer)
	Skipped  uint64 // bytes outside any frame
	Overruns uint64 // backlog overflows, should stay zero
}

// Decoder turns a byte stream into frames, one byte at a time.
//
// A corrupted frame never costs more than itself: when a candidate fails
// validation the bytes after its header are scanned again, so a frame that
// started inside the corrupted one is still recovered. Because of that a
// single Feed can uncover more than one frame; the extra ones are returned
// by Next.
//
// Decoder is not safe for concurrent use.
type Decoder struct {
	cand    [MaxFrameLength]byte
	backlog [backlogSize]byte
	stats   DecoderStats
	n       int // bytes in cand
	bs, be  int // backlog window
	state   ParseState
}

// NewDecoder returns a decoder waiting for a header
func NewDecoder() *Decoder {
	return &Decoder{}
}

// State returns the current parse position.
func (d *Decoder) State() ParseState {
	return d.state
}

// Stats returns decoder counters.
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

// Buffered returns the number of received bytes not yet scanned.
func (d *Decoder) Buffered() int {
	return d.be - d.bs
}

// Reset drops any partial frame and pending bytes. Counters are kept.
func (d *Decoder) Reset() {
	d.n = 0
	d.bs, d.be = 0, 0
	d.state = StateAwaitHeader
}

// Feed consumes one byte and returns a frame if one completed.
func (d *Decoder) Feed(b byte) (Frame, bool) {
	if d.bs == d.be {
		d.bs, d.be = 0, 0
	}
	if d.be == len(d.backlog) {
		d.be = copy(d.backlog[:], d.backlog[d.bs:d.be])
		d.bs = 0
		if d.be == len(d.backlog) {
			d.stats.Overruns++
			d.n, d.bs, d.be = 0, 0, 0
			d.state = StateAwaitHeader
		}
	}
	d.backlog[d.be] = b
	d.be++
	return d.Next()
}

// Next returns a frame recovered from bytes already fed, if any. It never
// waits for input.
func (d *Decoder) Next() (Frame, bool) {
	for d.bs < d.be {
		b := d.backlog[d.bs]
		d.bs++
		if f, ok := d.step(b); ok {
			return f, true
		}
	}
	return Frame{}, false
}

// Timeout tells the decoder the line went quiet. A partially received frame
// is abandoned and its bytes rescanned; a frame found that way is returned.
// Call it until it returns false to leave the decoder idle.
func (d *Decoder) Timeout() (Frame, bool) {
	for {
		if f, ok := d.Next(); ok {
			return f, true
		}
		if d.n == 0 {
			d.state = StateAwaitHeader
			return Frame{}, false
		}
		d.reject()
	}
}

// InFrame reports whether a frame is partially received.
func (d *Decoder) InFrame() bool {
	return d.n > 0
}

func (d *Decoder) step(b byte) (Frame, bool) {
	switch d.state {
	case StateAwaitHeader:
		if b != Header {
			d.stats.Skipped++
			return Frame{}, false
		}
		d.cand[0] = b
		d.n = 1
		d.state = StateAwaitCommand
	case StateAwaitCommand:
		d.push(b)
		d.state = StateAwaitLength
	case StateAwaitLength:
		d.push(b)
		switch {
		case b > MaxPayload:
			d.reject()
		case b == 0:
			d.state = StateAwaitChecksum
		default:
			d.state = StateAwaitBody
		}
	case StateAwaitBody:
		d.push(b)
		if d.n == 3+int(d.cand[2]) {
			d.state = StateAwaitChecksum
		}
	case StateAwaitChecksum:
		d.push(b)
		if !ValidateFrameChecksum(d.cand[:], 1, d.n) {
			d.reject()
			return Frame{}, false
		}
		d.state = StateAwaitTrailer
	case StateAwaitTrailer:
		if b != Trailer {
			d.push(b)
			d.reject()
			return Frame{}, false
		}
		return d.deliver(), true
	}
	return Frame{}, false
}

func (d *Decoder) push(b byte) {
	d.cand[d.n] = b
	d.n++
}

func (d *Decoder) deliver() Frame {
	var f Frame
	f.Command = d.cand[1]
	f.Length = d.cand[2]
	copy(f.Data[:], d.cand[3:3+int(f.Length)])
	d.n = 0
	d.state = StateAwaitHeader
	d.stats.Frames++
	return f
}

// reject discards the candidate and queues everything after its header
// marker ahead of the unscanned input.
func (d *Decoder) reject() {
	d.stats.Rejected++
	var tmp [backlogSize]byte
	k := copy(tmp[:], d.cand[1:d.n])
	rest := d.be - d.bs
	if k+rest > len(tmp) {
		d.stats.Overruns++
	}
	k += copy(tmp[k:], d.backlog[d.bs:d.be])
	d.backlog = tmp
	d.bs, d.be = 0, k
	d.n = 0
	d.state = StateAwaitHeader
}
