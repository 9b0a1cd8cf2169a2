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

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEncode(t *testing.T, cmd byte, payload ...byte) []byte {
	t.Helper()
	b, err := Encode(cmd, payload)
	require.NoError(t, err)
	return b
}

// decodeAll feeds stream one byte at a time, collects everything the decoder
// produces and finally lets the line time out.
func decodeAll(d *Decoder, stream []byte) []Frame {
	var out []Frame
	for _, b := range stream {
		if f, ok := d.Feed(b); ok {
			out = append(out, f)
		}
		for {
			f, ok := d.Next()
			if !ok {
				break
			}
			out = append(out, f)
		}
	}
	for {
		f, ok := d.Timeout()
		if !ok {
			break
		}
		out = append(out, f)
	}
	return out
}

func TestDecoderSingleFrame(t *testing.T) {
	t.Parallel()
	d := NewDecoder()
	wire := mustEncode(t, 0x30, 0x01, 0x02)

	for i, b := range wire[:len(wire)-1] {
		_, ok := d.Feed(b)
		require.False(t, ok, "frame delivered early at byte %d", i)
	}
	assert.Equal(t, StateAwaitTrailer, d.State())

	f, ok := d.Feed(wire[len(wire)-1])
	require.True(t, ok)
	assert.Equal(t, byte(0x30), f.Command)
	assert.Equal(t, []byte{0x01, 0x02}, f.Payload())
	assert.Equal(t, StateAwaitHeader, d.State())
	assert.False(t, d.InFrame())
	assert.Equal(t, uint64(1), d.Stats().Frames)
}

func TestDecoderStateProgression(t *testing.T) {
	t.Parallel()
	d := NewDecoder()
	wire := mustEncode(t, 0x21, 0xAA)
	want := []ParseState{
		StateAwaitCommand,
		StateAwaitLength,
		StateAwaitBody,
		StateAwaitChecksum,
		StateAwaitTrailer,
		StateAwaitHeader,
	}
	for i, b := range wire {
		d.Feed(b)
		assert.Equal(t, want[i], d.State(), "after byte %d (%s)", i, d.State())
	}
}

func TestDecoderZeroLengthPayload(t *testing.T) {
	t.Parallel()
	d := NewDecoder()
	frames := decodeAll(d, []byte{0x7B, 0x22, 0x00, 0xDE, 0x7D})
	require.Len(t, frames, 1)
	assert.Equal(t, byte(0x22), frames[0].Command)
	assert.Empty(t, frames[0].Payload())
}

func TestDecoderBackToBackFrames(t *testing.T) {
	t.Parallel()
	var stream []byte
	for i := 0; i < 20; i++ {
		// Status payloads deliberately contain header and trailer values.
		stream = append(stream, mustEncode(t, 0x30, Header, byte(i), Trailer)...)
	}

	frames := decodeAll(NewDecoder(), stream)
	require.Len(t, frames, 20)
	for i, f := range frames {
		assert.Equal(t, []byte{Header, byte(i), Trailer}, f.Payload())
	}
}

func TestDecoderSkipsNoiseBetweenFrames(t *testing.T) {
	t.Parallel()
	var stream []byte
	stream = append(stream, 0x00, 0xFF, Trailer)
	stream = append(stream, mustEncode(t, 0x20, 0x03, 0x01, 0x01, 0x00)...)
	stream = append(stream, 0x55, 0x55)
	stream = append(stream, mustEncode(t, 0x22)...)

	d := NewDecoder()
	frames := decodeAll(d, stream)
	require.Len(t, frames, 2)
	assert.Equal(t, byte(0x20), frames[0].Command)
	assert.Equal(t, byte(0x22), frames[1].Command)
	assert.Equal(t, uint64(5), d.Stats().Skipped)
}

func TestDecoderRejectsOversizedLength(t *testing.T) {
	t.Parallel()
	stream := []byte{Header, 0x01, MaxPayload + 1}
	stream = append(stream, bytes.Repeat([]byte{0x11}, MaxPayload+1)...)
	stream = append(stream, 0x00, Trailer)

	d := NewDecoder()
	frames := decodeAll(d, stream)
	assert.Empty(t, frames, "oversized frames must be rejected, not truncated")
	assert.NotZero(t, d.Stats().Rejected)
}

func TestDecoderRoundTrip(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic test data

	for iter := 0; iter < 500; iter++ {
		var stream []byte
		count := 1 + rng.Intn(8)
		for i := 0; i < count; i++ {
			payload := make([]byte, rng.Intn(MaxPayload+1))
			_, _ = rng.Read(payload)
			stream = append(stream, mustEncode(t, byte(rng.Intn(256)), payload...)...)
		}

		frames := decodeAll(NewDecoder(), stream)
		require.Len(t, frames, count)

		var again []byte
		for i := range frames {
			again = append(again, frames[i].Bytes()...)
		}
		require.Equal(t, stream, again, "iteration %d", iter)
	}
}

func TestDecoderResynchronizesAfterCorruption(t *testing.T) {
	t.Parallel()
	f1 := mustEncode(t, 0x20, 0x03, 0x01, 0x01, 0x00, 0x02, 0x00)
	f2 := mustEncode(t, 0x21, 0x10, 0x20, 0x30)
	f3 := mustEncode(t, 0x30, 0x01, 0x02)
	f4 := mustEncode(t, 0x22)

	badChecksum := append([]byte(nil), f2...)
	badChecksum[3] ^= 0xFF
	badTrailer := append([]byte(nil), f2...)
	badTrailer[len(badTrailer)-1] = 0x00

	tests := []struct {
		name    string
		corrupt []byte
	}{
		{name: "bad trailer", corrupt: badTrailer},
		{name: "bad checksum", corrupt: badChecksum},
		{name: "truncated after first payload byte", corrupt: f2[:4]},
		{name: "truncated body", corrupt: f2[:6]},
		{name: "missing checksum and trailer", corrupt: f2[:len(f2)-1]},
		{name: "missing header", corrupt: f2[1:]},
		{name: "oversized length", corrupt: []byte{Header, 0x21, 0x50, 0x10, 0x20}},
		{name: "lone header", corrupt: []byte{Header}},
		{name: "repeated headers", corrupt: []byte{Header, Header, Header}},
		{name: "line noise", corrupt: []byte{0x00, 0xFF, Trailer}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var stream []byte
			stream = append(stream, f1...)
			stream = append(stream, tt.corrupt...)
			stream = append(stream, f3...)
			stream = append(stream, f4...)

			d := NewDecoder()
			frames := decodeAll(d, stream)
			require.Len(t, frames, 3)
			assert.Equal(t, byte(0x20), frames[0].Command)
			assert.Equal(t, byte(0x30), frames[1].Command)
			assert.Equal(t, []byte{0x01, 0x02}, frames[1].Payload())
			assert.Equal(t, byte(0x22), frames[2].Command)
			assert.False(t, d.InFrame())
			assert.Zero(t, d.Stats().Overruns)
		})
	}
}

func TestDecoderRecoversWithoutTimeoutUnderTraffic(t *testing.T) {
	t.Parallel()
	f3 := mustEncode(t, 0x30, 0x01, 0x02)
	f4 := mustEncode(t, 0x22)

	stream := []byte{Header}
	for i := 0; i < 8; i++ {
		stream = append(stream, f3...)
		stream = append(stream, f4...)
	}

	d := NewDecoder()
	var got int
	for _, b := range stream {
		if _, ok := d.Feed(b); ok {
			got++
		}
		for {
			if _, ok := d.Next(); !ok {
				break
			}
			got++
		}
	}
	assert.Equal(t, 16, got, "a stray header must not swallow frames once traffic continues")
}

func TestDecoderNextReturnsFramesUncoveredTogether(t *testing.T) {
	t.Parallel()
	// A bogus header claims a 12 byte body that holds two complete frames,
	// then fails its checksum. Both inner frames must come out.
	inner := append(mustEncode(t, 0x02), mustEncode(t, 0x03)...)
	stream := []byte{Header, 0x01, 0x0C}
	stream = append(stream, inner...)
	stream = append(stream, 0x00, 0x00, 0x00)

	d := NewDecoder()
	for _, b := range stream[:len(stream)-1] {
		_, ok := d.Feed(b)
		require.False(t, ok)
	}

	f, ok := d.Feed(stream[len(stream)-1])
	require.True(t, ok)
	assert.Equal(t, byte(0x02), f.Command)

	f, ok = d.Next()
	require.True(t, ok)
	assert.Equal(t, byte(0x03), f.Command)

	_, ok = d.Next()
	assert.False(t, ok)
	assert.Equal(t, uint64(1), d.Stats().Rejected)
}

func TestDecoderReset(t *testing.T) {
	t.Parallel()
	d := NewDecoder()
	wire := mustEncode(t, 0x30, 0x01)
	require.Len(t, decodeAll(d, wire), 1)
	for _, b := range wire[:3] {
		d.Feed(b)
	}
	require.True(t, d.InFrame())

	d.Reset()
	assert.False(t, d.InFrame())
	assert.Equal(t, StateAwaitHeader, d.State())
	assert.Zero(t, d.Buffered())
	assert.Equal(t, uint64(1), d.Stats().Frames, "counters survive Reset")

	frames := decodeAll(d, wire)
	require.Len(t, frames, 1)
	assert.Equal(t, uint64(2), d.Stats().Frames)
}
