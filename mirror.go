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
	"fmt"
	"sync/atomic"
)

// Status is the radio-reported state cached by StatusMirror.
type Status struct {
	Link     Link
	CapsLock bool
}

func (s Status) String() string {
	return fmt.Sprintf("capslock=%t link=%s", s.CapsLock, s.Link)
}

const (
	mirrorCapsBit   = 1 << 0
	mirrorLinkShift = 8
)

// StatusMirror holds the last known Status. Both fields share one atomic word
// so a reader never sees capslock from one update and the link from another.
type StatusMirror struct {
	word atomic.Uint32
}

// NewStatusMirror returns a mirror reporting capslock off on the given link.
func NewStatusMirror(initial Link) *StatusMirror {
	m := &StatusMirror{}
	m.Update(Status{Link: initial})
	return m
}

// Update replaces the whole cached status.
func (m *StatusMirror) Update(s Status) {
	m.word.Store(packStatus(s))
}

// UpdateCapsLock replaces the capslock flag and keeps the cached link.
func (m *StatusMirror) UpdateCapsLock(on bool) {
	for {
		old := m.word.Load()
		s := unpackStatus(old)
		s.CapsLock = on
		if m.word.CompareAndSwap(old, packStatus(s)) {
			return
		}
	}
}

// Read returns the latest cached status. It may be up to one scan stale.
func (m *StatusMirror) Read() Status {
	return unpackStatus(m.word.Load())
}

func packStatus(s Status) uint32 {
	w := uint32(s.Link) << mirrorLinkShift
	if s.CapsLock {
		w |= mirrorCapsBit
	}
	return w
}

func unpackStatus(w uint32) Status {
	return Status{
		CapsLock: w&mirrorCapsBit != 0,
		Link:     Link(w >> mirrorLinkShift),
	}
}
