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

import "fmt"

// Effect is an action produced by the dispatcher or the power machine and
// carried out by the Coordinator against its collaborators. Effects for one
// event are applied in slice order.
type Effect interface {
	isEffect()
}

// UpdateStatusEffect overwrites the status mirror. When HasLink is false only
// the capslock half is replaced.
type UpdateStatusEffect struct {
	Status  Status
	HasLink bool
}

// CapsLockIndicatorEffect asks the LED satellite to mask or unmask the
// capslock key.
type CapsLockIndicatorEffect struct {
	On bool
}

// LEDStatusEffect records the LED satellite's self-reported state.
type LEDStatusEffect struct {
	Status LEDStatus
}

// ForwardToHostEffect hands a satellite payload to the host handler.
type ForwardToHostEffect struct {
	Data []byte
}

// RenderingEffect turns LED matrix output on or off.
type RenderingEffect struct {
	Enabled bool
}

// RadioAction is a request for the radio satellite.
type RadioAction int

// Radio requests
const (
	RadioBroadcast RadioAction = iota
	RadioDisconnect
	RadioUnpair
)

func (a RadioAction) String() string {
	switch a {
	case RadioBroadcast:
		return "broadcast"
	case RadioDisconnect:
		return "disconnect"
	case RadioUnpair:
		return "unpair"
	default:
		return fmt.Sprintf("radio(%d)", int(a))
	}
}

// RadioEffect passes a link selection or pairing request to the radio.
type RadioEffect struct {
	Action RadioAction
	Link   Link
}

// BlinkEffect is a visual acknowledgement at one key position.
type BlinkEffect struct {
	Color    Color
	Row      uint8
	Col      uint8
	Count    uint8
	Duration uint8
}

func (UpdateStatusEffect) isEffect()      {}
func (CapsLockIndicatorEffect) isEffect() {}
func (LEDStatusEffect) isEffect()         {}
func (ForwardToHostEffect) isEffect()     {}
func (RenderingEffect) isEffect()         {}
func (RadioEffect) isEffect()             {}
func (BlinkEffect) isEffect()             {}

// Color is one LED colour in the satellite's byte order.
type Color struct {
	Blue  uint8
	Green uint8
	Red   uint8
	Alpha uint8
}

// ColorBlue is used to acknowledge link selection.
var ColorBlue = Color{Blue: 0xFF, Alpha: 0xFF}

// LEDStatus is what the LED satellite reports about itself.
type LEDStatus struct {
	Profiles       uint8
	CurrentProfile uint8
	Intensity      uint8
	Errors         uint8
	MatrixEnabled  bool
	IsReactive     bool
}

func (s LEDStatus) String() string {
	return fmt.Sprintf("profile %d/%d enabled=%t reactive=%t intensity=%d errors=%d",
		s.CurrentProfile, s.Profiles, s.MatrixEnabled, s.IsReactive, s.Intensity, s.Errors)
}
