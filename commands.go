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
	"strings"
)

// Commands sent from the main controller to the LED satellite
const (
	CmdLEDOn                   byte = 0x01
	CmdLEDOff                  byte = 0x02
	CmdLEDSetProfile           byte = 0x03
	CmdLEDNextProfile          byte = 0x04
	CmdLEDPrevProfile          byte = 0x05
	CmdLEDNextIntensity        byte = 0x06
	CmdLEDNextAnimationSpeed   byte = 0x07
	CmdLEDSetForegroundColor   byte = 0x08
	CmdLEDClearForegroundColor byte = 0x09
	CmdLEDSetMask              byte = 0x0A
	CmdLEDClearMask            byte = 0x0B
	CmdLEDKeyDown              byte = 0x0C
	CmdLEDKeyUp                byte = 0x0D
	CmdLEDKeyBlink             byte = 0x0E
	CmdLEDGetStatus            byte = 0x0F
	CmdLEDEnterIAP             byte = 0x10
)

// Commands received from the satellites
const (
	CmdLEDStatus   byte = 0x20 // profiles, current, enabled, reactive[, intensity, errors]
	CmdLEDDebug    byte = 0x21 // opaque text for the host
	CmdLEDKeyAck   byte = 0x22 // row, col
	CmdRadioStatus byte = 0x30 // capslock[, link]
)

// Host command sub-commands (first byte of a host report)
const (
	HostForwardToLED byte = 0x01
)

// Keycode identifies a keyboard-level key action handled by the link core.
// Ordinary keys use KeyNone and are left to the keymap layer.
type Keycode uint16

// Keycodes handled by Coordinator.OnKeyEvent
const (
	KeyNone Keycode = iota
	KeyBT1
	KeyBT2
	KeyBT3
	KeyBT4
	KeyBTUnpair
	KeyUSB
	KeyLEDOn
	KeyLEDOff
	KeyLEDNextProfile
	KeyLEDPrevProfile
	KeyLEDNextIntensity
	KeyLEDSpeed
)

var keycodeNames = [...]string{
	KeyNone:             "none",
	KeyBT1:              "bt1",
	KeyBT2:              "bt2",
	KeyBT3:              "bt3",
	KeyBT4:              "bt4",
	KeyBTUnpair:         "unpair",
	KeyUSB:              "usb",
	KeyLEDOn:            "led_on",
	KeyLEDOff:           "led_off",
	KeyLEDNextProfile:   "next_profile",
	KeyLEDPrevProfile:   "prev_profile",
	KeyLEDNextIntensity: "next_intensity",
	KeyLEDSpeed:         "speed",
}

func (k Keycode) String() string {
	if int(k) < len(keycodeNames) {
		return keycodeNames[k]
	}
	return fmt.Sprintf("keycode(%d)", uint16(k))
}

// ParseKeycode looks a keycode up by its String name, ignoring case.
func ParseKeycode(name string) (Keycode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range keycodeNames {
		if n == name {
			return Keycode(i), nil
		}
	}
	return KeyNone, fmt.Errorf("unknown keycode %q: %w", name, ErrInvalidParameter)
}

// Peer returns the wireless peer selected by a BT1..BT4 key.
func (k Keycode) Peer() (Link, bool) {
	if k >= KeyBT1 && k <= KeyBT4 {
		return LinkPeer0 + Link(k-KeyBT1), true
	}
	return LinkUSB, false
}
