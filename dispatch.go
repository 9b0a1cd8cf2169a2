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

import "github.com/ZaparooProject/go-ap2link/internal/frame"

// Frame is one decoded command from a satellite.
type Frame = frame.Frame

const (
	minLEDStatusPayload   = 4
	minRadioStatusPayload = 1
)

// Dispatch maps a decoded frame to the effects it causes. It has no side
// effects besides logging; unknown commands and short payloads yield nil.
func Dispatch(f Frame) []Effect {
	payload := f.Payload()

	switch f.Command {
	case CmdLEDStatus:
		if len(payload) < minLEDStatusPayload {
			Debugf("dispatch: short LED status (%d bytes)", len(payload))
			return nil
		}
		return []Effect{LEDStatusEffect{Status: parseLEDStatus(payload)}}

	case CmdLEDDebug:
		return []Effect{ForwardToHostEffect{Data: append([]byte(nil), payload...)}}

	case CmdLEDKeyAck:
		Debugf("dispatch: key ack % X", payload)
		return nil

	case CmdRadioStatus:
		if len(payload) < minRadioStatusPayload {
			Debugf("dispatch: empty radio status")
			return nil
		}
		update := UpdateStatusEffect{Status: Status{CapsLock: payload[0] != 0}}
		if len(payload) > 1 {
			if link := Link(payload[1]); link.Valid() {
				update.Status.Link = link
				update.HasLink = true
			} else {
				Debugf("dispatch: ignoring invalid link index %d", payload[1])
			}
		}
		return []Effect{update, CapsLockIndicatorEffect{On: update.Status.CapsLock}}

	default:
		Debugf("dispatch: unknown command 0x%02X (%d bytes)", f.Command, len(payload))
		return nil
	}
}

func parseLEDStatus(p []byte) LEDStatus {
	s := LEDStatus{
		Profiles:       p[0],
		CurrentProfile: p[1],
		MatrixEnabled:  p[2] != 0,
		IsReactive:     p[3] != 0,
	}
	if len(p) > 4 {
		s.Intensity = p[4]
	}
	if len(p) > 5 {
		s.Errors = p[5]
	}
	return s
}
