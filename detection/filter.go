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

package detection

import (
	"path/filepath"
	"strings"
)

// DefaultBlocklist returns USB adapters that must never receive a probe.
// Entries are VID:PID in hexadecimal, compared case-insensitively.
func DefaultBlocklist() []string {
	return []string{
		"2341:0043", // Arduino Uno: opening the port resets the board
		"2341:0001", // Arduino Uno (older firmware)
	}
}

// IsBlocked reports whether vidpid appears in blocklist.
func IsBlocked(vidpid string, blocklist []string) bool {
	return matchesVIDPID(vidpid, blocklist)
}

func matchesVIDPID(vidpid string, list []string) bool {
	vidpid = normalizeVIDPID(vidpid)
	if vidpid == "" {
		return false
	}
	for _, entry := range list {
		if normalizeVIDPID(entry) == vidpid {
			return true
		}
	}
	return false
}

// formatVIDPID joins a vendor and product id the way blocklists spell them.
// Ports that are not USB have no ids and yield "".
func formatVIDPID(vid, pid string) string {
	if vid == "" || pid == "" {
		return ""
	}
	return normalizeVIDPID(vid + ":" + pid)
}

func normalizeVIDPID(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	vid, pid, ok := strings.Cut(s, ":")
	if !ok || !isHex(vid) || !isHex(pid) {
		return ""
	}
	return s
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}

// IsPathIgnored reports whether devicePath names one of ignorePaths.
// Paths are cleaned and compared without regard to case, so "COM3" and
// "com3" match.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	device := normalizedPath(devicePath)
	for _, ignored := range ignorePaths {
		if ignored != "" && normalizedPath(ignored) == device {
			return true
		}
	}
	return false
}

func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
