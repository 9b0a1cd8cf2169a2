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

//nolint:paralleltest // session log state is package-global
package ap2link

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSessionLog_CreatesFileWithHeader(t *testing.T) {
	dir := t.TempDir()
	prevEnabled := DebugEnabled()
	SetDebugEnabled(false)
	t.Cleanup(func() {
		_ = CloseSessionLog()
		SetDebugEnabled(prevEnabled)
	})

	path, err := InitSessionLog(dir)
	require.NoError(t, err)
	assert.Equal(t, path, GetSessionLogPath())
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Regexp(t, regexp.MustCompile(`^ap2link_\d{8}_\d{6}\.log$`), filepath.Base(path))

	Debugf("radio status capslock=%v", true)
	require.NoError(t, CloseSessionLog())
	assert.Empty(t, GetSessionLogPath())

	data, err := os.ReadFile(path) //nolint:gosec // path from t.TempDir
	require.NoError(t, err)
	content := string(data)

	for _, want := range []string{
		"=== AP2 Link Debug Session Log ===",
		"Started:",
		"PID:",
		"OS:",
		"Go Version:",
		"Command Line:",
		"DEBUG: radio status capslock=true",
		"=== Session ended ===",
	} {
		assert.Contains(t, content, want)
	}
}

func TestCloseSessionLog_WithoutInit(t *testing.T) {
	assert.NoError(t, CloseSessionLog())
	assert.NoError(t, CloseSessionLog())
}

func TestInitSessionLog_BadDirectory(t *testing.T) {
	_, err := InitSessionLog(filepath.Join(t.TempDir(), "missing", "dir"))
	require.Error(t, err)
	assert.Empty(t, GetSessionLogPath())
}
