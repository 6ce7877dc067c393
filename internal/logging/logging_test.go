// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestResolveLevelPrefersExplicitOverRustLog(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, resolveLevel("debug", "error"))
}

func TestResolveLevelFallsBackToRustLog(t *testing.T) {
	require.Equal(t, zapcore.WarnLevel, resolveLevel("", "myapp=warn"))
}

func TestResolveLevelRustLogTraceMapsToDebug(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, resolveLevel("", "trace"))
}

func TestResolveLevelDefaultsToInfo(t *testing.T) {
	require.Equal(t, zapcore.InfoLevel, resolveLevel("", ""))
}

func TestNewWritesJSONToLogPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rift.log")
	logger := New(Options{Level: "info", LogPath: path})
	logger.Info("started")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"started"`)
}
