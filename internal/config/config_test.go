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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) Env {
	return func(k string) (string, bool) { v, ok := m[k]; return v, ok }
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil, noEnv)
	require.NoError(t, err)
	require.Equal(t, 2525, cfg.AdminPort)
	require.Equal(t, "0.0.0.0", cfg.Host)
	require.False(t, cfg.AllowInjection)
	require.Nil(t, cfg.IPWhitelist)
}

func TestParseFlagsOverrideDefaults(t *testing.T) {
	cfg, err := Parse([]string{"--port", "9999", "--allow-injection", "--ip-whitelist", "10.0.0.1, 10.0.0.2"}, noEnv)
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.AdminPort)
	require.True(t, cfg.AllowInjection)
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.IPWhitelist)
}

func TestParseEnvFillsUnsetFlags(t *testing.T) {
	env := envMap(map[string]string{
		"MB_PORT":            "4000",
		"MB_ALLOW_INJECTION": "true",
		"RIFT_METRICS_PORT":  "9100",
		"RUST_LOG":           "rift=debug",
	})
	cfg, err := Parse(nil, env)
	require.NoError(t, err)
	require.Equal(t, 4000, cfg.AdminPort)
	require.True(t, cfg.AllowInjection)
	require.Equal(t, 9100, cfg.MetricsPort)
	require.Equal(t, "rift=debug", cfg.RustLog)
}

func TestParseExplicitFlagWinsOverEnv(t *testing.T) {
	env := envMap(map[string]string{"MB_PORT": "4000"})
	cfg, err := Parse([]string{"--port", "1234"}, env)
	require.NoError(t, err)
	require.Equal(t, 1234, cfg.AdminPort)
}

func TestParseRejectsUnknownFlag(t *testing.T) {
	_, err := Parse([]string{"--not-a-flag"}, noEnv)
	require.Error(t, err)
}

func TestLoadImposterFilePassesThroughJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imposters.json")
	writeFile(t, path, `[{"port":4545,"protocol":"http"}]`)

	out, err := LoadImposterFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `[{"port":4545,"protocol":"http"}]`, string(out))
}

func TestLoadImposterFileNormalizesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imposters.yaml")
	writeFile(t, path, "- port: 4545\n  protocol: http\n")

	out, err := LoadImposterFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `[{"port":4545,"protocol":"http"}]`, string(out))
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}
