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

package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// withArgs swaps os.Args for the duration of fn, since run() reads flags
// from os.Args directly (matching config.Parse's signature).
func withArgs(t *testing.T, args []string, fn func()) {
	t.Helper()
	old := os.Args
	os.Args = append([]string{"rift"}, args...)
	t.Cleanup(func() { os.Args = old })
	fn()
}

func TestRunReturnsConfigErrorOnUnknownFlag(t *testing.T) {
	withArgs(t, []string{"-not-a-real-flag"}, func() {
		require.Equal(t, exitConfig, run())
	})
}

func TestRunReturnsConfigErrorOnUnreadableConfigFile(t *testing.T) {
	withArgs(t, []string{"-port", "0", "-configfile", "/no/such/file.json"}, func() {
		require.Equal(t, exitConfig, run())
	})
}

func TestRunReturnsConfigErrorOnMalformedPredicateInConfigFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "rift-config-*.json")
	require.NoError(t, err)
	_, err = f.WriteString(`{"imposters":[{"port":0,"protocol":"http","stubs":[{"predicates":[{"matches":{"path":"("}}],"responses":[{"is":{"statusCode":200}}]}]}]}`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	withArgs(t, []string{"-port", "0", "-configfile", f.Name()}, func() {
		require.Equal(t, exitConfig, run())
	})
}
