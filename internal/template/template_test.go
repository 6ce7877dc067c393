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

package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesKnownTokens(t *testing.T) {
	out, err := Render(`{"id": "${orderId}"}`, Bindings{"orderId": "42"}, false)
	require.NoError(t, err)
	require.Equal(t, `{"id": "42"}`, out)
}

func TestRenderUnknownTokenEmptyWhenLax(t *testing.T) {
	out, err := Render("hello ${name}", Bindings{}, false)
	require.NoError(t, err)
	require.Equal(t, "hello ", out)
}

func TestRenderUnknownTokenErrorsWhenStrict(t *testing.T) {
	_, err := Render("hello ${name}", Bindings{}, true)
	require.Error(t, err)
}

func TestExtractRegexCaptureGroup(t *testing.T) {
	v, ok := ExtractRegex("/orders/42", `/orders/(\d+)`)
	require.True(t, ok)
	require.Equal(t, "42", v)
}

func TestExtractJSONPath(t *testing.T) {
	v, ok := ExtractJSONPath([]byte(`{"order":{"total":100}}`), "$.order.total")
	require.True(t, ok)
	require.Equal(t, "100", v)
}

func TestLookupCSVFindsRowByKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plans.csv")
	require.NoError(t, os.WriteFile(path, []byte("code,name\nA,Alpha\nB,Beta\n"), 0o644))

	row, ok := LookupCSV(path, "code", "B")
	require.True(t, ok)
	require.Equal(t, "Beta", row["name"])
}
