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

package matcher

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riftmock/rift/internal/predicate"
	"github.com/riftmock/rift/internal/reqmodel"
	"github.com/riftmock/rift/internal/stubmodel"
)

func req(method, path string) *reqmodel.Request {
	return &reqmodel.Request{Method: method, Path: path, Query: url.Values{}, Headers: http.Header{}}
}

func mustPredicate(t *testing.T, raw map[string]any) *predicate.Predicate {
	t.Helper()
	p, err := predicate.Compile(raw)
	require.NoError(t, err)
	return p
}

func TestSelectFirstMatchWins(t *testing.T) {
	stubs := []*stubmodel.Stub{
		{
			Predicates: []*predicate.Predicate{mustPredicate(t, map[string]any{"equals": map[string]any{"path": "/hello"}})},
			Responses:  []*stubmodel.Response{{Kind: stubmodel.IsKind, Is: &stubmodel.IsResponse{StatusCode: 200, Body: "hi"}}},
		},
		{
			// Unconditional stub that would also match /hello but is second.
			Responses: []*stubmodel.Response{{Kind: stubmodel.IsKind, Is: &stubmodel.IsResponse{StatusCode: 500}}},
		},
	}
	result := Select(stubs, nil, req("GET", "/hello"))
	require.Equal(t, 0, result.StubIndex)
	require.Equal(t, 200, result.Response.Is.StatusCode)
}

func TestSelectFallsBackToDefaultEmpty200(t *testing.T) {
	result := Select(nil, nil, req("GET", "/anything"))
	require.True(t, result.UsedDefault)
	require.Equal(t, http.StatusOK, result.Response.Is.StatusCode)
	require.Equal(t, "", result.Response.Is.Body)
}

func TestSelectUsesConfiguredDefaultResponse(t *testing.T) {
	def := &stubmodel.Response{Kind: stubmodel.IsKind, Is: &stubmodel.IsResponse{StatusCode: 404, Body: "nope"}}
	result := Select(nil, def, req("GET", "/missing"))
	require.True(t, result.UsedDefault)
	require.Equal(t, 404, result.Response.Is.StatusCode)
}
