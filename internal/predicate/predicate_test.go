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

package predicate

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riftmock/rift/internal/reqmodel"
)

func newReq(t *testing.T, method, path, body string, headers map[string]string) *reqmodel.Request {
	t.Helper()
	h := make(http.Header)
	for k, v := range headers {
		h.Set(k, v)
	}
	q, err := url.ParseQuery("")
	require.NoError(t, err)
	return &reqmodel.Request{
		Method:     method,
		Path:       path,
		Query:      q,
		Headers:    h,
		Body:       []byte(body),
		PathParams: map[string]string{},
		ReceivedAt: time.Now(),
	}
}

func compile(t *testing.T, raw map[string]any) *Predicate {
	t.Helper()
	p, err := Compile(raw)
	require.NoError(t, err)
	return p
}

func TestEqualsCaseInsensitiveByDefault(t *testing.T) {
	p := compile(t, map[string]any{"equals": map[string]any{"method": "get"}})
	req := newReq(t, "GET", "/", "", nil)
	require.True(t, p.Eval(req))
}

func TestEqualsCaseSensitiveFailsOnMismatch(t *testing.T) {
	p := compile(t, map[string]any{
		"equals":        map[string]any{"path": "/Hello"},
		"caseSensitive": true,
	})
	req := newReq(t, "GET", "/hello", "", nil)
	require.False(t, p.Eval(req))
}

func TestContainsPath(t *testing.T) {
	p := compile(t, map[string]any{"contains": map[string]any{"path": "/orders/"}})
	require.True(t, p.Eval(newReq(t, "GET", "/api/orders/42", "", nil)))
	require.False(t, p.Eval(newReq(t, "GET", "/api/users/42", "", nil)))
}

func TestAndOfSinglePredicateIsIdentity(t *testing.T) {
	single := compile(t, map[string]any{"equals": map[string]any{"method": "GET"}})
	wrapped := compile(t, map[string]any{"and": []any{
		map[string]any{"equals": map[string]any{"method": "GET"}},
	}})
	req := newReq(t, "GET", "/", "", nil)
	require.Equal(t, single.Eval(req), wrapped.Eval(req))
}

func TestNotNotIsIdentity(t *testing.T) {
	inner := compile(t, map[string]any{"equals": map[string]any{"method": "POST"}})
	doubled := compile(t, map[string]any{"not": map[string]any{
		"not": map[string]any{"equals": map[string]any{"method": "POST"}},
	}})
	req := newReq(t, "GET", "/", "", nil)
	require.Equal(t, inner.Eval(req), doubled.Eval(req))
}

func TestExistsHeader(t *testing.T) {
	p := compile(t, map[string]any{"exists": map[string]any{"headers": map[string]any{"X-Trace": true}}})
	require.True(t, p.Eval(newReq(t, "GET", "/", "", map[string]string{"X-Trace": "abc"})))
	require.False(t, p.Eval(newReq(t, "GET", "/", "", nil)))
}

func TestMatchesRegex(t *testing.T) {
	p := compile(t, map[string]any{"matches": map[string]any{"path": "^/orders/[0-9]+$"}})
	require.True(t, p.Eval(newReq(t, "GET", "/orders/42", "", nil)))
	require.False(t, p.Eval(newReq(t, "GET", "/orders/abc", "", nil)))
}

func TestMatchesHonorsExcept(t *testing.T) {
	p := compile(t, map[string]any{
		"matches": map[string]any{"path": "^/orders/[0-9]+$"},
		"except":  "/v[0-9]+",
	})
	require.True(t, p.Eval(newReq(t, "GET", "/v1/orders/42", "", nil)))
	require.False(t, p.Eval(newReq(t, "GET", "/v1/orders/abc", "", nil)))
}

func TestExistsHonorsExcept(t *testing.T) {
	p := compile(t, map[string]any{
		"exists": map[string]any{"path": true},
		"except": "^/$",
	})
	require.False(t, p.Eval(newReq(t, "GET", "/", "", nil)))
	require.True(t, p.Eval(newReq(t, "GET", "/orders", "", nil)))
}

func TestJSONPathEquals(t *testing.T) {
	p := compile(t, map[string]any{"jsonpath": map[string]any{
		"selector": "$.order.total",
		"equals":   float64(100),
	}})
	req := newReq(t, "POST", "/", `{"order":{"total":100}}`, map[string]string{"Content-Type": "application/json"})
	require.True(t, p.Eval(req))
}

func TestInvalidRegexFailsAtCompile(t *testing.T) {
	_, err := Compile(map[string]any{"matches": map[string]any{"path": "("}})
	require.Error(t, err)
}

func TestDeepEqualsStructuredBody(t *testing.T) {
	p := compile(t, map[string]any{"deepEquals": map[string]any{"body": map[string]any{"a": float64(1)}}})
	req := newReq(t, "POST", "/", `{"a":1}`, map[string]string{"Content-Type": "application/json"})
	require.True(t, p.Eval(req))
	req2 := newReq(t, "POST", "/", `{"a":1,"b":2}`, map[string]string{"Content-Type": "application/json"})
	require.False(t, p.Eval(req2))
}
