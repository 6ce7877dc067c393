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

package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riftmock/rift/internal/reqmodel"
	"github.com/riftmock/rift/internal/riftkind"
	"github.com/riftmock/rift/internal/stubmodel"
)

func testRequest(t *testing.T, method, path, body string) *reqmodel.Request {
	t.Helper()
	httpReq := httptest.NewRequest(method, path, strings.NewReader(body))
	httpReq.Header.Set("Connection", "keep-alive")
	httpReq.Header.Set("X-Custom", "yes")
	req, err := reqmodel.Parse(httpReq, time.Now())
	require.NoError(t, err)
	return req
}

func TestForwardStripsHopByHopHeadersAndCapturesResponse(t *testing.T) {
	var gotConnection, gotCustom string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotConnection = r.Header.Get("Connection")
		gotCustom = r.Header.Get("X-Custom")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(201)
		w.Write([]byte("from upstream"))
	}))
	defer upstream.Close()

	c := New(Config{Timeout: 2 * time.Second})
	defer c.Close()

	is, err := c.Forward(context.Background(), upstream.URL, testRequest(t, "GET", "/hi", ""))
	require.NoError(t, err)
	require.Equal(t, 201, is.StatusCode)
	require.Equal(t, "from upstream", is.Body)
	require.Equal(t, "yes", gotCustom)
	require.Empty(t, gotConnection, "hop-by-hop Connection header must not be forwarded")
}

func TestForwardReturnsProxyUpstreamKindOnConnectFailure(t *testing.T) {
	c := New(Config{Timeout: 200 * time.Millisecond})
	defer c.Close()

	_, err := c.Forward(context.Background(), "http://127.0.0.1:1", testRequest(t, "GET", "/hi", ""))
	require.Error(t, err)
	require.Equal(t, riftkind.ProxyUpstream, riftkind.Of(err))
}

func TestForwardDoesNotFollowRedirects(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/elsewhere")
		w.WriteHeader(302)
	}))
	defer upstream.Close()

	c := New(Config{Timeout: 2 * time.Second})
	defer c.Close()

	is, err := c.Forward(context.Background(), upstream.URL, testRequest(t, "GET", "/hi", ""))
	require.NoError(t, err)
	require.Equal(t, 302, is.StatusCode)
}

func TestExecuteProxyTransparentLearnsNothing(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	c := New(Config{Timeout: 2 * time.Second})
	defer c.Close()

	imp := stubmodel.NewImposter(0, stubmodel.HTTP)
	pr := &stubmodel.ProxyResponse{To: upstream.URL, Mode: stubmodel.ProxyTransparent}

	_, err := c.Execute(context.Background(), imp, 0, pr, testRequest(t, "GET", "/hi", ""))
	require.NoError(t, err)
	require.Empty(t, imp.SnapshotStubs())
}

func TestExecuteProxyOnceInsertsBeforeProxyStub(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("captured"))
	}))
	defer upstream.Close()

	c := New(Config{Timeout: 2 * time.Second})
	defer c.Close()

	imp := stubmodel.NewImposter(0, stubmodel.HTTP)
	proxyStub := &stubmodel.Stub{
		Responses: []*stubmodel.Response{{
			Kind: stubmodel.ProxyKind,
			Proxy: &stubmodel.ProxyResponse{
				To:                  upstream.URL,
				Mode:                stubmodel.ProxyOnce,
				PredicateGenerators: []map[string]any{{"matches": map[string]any{"method": true, "path": true}}},
			},
		}},
	}
	imp.ReplaceStubs([]*stubmodel.Stub{proxyStub})

	is, err := c.Execute(context.Background(), imp, 0, proxyStub.Responses[0].Proxy, testRequest(t, "GET", "/orders/1", ""))
	require.NoError(t, err)
	require.Equal(t, "captured", is.Body)

	stubs := imp.SnapshotStubs()
	require.Len(t, stubs, 2)
	require.Same(t, proxyStub, stubs[1], "proxy stub must shift one position later")

	learned := stubs[0]
	require.Len(t, learned.Predicates, 1)
	require.True(t, learned.Predicates[0].Eval(testRequest(t, "GET", "/orders/1", "")))
	require.False(t, learned.Predicates[0].Eval(testRequest(t, "POST", "/orders/1", "")))
}

func TestExecuteProxyAlwaysAppendsEveryCall(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("captured"))
	}))
	defer upstream.Close()

	c := New(Config{Timeout: 2 * time.Second})
	defer c.Close()

	imp := stubmodel.NewImposter(0, stubmodel.HTTP)
	pr := &stubmodel.ProxyResponse{
		To:                  upstream.URL,
		Mode:                stubmodel.ProxyAlways,
		PredicateGenerators: []map[string]any{{"matches": map[string]any{"path": true}}},
	}
	proxyStub := &stubmodel.Stub{Responses: []*stubmodel.Response{{Kind: stubmodel.ProxyKind, Proxy: pr}}}
	imp.ReplaceStubs([]*stubmodel.Stub{proxyStub})

	_, err := c.Execute(context.Background(), imp, 0, pr, testRequest(t, "GET", "/a", ""))
	require.NoError(t, err)
	_, err = c.Execute(context.Background(), imp, 0, pr, testRequest(t, "GET", "/b", ""))
	require.NoError(t, err)

	stubs := imp.SnapshotStubs()
	require.Len(t, stubs, 3)
	require.Same(t, proxyStub, stubs[0], "proxy stub stays live and is never shifted by proxyAlways")
}
