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

package imposter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riftmock/rift/internal/flowstore"
	"github.com/riftmock/rift/internal/proxy"
	"github.com/riftmock/rift/internal/script"
	"github.com/riftmock/rift/internal/stubmodel"
)

func testHandler(t *testing.T, imp *stubmodel.Imposter) *Handler {
	t.Helper()
	return NewHandler(
		imp,
		flowstore.NewMemory(time.Minute),
		script.NewRuntime(script.NewCapability(true)),
		proxy.New(proxy.Config{Timeout: 2 * time.Second}),
		false,
		nil,
	)
}

func TestServeHTTPUnmatchedRequestGetsDefaultEmptyResponse(t *testing.T) {
	imp := stubmodel.NewImposter(0, stubmodel.HTTP)
	h := testHandler(t, imp)

	req := httptest.NewRequest("GET", "/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Empty(t, rec.Body.String())
}

func TestServeHTTPMatchedStubWritesResponse(t *testing.T) {
	imp := stubmodel.NewImposter(0, stubmodel.HTTP)
	imp.ReplaceStubs([]*stubmodel.Stub{{
		Responses: []*stubmodel.Response{{
			Kind: stubmodel.IsKind,
			Is:   &stubmodel.IsResponse{StatusCode: 201, Headers: http.Header{"X-Test": []string{"yes"}}, Body: "created"},
		}},
	}})
	h := testHandler(t, imp)

	req := httptest.NewRequest("POST", "/things", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, 201, rec.Code)
	require.Equal(t, "created", rec.Body.String())
	require.Equal(t, "yes", rec.Header().Get("X-Test"))
}

func TestServeHTTPConfiguredErrorFaultAlwaysFires(t *testing.T) {
	imp := stubmodel.NewImposter(0, stubmodel.HTTP)
	imp.Rift.Fault = &stubmodel.FaultConfig{
		Error: &stubmodel.ErrorFault{Probability: 1, Status: 503, Body: "down for maintenance"},
	}
	imp.ReplaceStubs([]*stubmodel.Stub{{
		Responses: []*stubmodel.Response{{Kind: stubmodel.IsKind, Is: &stubmodel.IsResponse{StatusCode: 200, Headers: http.Header{}, Body: "ok"}}},
	}})
	h := testHandler(t, imp)

	req := httptest.NewRequest("GET", "/x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, 503, rec.Code)
	require.Equal(t, "down for maintenance", rec.Body.String())
}

func TestServeHTTPResponseLevelFaultOverridesImposterLevel(t *testing.T) {
	imp := stubmodel.NewImposter(0, stubmodel.HTTP)
	imp.Rift.Fault = &stubmodel.FaultConfig{Error: &stubmodel.ErrorFault{Probability: 1, Status: 500, Body: "imposter-level"}}
	imp.ReplaceStubs([]*stubmodel.Stub{{
		Responses: []*stubmodel.Response{{
			Kind: stubmodel.IsKind,
			Is:   &stubmodel.IsResponse{StatusCode: 200, Headers: http.Header{}, Body: "ok"},
			Rift: &stubmodel.RiftExtensions{Fault: &stubmodel.FaultConfig{Error: &stubmodel.ErrorFault{Probability: 0}}},
		}},
	}})
	h := testHandler(t, imp)

	req := httptest.NewRequest("GET", "/x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestServeHTTPScriptShouldInjectErrorOverridesConfiguredFault(t *testing.T) {
	imp := stubmodel.NewImposter(0, stubmodel.HTTP)
	imp.Rift.Fault = &stubmodel.FaultConfig{Error: &stubmodel.ErrorFault{Probability: 1, Status: 500, Body: "configured"}}
	imp.ReplaceStubs([]*stubmodel.Stub{{
		Responses: []*stubmodel.Response{{
			Kind: stubmodel.IsKind,
			Is:   &stubmodel.IsResponse{StatusCode: 200, Headers: http.Header{}, Body: "ok"},
			Script: &stubmodel.ScriptResponse{
				Engine: "lua",
				Code: `
					function should_inject(request, flow_store)
						return {inject = true, fault = "error", status = 429, body = "scripted"}
					end
				`,
			},
		}},
	}})
	h := testHandler(t, imp)

	req := httptest.NewRequest("GET", "/x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, 429, rec.Code)
	require.Equal(t, "scripted", rec.Body.String())
}

func TestServeHTTPAllowCORSAddsHeadersAndHandlesPreflight(t *testing.T) {
	imp := stubmodel.NewImposter(0, stubmodel.HTTP)
	imp.AllowCORS = true
	h := testHandler(t, imp)

	req := httptest.NewRequest("OPTIONS", "/x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeHTTPRecordsRequestsWhenEnabled(t *testing.T) {
	imp := stubmodel.NewImposter(0, stubmodel.HTTP)
	imp.RecordRequests = true
	h := testHandler(t, imp)

	req := httptest.NewRequest("GET", "/tracked", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	recorded := imp.RecordedRequests()
	require.Len(t, recorded, 1)
	require.Equal(t, "/tracked", recorded[0].Request.Path)
}
