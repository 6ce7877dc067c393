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

package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riftmock/rift/internal/config"
	"github.com/riftmock/rift/internal/imposter"
	"github.com/riftmock/rift/internal/proxy"
	"github.com/riftmock/rift/internal/script"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	reg := imposter.NewRegistry(imposter.Options{
		Host:          "127.0.0.1",
		ScriptRuntime: script.NewRuntime(script.NewCapability(false)),
		ProxyClient:   proxy.New(proxy.Config{}),
	})
	t.Cleanup(func() { reg.DeleteAll() })
	return New(reg, &config.Config{AdminPort: 2525, Host: "127.0.0.1"}, nil)
}

func doJSON(t *testing.T, api *API, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	return rec
}

func TestRootLinks(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"imposters":"/imposters"`)
}

func TestCreateAndFetchImposter(t *testing.T) {
	api := newTestAPI(t)
	body := `{
		"port": 0,
		"protocol": "http",
		"stubs": [{
			"predicates": [{"equals": {"method": "GET", "path": "/hello"}}],
			"responses": [{"is": {"statusCode": 200, "body": "hi"}}]
		}]
	}`
	rec := doJSON(t, api, http.MethodPost, "/imposters", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created imposterDoc
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.Port)
	require.Len(t, created.Stubs, 1)

	getRec := doJSON(t, api, http.MethodGet, "/imposters/"+itoa(created.Port), "")
	require.Equal(t, http.StatusOK, getRec.Code)

	var fetched imposterDoc
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &fetched))
	require.Equal(t, created.Port, fetched.Port)
	require.Len(t, fetched.Stubs, 1)
	require.Equal(t, "GET", fetched.Stubs[0].Predicates[0]["equals"].(map[string]any)["method"])
}

func TestCreateImposterRejectsMalformedPredicate(t *testing.T) {
	api := newTestAPI(t)
	body := `{
		"port": 0,
		"protocol": "http",
		"stubs": [{
			"predicates": [{"matches": {"path": "("}}],
			"responses": [{"is": {"statusCode": 200}}]
		}]
	}`
	rec := doJSON(t, api, http.MethodPost, "/imposters", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "bad data")
}

func TestCreateImposterPortConflict(t *testing.T) {
	api := newTestAPI(t)
	first := doJSON(t, api, http.MethodPost, "/imposters", `{"port":0,"protocol":"http","stubs":[{"responses":[{"is":{"statusCode":200}}]}]}`)
	require.Equal(t, http.StatusCreated, first.Code)
	var doc imposterDoc
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &doc))

	conflictBody := `{"port":` + itoa(doc.Port) + `,"protocol":"http","stubs":[{"responses":[{"is":{"statusCode":200}}]}]}`
	second := doJSON(t, api, http.MethodPost, "/imposters", conflictBody)
	require.Equal(t, http.StatusConflict, second.Code)
}

func TestDeleteImposterNotFound(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api, http.MethodDelete, "/imposters/54321", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddAndDeleteStub(t *testing.T) {
	api := newTestAPI(t)
	createRec := doJSON(t, api, http.MethodPost, "/imposters", `{"port":0,"protocol":"http","stubs":[{"responses":[{"is":{"statusCode":200}}]}]}`)
	var imp imposterDoc
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &imp))

	addRec := doJSON(t, api, http.MethodPost, "/imposters/"+itoa(imp.Port)+"/stubs",
		`{"stub": {"responses": [{"is": {"statusCode": 201, "body": "added"}}]}}`)
	require.Equal(t, http.StatusCreated, addRec.Code)

	getRec := doJSON(t, api, http.MethodGet, "/imposters/"+itoa(imp.Port), "")
	var fetched imposterDoc
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &fetched))
	require.Len(t, fetched.Stubs, 2)

	delRec := doJSON(t, api, http.MethodDelete, "/imposters/"+itoa(imp.Port)+"/stubs/1", "")
	require.Equal(t, http.StatusOK, delRec.Code)

	getRec2 := doJSON(t, api, http.MethodGet, "/imposters/"+itoa(imp.Port), "")
	var afterDelete imposterDoc
	require.NoError(t, json.Unmarshal(getRec2.Body.Bytes(), &afterDelete))
	require.Len(t, afterDelete.Stubs, 1)
}

func TestListImpostersIsSummaryByDefault(t *testing.T) {
	api := newTestAPI(t)
	doJSON(t, api, http.MethodPost, "/imposters", `{"port":0,"protocol":"http","stubs":[{"responses":[{"is":{"statusCode":200}}]}]}`)

	rec := doJSON(t, api, http.MethodGet, "/imposters", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var wrapper struct {
		Imposters []imposterDoc `json:"imposters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wrapper))
	require.Len(t, wrapper.Imposters, 1)
	require.Empty(t, wrapper.Imposters[0].Stubs)

	replayRec := doJSON(t, api, http.MethodGet, "/imposters?replayable=true", "")
	var replayWrapper struct {
		Imposters []imposterDoc `json:"imposters"`
	}
	require.NoError(t, json.Unmarshal(replayRec.Body.Bytes(), &replayWrapper))
	require.Len(t, replayWrapper.Imposters[0].Stubs, 1)
}

func TestRequestsLifecycle(t *testing.T) {
	api := newTestAPI(t)
	createRec := doJSON(t, api, http.MethodPost, "/imposters", `{"port":0,"protocol":"http","recordRequests":true,"stubs":[{"responses":[{"is":{"statusCode":200}}]}]}`)
	var imp imposterDoc
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &imp))

	rec := doJSON(t, api, http.MethodGet, "/imposters/"+itoa(imp.Port)+"/requests", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"requests":[]`)

	clearRec := doJSON(t, api, http.MethodDelete, "/imposters/"+itoa(imp.Port)+"/requests", "")
	require.Equal(t, http.StatusOK, clearRec.Code)
}

func TestConfigEndpoint(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(t, api, http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"port":2525`)
}

func TestBootstrapLoadsImposters(t *testing.T) {
	reg := imposter.NewRegistry(imposter.Options{
		Host:          "127.0.0.1",
		ScriptRuntime: script.NewRuntime(script.NewCapability(false)),
		ProxyClient:   proxy.New(proxy.Config{}),
	})
	t.Cleanup(func() { reg.DeleteAll() })

	raw := []byte(`{"imposters":[{"port":0,"protocol":"http","stubs":[{"responses":[{"is":{"statusCode":200}}]}]}]}`)
	created, err := Bootstrap(reg, raw)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Len(t, reg.List(), 1)
}

func TestIPWhitelistBlocksUnlistedAddresses(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := IPWhitelist(inner, []string{"10.0.0.1"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:5000"
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "10.0.0.1:5000"
	rec2 := httptest.NewRecorder()
	wrapped.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)
}

func TestIPWhitelistNoOpWhenEmpty(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	wrapped := IPWhitelist(inner, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5000"
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTeapot, rec.Code)
}
