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
	"io"
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/riftmock/rift/internal/config"
	"github.com/riftmock/rift/internal/imposter"
	"github.com/riftmock/rift/internal/riftkind"
	"github.com/riftmock/rift/internal/stubmodel"
)

// API is the admin REST surface (§4.9/§6.1): a thin net/http.ServeMux router
// in front of an *imposter.Registry, mirroring the handler-per-endpoint shape
// mockd's pkg/admin uses (one small function per route, writeJSON/writeError
// for the response envelope).
type API struct {
	registry *imposter.Registry
	cfg      *config.Config
	logger   *zap.Logger
	mux      *http.ServeMux
}

// New builds the admin API's router. cfg is surfaced read-only via GET
// /config; logger is used only for request-handling diagnostics, never for
// audit trails (those are the recorded-request log itself).
func New(reg *imposter.Registry, cfg *config.Config, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &API{registry: reg, cfg: cfg, logger: logger}
	a.mux = http.NewServeMux()
	a.routes()
	return a
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// Bootstrap decodes a --configfile's contents (already normalized to JSON by
// config.LoadImposterFile) and loads them into reg via ReplaceAll, the same
// path PUT /imposters uses. It exists so cmd/rift doesn't need its own copy
// of the imposter-list wire decoder to seed a registry at startup.
func Bootstrap(reg *imposter.Registry, raw []byte) ([]*stubmodel.Imposter, error) {
	specs, err := decodeImposterList(raw)
	if err != nil {
		return nil, err
	}
	return reg.ReplaceAll(specs)
}

func (a *API) routes() {
	a.mux.HandleFunc("GET /", a.handleRoot)
	a.mux.HandleFunc("GET /config", a.handleConfig)
	a.mux.HandleFunc("GET /logs", a.handleLogs)

	a.mux.HandleFunc("GET /imposters", a.handleListImposters)
	a.mux.HandleFunc("POST /imposters", a.handleCreateImposter)
	a.mux.HandleFunc("PUT /imposters", a.handleReplaceImposters)
	a.mux.HandleFunc("DELETE /imposters", a.handleDeleteImposters)

	a.mux.HandleFunc("GET /imposters/{port}", a.handleGetImposter)
	a.mux.HandleFunc("DELETE /imposters/{port}", a.handleDeleteImposter)

	a.mux.HandleFunc("POST /imposters/{port}/stubs", a.handleAddStub)
	a.mux.HandleFunc("PUT /imposters/{port}/stubs/{index}", a.handleReplaceStub)
	a.mux.HandleFunc("DELETE /imposters/{port}/stubs/{index}", a.handleDeleteStub)

	a.mux.HandleFunc("GET /imposters/{port}/requests", a.handleListRequests)
	a.mux.HandleFunc("DELETE /imposters/{port}/requests", a.handleClearRequests)
}

func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"links": map[string]string{
			"imposters": "/imposters",
			"config":    "/config",
			"logs":      "/logs",
		},
	})
}

func (a *API) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": "rift",
		"options": map[string]any{
			"port":           a.cfg.AdminPort,
			"host":           a.cfg.Host,
			"allowInjection": a.cfg.AllowInjection,
			"ipWhitelist":    a.cfg.IPWhitelist,
			"metricsPort":    a.cfg.MetricsPort,
		},
	})
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	// Structured logs are written to the sink internal/logging configured
	// (stderr or --log's file); the admin API does not keep its own
	// in-memory tail, so this endpoint reports where to look instead of
	// replaying log lines.
	writeJSON(w, http.StatusOK, map[string]any{
		"sink": a.cfg.LogPath,
	})
}

func (a *API) handleListImposters(w http.ResponseWriter, r *http.Request) {
	opts := parseViewOptions(r)
	opts.summary = !opts.replayable
	imps := a.registry.List()
	docs := make([]imposterDoc, 0, len(imps))
	for _, imp := range imps {
		docs = append(docs, imposterToDoc(imp, opts))
	}
	writeJSON(w, http.StatusOK, map[string]any{"imposters": docs})
}

func (a *API) handleCreateImposter(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, riftkind.InvalidConfig, "read request body")
		return
	}
	spec, err := decodeImposter(body)
	if err != nil {
		writeKindError(w, err)
		return
	}
	created, err := a.registry.Create(spec)
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, imposterToDoc(created, viewOptions{}))
}

func (a *API) handleReplaceImposters(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, riftkind.InvalidConfig, "read request body")
		return
	}
	specs, err := decodeImposterList(body)
	if err != nil {
		writeKindError(w, err)
		return
	}
	created, err := a.registry.ReplaceAll(specs)
	if err != nil {
		writeKindError(w, err)
		return
	}
	docs := make([]imposterDoc, 0, len(created))
	for _, imp := range created {
		docs = append(docs, imposterToDoc(imp, viewOptions{}))
	}
	writeJSON(w, http.StatusOK, map[string]any{"imposters": docs})
}

func (a *API) handleDeleteImposters(w http.ResponseWriter, r *http.Request) {
	opts := parseViewOptions(r)
	opts.summary = !opts.replayable
	deleted := a.registry.DeleteAll()
	docs := make([]imposterDoc, 0, len(deleted))
	for _, imp := range deleted {
		docs = append(docs, imposterToDoc(imp, opts))
	}
	writeJSON(w, http.StatusOK, map[string]any{"imposters": docs})
}

func (a *API) handleGetImposter(w http.ResponseWriter, r *http.Request) {
	port, ok := pathPort(w, r)
	if !ok {
		return
	}
	imp, ok := a.registry.Get(port)
	if !ok {
		writeError(w, http.StatusNotFound, riftkind.InvalidConfig, "no such imposter")
		return
	}
	writeJSON(w, http.StatusOK, imposterToDoc(imp, parseViewOptions(r)))
}

func (a *API) handleDeleteImposter(w http.ResponseWriter, r *http.Request) {
	port, ok := pathPort(w, r)
	if !ok {
		return
	}
	imp, ok := a.registry.Delete(port)
	if !ok {
		writeError(w, http.StatusNotFound, riftkind.InvalidConfig, "no such imposter")
		return
	}
	writeJSON(w, http.StatusOK, imposterToDoc(imp, parseViewOptions(r)))
}

func (a *API) handleAddStub(w http.ResponseWriter, r *http.Request) {
	port, ok := pathPort(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, riftkind.InvalidConfig, "read request body")
		return
	}
	stub, index, err := decodeStub(body)
	if err != nil {
		writeKindError(w, err)
		return
	}
	var idx *int
	if index >= 0 {
		idx = &index
	}
	if err := a.registry.AddStub(port, stub, idx); err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stubToDoc(stub))
}

func (a *API) handleReplaceStub(w http.ResponseWriter, r *http.Request) {
	port, ok := pathPort(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, riftkind.InvalidConfig, "read request body")
		return
	}
	var wrapper struct {
		Stub stubDoc `json:"stub"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		writeError(w, http.StatusBadRequest, riftkind.InvalidConfig, "decode stub")
		return
	}
	stub, err := stubFromDoc(wrapper.Stub)
	if err != nil {
		writeKindError(w, err)
		return
	}
	if !a.registry.ReplaceStub(port, index, stub) {
		writeError(w, http.StatusNotFound, riftkind.InvalidConfig, "no such imposter or stub index")
		return
	}
	writeJSON(w, http.StatusOK, stubToDoc(stub))
}

func (a *API) handleDeleteStub(w http.ResponseWriter, r *http.Request) {
	port, ok := pathPort(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	if !a.registry.DeleteStub(port, index) {
		writeError(w, http.StatusNotFound, riftkind.InvalidConfig, "no such imposter or stub index")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": index})
}

func (a *API) handleListRequests(w http.ResponseWriter, r *http.Request) {
	port, ok := pathPort(w, r)
	if !ok {
		return
	}
	imp, ok := a.registry.Get(port)
	if !ok {
		writeError(w, http.StatusNotFound, riftkind.InvalidConfig, "no such imposter")
		return
	}
	docs := make([]requestDoc, 0)
	for _, rr := range imp.RecordedRequests() {
		docs = append(docs, requestToDoc(rr))
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": docs})
}

func (a *API) handleClearRequests(w http.ResponseWriter, r *http.Request) {
	port, ok := pathPort(w, r)
	if !ok {
		return
	}
	if !a.registry.ClearRequests(port) {
		writeError(w, http.StatusNotFound, riftkind.InvalidConfig, "no such imposter")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": []requestDoc{}})
}

func parseViewOptions(r *http.Request) viewOptions {
	q := r.URL.Query()
	return viewOptions{
		replayable:    parseBoolParam(q.Get("replayable")),
		removeProxies: parseBoolParam(q.Get("removeProxies")),
	}
}

func parseBoolParam(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func pathPort(w http.ResponseWriter, r *http.Request) (int, bool) {
	port, err := strconv.Atoi(r.PathValue("port"))
	if err != nil {
		writeError(w, http.StatusBadRequest, riftkind.InvalidConfig, "port must be an integer")
		return 0, false
	}
	return port, true
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, riftkind.InvalidConfig, "index must be an integer")
		return 0, false
	}
	return idx, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, kind riftkind.Kind, message string) {
	writeJSON(w, status, map[string]any{
		"errors": []map[string]string{
			{"code": kind.String(), "message": message},
		},
	})
}

// writeKindError renders err through riftkind's taxonomy when possible,
// falling back to a generic internal-error envelope otherwise.
func writeKindError(w http.ResponseWriter, err error) {
	kind := riftkind.Of(err)
	writeJSON(w, kind.HTTPStatus(), map[string]any{
		"errors": []map[string]string{
			{"code": kind.String(), "message": err.Error()},
		},
	})
}

// IPWhitelist wraps next so only the listed remote addresses may reach it,
// for --ip-whitelist (§6.3). An empty allowed list is a no-op: the admin API
// is open to whatever the bind host already restricts.
func IPWhitelist(next http.Handler, allowed []string) http.Handler {
	if len(allowed) == 0 {
		return next
	}
	set := make(map[string]bool, len(allowed))
	for _, ip := range allowed {
		set[ip] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.RemoteAddr
		if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			host = h
		}
		if !set[host] {
			writeError(w, http.StatusForbidden, riftkind.InvalidConfig, "remote address not permitted")
			return
		}
		next.ServeHTTP(w, r)
	})
}
