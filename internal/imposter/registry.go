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
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/riftmock/rift/internal/flowstore"
	"github.com/riftmock/rift/internal/metrics"
	"github.com/riftmock/rift/internal/proxy"
	"github.com/riftmock/rift/internal/riftkind"
	"github.com/riftmock/rift/internal/script"
	"github.com/riftmock/rift/internal/stubmodel"
)

// entry is one live imposter: its data, its bound listener, and the server
// driving it. writeMu serializes admin mutations per imposter, per §4.1 and
// §4.9 ("mutations serialize with imposter writers"); reads never take it,
// since *stubmodel.Imposter's own copy-on-write snapshots already give
// readers a consistent view.
type entry struct {
	imposter   *stubmodel.Imposter
	listener   net.Listener
	httpServer *http.Server
	flowStore  flowstore.Store
	writeMu    sync.Mutex
}

// Registry maintains the port -> Imposter mapping plus each imposter's live
// listener (C9/C10, §4.1). All structural changes (create/delete/replaceAll)
// hold mu; per-imposter stub mutations only hold that entry's writeMu.
type Registry struct {
	mu      sync.RWMutex
	entries map[int]*entry

	host                string
	scriptRuntime       *script.Runtime
	proxyClient         *proxy.Client
	metrics             MetricsRecorder
	flowRecorder        *metrics.Recorder
	allowShellTransform bool
}

// Options configures a new Registry.
type Options struct {
	Host                string
	ScriptRuntime       *script.Runtime
	ProxyClient         *proxy.Client
	Metrics             MetricsRecorder
	// FlowRecorder, if set, wraps every imposter's flow store so that
	// rift_flow_state_ops_total (§6.5) is recorded; it is independent of
	// Metrics because the flow store is not owned by one Handler.
	FlowRecorder        *metrics.Recorder
	AllowShellTransform bool
}

// NewRegistry builds an empty Registry.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		entries:             map[int]*entry{},
		host:                opts.Host,
		scriptRuntime:       opts.ScriptRuntime,
		proxyClient:         opts.ProxyClient,
		metrics:             opts.Metrics,
		flowRecorder:        opts.FlowRecorder,
		allowShellTransform: opts.AllowShellTransform,
	}
}

// Create validates and binds spec's listener, starting to serve traffic
// immediately. spec.Port == 0 auto-assigns a free port, reflected back onto
// the returned imposter.
func (r *Registry) Create(spec *stubmodel.Imposter) (*stubmodel.Imposter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(spec)
}

func (r *Registry) createLocked(spec *stubmodel.Imposter) (*stubmodel.Imposter, error) {
	if spec.Port != 0 {
		if _, taken := r.entries[spec.Port]; taken {
			return nil, riftkind.New(riftkind.PortConflict, fmt.Sprintf("port %d is already bound", spec.Port))
		}
	}

	addr := fmt.Sprintf("%s:%d", r.host, spec.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, riftkind.Wrap(riftkind.PortConflict, "bind imposter listener", err)
	}

	if spec.Protocol == stubmodel.HTTPS {
		cert, err := tls.X509KeyPair([]byte(spec.Cert), []byte(spec.Key))
		if err != nil {
			ln.Close()
			return nil, riftkind.Wrap(riftkind.TlsError, "load imposter certificate", err)
		}
		ln = tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}})
	}

	spec.Port = ln.Addr().(*net.TCPAddr).Port
	if spec.Stubs.Load() == nil {
		empty := []*stubmodel.Stub{}
		spec.Stubs.Store(&empty)
	}

	flowStore := r.newFlowStore(spec.Rift.FlowState)
	handler := NewHandler(spec, flowStore, r.scriptRuntime, r.proxyClient, r.allowShellTransform, r.metrics)
	httpServer := &http.Server{
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // faults/waits can legitimately hold a response open
		IdleTimeout:  120 * time.Second,
	}

	e := &entry{imposter: spec, listener: ln, httpServer: httpServer, flowStore: flowStore}
	r.entries[spec.Port] = e

	go func() {
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			_ = err // dropped: nothing in the registry reports a serve error
		}
	}()

	return spec, nil
}

// ReplaceAll atomically stops every current listener and starts specs in
// their place, so a spec may reuse a port the previous set held. On partial
// failure the newly-started listeners are torn down and the previous
// imposters are bound again on their ports, each with a fresh flow store.
func (r *Registry) ReplaceAll(specs []*stubmodel.Imposter) ([]*stubmodel.Imposter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.entries
	for _, e := range previous {
		r.shutdownEntry(e)
	}
	r.entries = map[int]*entry{}

	var created []*stubmodel.Imposter
	for _, spec := range specs {
		imp, err := r.createLocked(spec)
		if err != nil {
			for port := range r.entries {
				r.shutdownLocked(port)
			}
			for _, e := range previous {
				_, _ = r.createLocked(e.imposter)
			}
			return nil, err
		}
		created = append(created, imp)
	}
	return created, nil
}

// Get returns the imposter bound to port, if any.
func (r *Registry) Get(port int) (*stubmodel.Imposter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[port]
	if !ok {
		return nil, false
	}
	return e.imposter, true
}

// List returns every live imposter, in no particular order.
func (r *Registry) List() []*stubmodel.Imposter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*stubmodel.Imposter, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.imposter)
	}
	return out
}

// AddStub inserts stub at index (or appends if index is nil/out of range).
func (r *Registry) AddStub(port int, stub *stubmodel.Stub, index *int) error {
	e, ok := r.lookup(port)
	if !ok {
		return riftkind.New(riftkind.InvalidConfig, "no such imposter")
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	at := -1
	if index != nil {
		at = *index
	}
	e.imposter.InsertStub(stub, at)
	return nil
}

// ReplaceStub replaces the stub at index. Reports false if index is out of range.
func (r *Registry) ReplaceStub(port, index int, stub *stubmodel.Stub) bool {
	e, ok := r.lookup(port)
	if !ok {
		return false
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.imposter.ReplaceStubAt(index, stub)
}

// DeleteStub removes the stub at index. Reports false if index is out of range.
func (r *Registry) DeleteStub(port, index int) bool {
	e, ok := r.lookup(port)
	if !ok {
		return false
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.imposter.DeleteStubAt(index)
}

// ClearRequests empties port's recorded-request log.
func (r *Registry) ClearRequests(port int) bool {
	e, ok := r.lookup(port)
	if !ok {
		return false
	}
	e.imposter.ClearRequests()
	return true
}

// Delete stops port's listener and removes it from the registry, returning
// the final imposter snapshot.
func (r *Registry) Delete(port int) (*stubmodel.Imposter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[port]
	if !ok {
		return nil, false
	}
	delete(r.entries, port)
	r.shutdownEntry(e)
	return e.imposter, true
}

// DeleteAll stops every listener and empties the registry, returning the
// final snapshots.
func (r *Registry) DeleteAll() []*stubmodel.Imposter {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*stubmodel.Imposter, 0, len(r.entries))
	for port, e := range r.entries {
		out = append(out, e.imposter)
		delete(r.entries, port)
		r.shutdownEntry(e)
	}
	return out
}

func (r *Registry) lookup(port int) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[port]
	return e, ok
}

func (r *Registry) shutdownLocked(port int) {
	e, ok := r.entries[port]
	if !ok {
		return
	}
	delete(r.entries, port)
	r.shutdownEntry(e)
}

func (r *Registry) shutdownEntry(e *entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.httpServer.Shutdown(ctx)
	if e.flowStore != nil {
		_ = e.flowStore.Close()
	}
}

// newFlowStore builds one imposter's flow store: an isolated in-memory store
// with a one-hour default TTL. cfg.Backend is not consulted, so an imposter
// whose `_rift.flowState` names redis or postgres also gets the in-memory
// store; the registry never builds a Redis or Postgres store.
func (r *Registry) newFlowStore(cfg stubmodel.FlowStateConfig) flowstore.Store {
	_ = cfg
	var store flowstore.Store = flowstore.NewMemory(time.Hour)
	if r.flowRecorder != nil {
		store = metrics.NewObservingStore(store, r.flowRecorder)
	}
	return store
}
