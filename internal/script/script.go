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

// Package script implements the sandboxed script runtime (C2): three
// dialects (lua, javascript, rhai) behind one Engine/Program interface,
// each invoked with a hard CPU deadline and no filesystem/network/process
// access, feeding decisions back to the fault layer (C6).
package script

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/riftmock/rift/internal/flowstore"
	"github.com/riftmock/rift/internal/reqmodel"
	"github.com/riftmock/rift/internal/riftkind"
)

// DefaultDeadline is the hard CPU budget for a single script invocation,
// per §4.7.
const DefaultDeadline = 50 * time.Millisecond

// Dialect names one of the three supported script engines.
type Dialect string

const (
	Lua        Dialect = "lua"
	JavaScript Dialect = "javascript"
	Rhai       Dialect = "rhai"
)

// FaultDecision describes the injected fault a `should_inject` script
// requested, mirroring §4.6's latency/error shapes.
type FaultDecision struct {
	Kind       string // "error" | "latency"
	Status     int
	Body       string
	Headers    map[string]string
	DurationMs int
}

// Decision is the return value of a script's should_inject call.
type Decision struct {
	Inject bool
	Fault  *FaultDecision
}

// Program is a compiled script, ready to be invoked repeatedly.
type Program interface {
	Invoke(ctx context.Context, req *reqmodel.Request, store flowstore.Store) (Decision, error)
}

// Engine compiles source code for one dialect into a reusable Program.
type Engine interface {
	Compile(code string) (Program, error)
}

// Capability gates whether script execution is permitted at all, per §9's
// "global allow-injection flag" design note: threaded from the CLI flag
// through the registry rather than read from process-wide state.
type Capability struct {
	allowed bool
}

// NewCapability builds a token reflecting whether --allow-injection was set.
func NewCapability(allowed bool) Capability { return Capability{allowed: allowed} }

func (c Capability) Allowed() bool { return c.allowed }

// Runtime dispatches compilation to the engine for a response's selected
// dialect and caches compiled programs by a content hash of their source,
// so repeated cycling through the same response never recompiles (§4.7:
// "compiled once, reused").
type Runtime struct {
	capability Capability
	engines    map[Dialect]Engine
	cache      sync.Map // string(hash) -> Program
}

// NewRuntime builds a Runtime with the three pinned dialect engines
// (§4.13): lua -> gopher-lua, javascript -> goja, rhai -> expr-lang/expr.
func NewRuntime(capability Capability) *Runtime {
	return &Runtime{
		capability: capability,
		engines: map[Dialect]Engine{
			Lua:        &luaEngine{},
			JavaScript: &jsEngine{},
			Rhai:       &rhaiEngine{},
		},
	}
}

// Compile returns a cached Program for (dialect, code) or compiles and
// caches a new one. Returns InvalidConfig if injection is disabled, or
// ScriptCompile if the dialect is unknown or the source fails to compile.
func (rt *Runtime) Compile(dialect Dialect, code string) (Program, error) {
	if !rt.capability.Allowed() {
		return nil, riftkind.New(riftkind.InvalidConfig, "script execution requires --allow-injection")
	}
	engine, ok := rt.engines[dialect]
	if !ok {
		return nil, riftkind.New(riftkind.ScriptCompile, "unknown script dialect: "+string(dialect))
	}
	key := cacheKey(dialect, code)
	if cached, ok := rt.cache.Load(key); ok {
		return cached.(Program), nil
	}
	prog, err := engine.Compile(code)
	if err != nil {
		return nil, riftkind.Wrap(riftkind.ScriptCompile, "compile "+string(dialect)+" script", err)
	}
	actual, _ := rt.cache.LoadOrStore(key, prog)
	return actual.(Program), nil
}

func cacheKey(dialect Dialect, code string) string {
	sum := sha256.Sum256([]byte(code))
	return string(dialect) + ":" + hex.EncodeToString(sum[:])
}

// withDeadline runs fn with DefaultDeadline (or ctx's own deadline if
// tighter) and returns ScriptTimeout if fn does not signal completion in
// time. fn must be safe to abandon: its goroutine may outlive the call
// when the underlying engine offers no cooperative cancellation (rhai/expr).
func withDeadline(ctx context.Context, fn func() (Decision, error)) (Decision, error) {
	deadline := DefaultDeadline
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < deadline {
			deadline = remaining
		}
	}
	done := make(chan struct{})
	var result Decision
	var resultErr error
	go func() {
		result, resultErr = fn()
		close(done)
	}()
	select {
	case <-done:
		return result, resultErr
	case <-time.After(deadline):
		return Decision{}, riftkind.New(riftkind.ScriptTimeout, "script exceeded CPU deadline")
	}
}
