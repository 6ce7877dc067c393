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

package script

import (
	"context"
	"errors"
	"time"

	"github.com/dop251/goja"

	"github.com/riftmock/rift/internal/flowstore"
	"github.com/riftmock/rift/internal/reqmodel"
	"github.com/riftmock/rift/internal/riftkind"
)

// jsEngine compiles `javascript` dialect scripts with github.com/dop251/goja,
// a pure-Go ECMAScript 5.1+ VM. Sandboxing is by omission: a fresh
// goja.Runtime is built per invocation and only `request`/`flow_store` are
// ever bound to it, so scripts never see `require`, the filesystem, or any
// host process capability.
type jsEngine struct{}

func (e *jsEngine) Compile(code string) (Program, error) {
	prog, err := goja.Compile("<script>", code, false)
	if err != nil {
		return nil, err
	}
	return &jsProgram{prog: prog}, nil
}

type jsProgram struct {
	prog *goja.Program
}

func (p *jsProgram) Invoke(ctx context.Context, req *reqmodel.Request, store flowstore.Store) (Decision, error) {
	deadline := DefaultDeadline
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < deadline {
			deadline = remaining
		}
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	timer := time.AfterFunc(deadline, func() { vm.Interrupt("script exceeded CPU deadline") })
	defer timer.Stop()

	if err := vm.Set("request", newRequestView(req)); err != nil {
		return Decision{}, riftkind.Wrap(riftkind.ScriptRuntime, "bind request", err)
	}
	if err := vm.Set("flow_store", flowStoreObject(newFlowHandle(ctx, store))); err != nil {
		return Decision{}, riftkind.Wrap(riftkind.ScriptRuntime, "bind flow_store", err)
	}

	if _, err := vm.RunProgram(p.prog); err != nil {
		return Decision{}, classifyJSErr(err)
	}

	fn, ok := goja.AssertFunction(vm.Get("should_inject"))
	if !ok {
		return Decision{}, riftkind.New(riftkind.ScriptRuntime, "should_inject is not defined")
	}
	result, err := fn(goja.Undefined(), vm.Get("request"), vm.Get("flow_store"))
	if err != nil {
		return Decision{}, classifyJSErr(err)
	}
	return jsToDecision(result)
}

// flowStoreObject builds the plain-func map exposed as `flow_store`; goja
// converts exported Go functions assigned this way into callable JS
// functions automatically, so no manual FunctionCall plumbing is needed.
func flowStoreObject(h *flowHandle) map[string]any {
	return map[string]any{
		"get":       func(flowID, key string) any { return h.Get(flowID, key) },
		"set":       func(flowID, key string, value any) bool { return h.Set(flowID, key, value) },
		"increment": func(flowID, key string) int64 { return h.Increment(flowID, key) },
		"exists":    func(flowID, key string) bool { return h.Exists(flowID, key) },
		"delete":    func(flowID, key string) bool { return h.Delete(flowID, key) },
		"set_ttl":   func(flowID string, ttlSecs int) bool { return h.SetTTL(flowID, ttlSecs) },
	}
}

func classifyJSErr(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return riftkind.New(riftkind.ScriptTimeout, "script exceeded CPU deadline")
	}
	return riftkind.Wrap(riftkind.ScriptRuntime, "javascript execution failed", err)
}

// jsToDecision reads should_inject's return value per §4.7's flat shape:
// {inject, fault, status, body, headers, duration_ms} all as sibling
// properties of one object.
func jsToDecision(v goja.Value) (Decision, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return Decision{Inject: false}, nil
	}
	obj := v.ToObject(nil)
	if obj == nil {
		return Decision{}, riftkind.New(riftkind.ScriptRuntime, "should_inject must return an object")
	}
	inject, _ := obj.Get("inject").Export().(bool)
	if !inject {
		return Decision{Inject: false}, nil
	}
	fd := &FaultDecision{}
	if kind, ok := obj.Get("fault").Export().(string); ok {
		fd.Kind = kind
	}
	if status, ok := toInt(obj.Get("status")); ok {
		fd.Status = status
	}
	if body, ok := obj.Get("body").Export().(string); ok {
		fd.Body = body
	}
	if ms, ok := toInt(obj.Get("duration_ms")); ok {
		fd.DurationMs = ms
	}
	if headersVal := obj.Get("headers"); headersVal != nil && !goja.IsUndefined(headersVal) {
		if raw, ok := headersVal.Export().(map[string]any); ok {
			fd.Headers = map[string]string{}
			for k, val := range raw {
				if s, ok := val.(string); ok {
					fd.Headers[k] = s
				}
			}
		}
	}
	return Decision{Inject: true, Fault: fd}, nil
}

func toInt(v goja.Value) (int, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, false
	}
	switch n := v.Export().(type) {
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
