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
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/riftmock/rift/internal/flowstore"
	"github.com/riftmock/rift/internal/reqmodel"
	"github.com/riftmock/rift/internal/riftkind"
)

// luaEngine compiles `lua` dialect scripts with github.com/yuin/gopher-lua,
// a pure-Go Lua 5.1 VM. Compilation produces a *lua.FunctionProto, reused
// to build a fresh lua.LState per invocation; only base/table/string/math
// are opened, so scripts have no filesystem, network, or process access.
type luaEngine struct{}

func (e *luaEngine) Compile(code string) (Program, error) {
	chunk, err := parse.Parse(strings.NewReader(code), "<script>")
	if err != nil {
		return nil, err
	}
	proto, err := lua.Compile(chunk, "<script>")
	if err != nil {
		return nil, err
	}
	return &luaProgram{proto: proto}, nil
}

type luaProgram struct {
	proto *lua.FunctionProto
}

var luaSandboxLibs = []struct {
	name string
	fn   lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

func (p *luaProgram) Invoke(ctx context.Context, req *reqmodel.Request, store flowstore.Store) (Decision, error) {
	return withDeadline(ctx, func() (Decision, error) {
		L := lua.NewState(lua.Options{SkipOpenLibs: true})
		defer L.Close()
		for _, lib := range luaSandboxLibs {
			if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
				return Decision{}, riftkind.Wrap(riftkind.ScriptRuntime, "open lua library "+lib.name, err)
			}
		}
		// The base library's file loaders would otherwise read the filesystem.
		L.SetGlobal("dofile", lua.LNil)
		L.SetGlobal("loadfile", lua.LNil)

		fn := L.NewFunctionFromProto(p.proto)
		L.Push(fn)
		if err := L.PCall(0, lua.MultRet, nil); err != nil {
			return Decision{}, riftkind.Wrap(riftkind.ScriptRuntime, "load lua chunk", err)
		}

		should := L.GetGlobal("should_inject")
		if should.Type() != lua.LTFunction {
			return Decision{}, riftkind.New(riftkind.ScriptRuntime, "should_inject is not defined")
		}

		reqTable := requestToLua(L, newRequestView(req))
		flowTable := flowHandleToLua(L, newFlowHandle(ctx, store))

		if err := L.CallByParam(lua.P{Fn: should, NRet: 1, Protect: true}, reqTable, flowTable); err != nil {
			return Decision{}, riftkind.Wrap(riftkind.ScriptRuntime, "invoke should_inject", err)
		}
		ret := L.Get(-1)
		L.Pop(1)
		return luaToDecision(ret)
	})
}

func requestToLua(L *lua.LState, rv requestView) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("method", lua.LString(rv.Method))
	t.RawSetString("path", lua.LString(rv.Path))
	t.RawSetString("query", stringMapToLua(L, rv.Query))
	t.RawSetString("headers", stringMapToLua(L, rv.Headers))
	t.RawSetString("pathParams", stringMapToLua(L, rv.PathParams))
	t.RawSetString("body", anyToLua(L, rv.Body))
	return t
}

func stringMapToLua(L *lua.LState, m map[string]string) *lua.LTable {
	t := L.NewTable()
	for k, v := range m {
		t.RawSetString(k, lua.LString(v))
	}
	return t
}

func anyToLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(x)
	case bool:
		return lua.LBool(x)
	case float64:
		return lua.LNumber(x)
	case map[string]any:
		t := L.NewTable()
		for k, val := range x {
			t.RawSetString(k, anyToLua(L, val))
		}
		return t
	case []any:
		t := L.NewTable()
		for i, val := range x {
			t.RawSetInt(i+1, anyToLua(L, val))
		}
		return t
	default:
		return lua.LString("")
	}
}

func flowHandleToLua(L *lua.LState, h *flowHandle) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("get", L.NewFunction(func(L *lua.LState) int {
		L.Push(anyToLua(L, h.Get(L.CheckString(1), L.CheckString(2))))
		return 1
	}))
	t.RawSetString("set", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(h.Set(L.CheckString(1), L.CheckString(2), luaToAny(L.CheckAny(3)))))
		return 1
	}))
	t.RawSetString("increment", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(h.Increment(L.CheckString(1), L.CheckString(2))))
		return 1
	}))
	t.RawSetString("exists", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(h.Exists(L.CheckString(1), L.CheckString(2))))
		return 1
	}))
	t.RawSetString("delete", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(h.Delete(L.CheckString(1), L.CheckString(2))))
		return 1
	}))
	t.RawSetString("set_ttl", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(h.SetTTL(L.CheckString(1), L.CheckInt(2))))
		return 1
	}))
	return t
}

func luaToAny(v lua.LValue) any {
	switch x := v.(type) {
	case lua.LString:
		return string(x)
	case lua.LNumber:
		return float64(x)
	case lua.LBool:
		return bool(x)
	case *lua.LTable:
		out := map[string]any{}
		x.ForEach(func(k, val lua.LValue) { out[k.String()] = luaToAny(val) })
		return out
	default:
		return nil
	}
}

// luaToDecision reads the should_inject return value per §4.7's shape:
// {inject: bool, fault: "error"|"latency", status?, body?, headers?,
// duration_ms?} — fault's sibling keys live at the top level, not nested.
func luaToDecision(v lua.LValue) (Decision, error) {
	table, ok := v.(*lua.LTable)
	if !ok {
		return Decision{}, riftkind.New(riftkind.ScriptRuntime, "should_inject must return a table")
	}
	inject := lua.LVAsBool(table.RawGetString("inject"))
	if !inject {
		return Decision{Inject: false}, nil
	}
	fd := &FaultDecision{
		Kind:       lua.LVAsString(table.RawGetString("fault")),
		Status:     int(lua.LVAsNumber(table.RawGetString("status"))),
		Body:       lua.LVAsString(table.RawGetString("body")),
		DurationMs: int(lua.LVAsNumber(table.RawGetString("duration_ms"))),
	}
	if headers, ok := table.RawGetString("headers").(*lua.LTable); ok {
		fd.Headers = map[string]string{}
		headers.ForEach(func(k, val lua.LValue) { fd.Headers[k.String()] = val.String() })
	}
	return Decision{Inject: true, Fault: fd}, nil
}
