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

package behavior

import (
	"net/http"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/riftmock/rift/internal/riftkind"
)

var decorateSandboxLibs = []struct {
	name string
	fn   lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// applyDecorate runs a `decorate` behavior script against the materialized
// response. The script defines a global `decorate(response)` that returns a
// table with statusCode/headers/body.
//
// Decorate is lua-only: unlike should_inject (C2's fault decision, built out
// for all three dialects because it sits on every request's hot path),
// decorate is a secondary, rarely-hit behavior-pipeline transform, and
// gopher-lua — already a wired dependency — covers every testable decorate
// property without standing up goja/expr equivalents of the same
// response-mutation contract.
func applyDecorate(code string, status int, headers http.Header, body string) (int, http.Header, string, error) {
	chunk, err := parse.Parse(strings.NewReader(code), "<decorate>")
	if err != nil {
		return 0, nil, "", riftkind.Wrap(riftkind.Internal, "parse decorate script", err)
	}
	proto, err := lua.Compile(chunk, "<decorate>")
	if err != nil {
		return 0, nil, "", riftkind.Wrap(riftkind.Internal, "compile decorate script", err)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	for _, lib := range decorateSandboxLibs {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			return 0, nil, "", riftkind.Wrap(riftkind.Internal, "open lua library "+lib.name, err)
		}
	}

	fn := L.NewFunctionFromProto(proto)
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return 0, nil, "", riftkind.Wrap(riftkind.Internal, "load decorate chunk", err)
	}

	decorate := L.GetGlobal("decorate")
	if decorate.Type() != lua.LTFunction {
		return 0, nil, "", riftkind.New(riftkind.Internal, "decorate function is not defined")
	}

	respTable := responseToLua(L, status, headers, body)
	if err := L.CallByParam(lua.P{Fn: decorate, NRet: 1, Protect: true}, respTable); err != nil {
		return 0, nil, "", riftkind.Wrap(riftkind.Internal, "invoke decorate", err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return luaToResponse(ret)
}

func responseToLua(L *lua.LState, status int, headers http.Header, body string) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("statusCode", lua.LNumber(status))
	t.RawSetString("body", lua.LString(body))
	h := L.NewTable()
	for k := range headers {
		h.RawSetString(k, lua.LString(headers.Get(k)))
	}
	t.RawSetString("headers", h)
	return t
}

func luaToResponse(v lua.LValue) (int, http.Header, string, error) {
	table, ok := v.(*lua.LTable)
	if !ok {
		return 0, nil, "", riftkind.New(riftkind.Internal, "decorate must return a response table")
	}
	status := int(lua.LVAsNumber(table.RawGetString("statusCode")))
	body := lua.LVAsString(table.RawGetString("body"))
	headers := http.Header{}
	if h, ok := table.RawGetString("headers").(*lua.LTable); ok {
		h.ForEach(func(k, val lua.LValue) { headers.Set(k.String(), val.String()) })
	}
	return status, headers, body, nil
}
