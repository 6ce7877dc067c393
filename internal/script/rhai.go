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

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/riftmock/rift/internal/flowstore"
	"github.com/riftmock/rift/internal/reqmodel"
	"github.com/riftmock/rift/internal/riftkind"
)

// rhaiEngine stands in for the `rhai` dialect. No maintained Rhai binding
// exists for Go, so per §4.13 this dialect is implemented as a restricted
// expression language instead: github.com/expr-lang/expr, compiled against
// an environment exposing exactly `request` and `flow_store`. A script body
// is one expression evaluating directly to the should_inject result map —
// there is no function wrapper, since expr has no user-defined-function
// syntax to mirror lua/javascript's should_inject(request, flow_store).
type rhaiEngine struct{}

func (e *rhaiEngine) Compile(code string) (Program, error) {
	program, err := expr.Compile(code, expr.Env(map[string]any{}), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	return &rhaiProgram{program: program}, nil
}

type rhaiProgram struct {
	program *vm.Program
}

func (p *rhaiProgram) Invoke(ctx context.Context, req *reqmodel.Request, store flowstore.Store) (Decision, error) {
	return withDeadline(ctx, func() (Decision, error) {
		env := map[string]any{
			"request":    requestToExprEnv(newRequestView(req)),
			"flow_store": flowStoreObject(newFlowHandle(ctx, store)),
		}
		out, err := expr.Run(p.program, env)
		if err != nil {
			return Decision{}, riftkind.Wrap(riftkind.ScriptRuntime, "rhai expression evaluation failed", err)
		}
		return rhaiToDecision(out)
	})
}

func requestToExprEnv(rv requestView) map[string]any {
	query := make(map[string]any, len(rv.Query))
	for k, v := range rv.Query {
		query[k] = v
	}
	headers := make(map[string]any, len(rv.Headers))
	for k, v := range rv.Headers {
		headers[k] = v
	}
	pathParams := make(map[string]any, len(rv.PathParams))
	for k, v := range rv.PathParams {
		pathParams[k] = v
	}
	return map[string]any{
		"method":     rv.Method,
		"path":       rv.Path,
		"query":      query,
		"headers":    headers,
		"pathParams": pathParams,
		"body":       rv.Body,
	}
}

// rhaiToDecision mirrors luaToDecision/jsToDecision: the evaluated map's
// fault/status/body/headers/duration_ms keys sit at the top level beside
// inject, per §4.7.
func rhaiToDecision(out any) (Decision, error) {
	m, ok := out.(map[string]any)
	if !ok {
		return Decision{}, riftkind.New(riftkind.ScriptRuntime, "should_inject expression must evaluate to a map")
	}
	inject, _ := m["inject"].(bool)
	if !inject {
		return Decision{Inject: false}, nil
	}
	fd := &FaultDecision{}
	if kind, ok := m["fault"].(string); ok {
		fd.Kind = kind
	}
	if status, ok := toIntAny(m["status"]); ok {
		fd.Status = status
	}
	if body, ok := m["body"].(string); ok {
		fd.Body = body
	}
	if ms, ok := toIntAny(m["duration_ms"]); ok {
		fd.DurationMs = ms
	}
	if headers, ok := m["headers"].(map[string]any); ok {
		fd.Headers = map[string]string{}
		for k, v := range headers {
			if s, ok := v.(string); ok {
				fd.Headers[k] = s
			}
		}
	}
	return Decision{Inject: true, Fault: fd}, nil
}

func toIntAny(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
