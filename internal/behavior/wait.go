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
	"context"

	"github.com/expr-lang/expr"

	"github.com/riftmock/rift/internal/reqmodel"
	"github.com/riftmock/rift/internal/riftkind"
	"github.com/riftmock/rift/internal/stubmodel"
)

// resolveWait computes the pre-write delay in milliseconds for a response's
// wait behavior. A literal Ms is used as-is; an Inject expression is
// evaluated with the same expr-lang/expr engine the script runtime's `rhai`
// dialect uses (§4.13), against an environment exposing `request` and
// `flow_store`, but is expected to return a bare number rather than a
// should_inject-shaped decision map (§4.4: "a wait with an inject expression
// evaluates the script for its numeric return").
func (p *Pipeline) resolveWait(ctx context.Context, req *reqmodel.Request, w *stubmodel.WaitBehavior) (int, error) {
	if w == nil {
		return 0, nil
	}
	if w.Inject == "" {
		return w.Ms, nil
	}

	program, err := expr.Compile(w.Inject, expr.Env(map[string]any{}), expr.AllowUndefinedVariables())
	if err != nil {
		return 0, riftkind.Wrap(riftkind.Internal, "compile wait inject expression", err)
	}

	env := map[string]any{
		"request":    exprRequestEnv(req),
		"flow_store": exprFlowStoreEnv(ctx, p),
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return 0, riftkind.Wrap(riftkind.Internal, "evaluate wait inject expression", err)
	}
	switch n := out.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, riftkind.New(riftkind.Internal, "wait inject expression must return a number")
	}
}

func exprRequestEnv(req *reqmodel.Request) map[string]any {
	query := make(map[string]any, len(req.Query))
	for k := range req.Query {
		query[k] = req.QueryValue(k)
	}
	headers := make(map[string]any, len(req.Headers))
	for k := range req.Headers {
		headers[k] = req.HeaderValue(k)
	}
	pathParams := make(map[string]any, len(req.PathParams))
	for k, v := range req.PathParams {
		pathParams[k] = v
	}
	var body any = req.BodyText()
	if req.JSONBody != nil {
		body = req.JSONBody
	}
	return map[string]any{
		"method":     req.Method,
		"path":       req.Path,
		"query":      query,
		"headers":    headers,
		"pathParams": pathParams,
		"body":       body,
	}
}

func exprFlowStoreEnv(ctx context.Context, p *Pipeline) map[string]any {
	return map[string]any{
		"get": func(flowID, key string) any {
			v, ok, err := p.flowStore.Get(ctx, flowID, key)
			if err != nil || !ok {
				return nil
			}
			return v
		},
		"increment": func(flowID, key string) int64 {
			v, err := p.flowStore.Increment(ctx, flowID, key)
			if err != nil {
				return 0
			}
			return v
		},
		"exists": func(flowID, key string) bool {
			ok, err := p.flowStore.Exists(ctx, flowID, key)
			return err == nil && ok
		},
	}
}
