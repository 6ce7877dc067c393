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

// Package behavior implements the post-match transform pipeline (C5): copy,
// lookup, decorate, shellTransform, template substitution, and wait, applied
// in the fixed order from §4.4.
package behavior

import (
	"context"
	"net/http"

	"github.com/riftmock/rift/internal/flowstore"
	"github.com/riftmock/rift/internal/reqmodel"
	"github.com/riftmock/rift/internal/riftkind"
	"github.com/riftmock/rift/internal/stubmodel"
	"github.com/riftmock/rift/internal/template"
)

// Pipeline applies a response's behaviors in order: copy -> lookup ->
// decorate/shellTransform -> template substitution -> wait. It is a thin
// façade over internal/template's extractors and this package's
// decorate/shellTransform/wait steps, in the same spirit as the teacher's
// own Pipeline façade (plugin/tfd/pipeline.go): explicit construction
// options, no hidden globals, and no allocation beyond what each stage
// actually needs.
type Pipeline struct {
	flowStore           flowstore.Store
	allowShellTransform bool
}

// NewPipeline builds a Pipeline. allowShellTransform gates the shellTransform
// behavior on the same capability flag as script execution (--allow-injection):
// spawning an external process is at least as strong a capability as an
// in-process sandboxed script, which is how this repo resolves §9's Open
// Question on whether shellTransform should be independently gated.
func NewPipeline(flowStore flowstore.Store, allowShellTransform bool) *Pipeline {
	return &Pipeline{flowStore: flowStore, allowShellTransform: allowShellTransform}
}

// Result is the materialized response, ready to write. WaitMs is returned
// rather than slept here: the fault layer (C6) owns total request latency
// composition, since a latency fault and a wait behavior both delay the
// same write and must be summed in one place.
type Result struct {
	StatusCode int
	Headers    http.Header
	Body       string
	WaitMs     int
}

// Apply runs is through the fixed behavior order for one request.
// pathParams seeds the initial template bindings with regex-captured path
// predicate groups. The wait behavior's optional inject expression runs
// against the pipeline's flow store.
func (p *Pipeline) Apply(ctx context.Context, req *reqmodel.Request, is *stubmodel.IsResponse, behaviors *stubmodel.Behaviors, pathParams map[string]string) (Result, error) {
	if is == nil {
		return Result{}, riftkind.New(riftkind.Internal, "behavior pipeline requires an is response")
	}

	bindings := template.FromPathParams(pathParams)
	status := is.StatusCode
	body := is.Body
	headers := cloneHeader(is.Headers)
	strict := false

	if behaviors != nil {
		strict = behaviors.Strict

		copyBindings, err := applyCopy(req, behaviors.Copy)
		if err != nil {
			return Result{}, err
		}
		bindings = template.Merge(bindings, copyBindings)

		lookupBindings, err := applyLookup(req, behaviors.Lookup)
		if err != nil {
			return Result{}, err
		}
		bindings = template.Merge(bindings, lookupBindings)

		if behaviors.Decorate != "" {
			status, headers, body, err = applyDecorate(behaviors.Decorate, status, headers, body)
			if err != nil {
				return Result{}, err
			}
		}

		if behaviors.ShellTransform != "" {
			if !p.allowShellTransform {
				return Result{}, riftkind.New(riftkind.Internal, "shellTransform requires --allow-injection")
			}
			status, headers, body, err = applyShellTransform(ctx, behaviors.ShellTransform, req, status, headers, body)
			if err != nil {
				return Result{}, err
			}
		}
	}

	renderedBody, err := template.Render(body, bindings, strict)
	if err != nil {
		return Result{}, err
	}
	renderedHeaders := http.Header{}
	for k := range headers {
		v, err := template.Render(headers.Get(k), bindings, strict)
		if err != nil {
			return Result{}, err
		}
		renderedHeaders.Set(k, v)
	}

	waitMs := 0
	if behaviors != nil && behaviors.Wait != nil {
		waitMs, err = p.resolveWait(ctx, req, behaviors.Wait)
		if err != nil {
			return Result{}, err
		}
	}

	return Result{StatusCode: status, Headers: renderedHeaders, Body: renderedBody, WaitMs: waitMs}, nil
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	return h.Clone()
}
