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

// Package matcher implements the stub matcher (C7): given a request and an
// imposter's stub snapshot, select the first matching stub in order and
// cycle its response. This package holds no state of its own; all cyclic
// state lives on *stubmodel.Stub so it survives across calls.
package matcher

import (
	"net/http"

	"github.com/riftmock/rift/internal/reqmodel"
	"github.com/riftmock/rift/internal/stubmodel"
)

// defaultEmptyResponse is served per §4.3/§8 when an imposter has neither a
// matching stub nor a defaultResponse: 200, empty body, text/plain.
var defaultEmptyResponse = &stubmodel.Response{
	Kind: stubmodel.IsKind,
	Is: &stubmodel.IsResponse{
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": []string{"text/plain"}},
		Body:       "",
	},
}

// Result is the outcome of a single match attempt.
type Result struct {
	Response    *stubmodel.Response
	StubIndex   int // -1 if no stub matched
	RespIndex   int // -1 if no stub matched
	UsedDefault bool
}

// Select scans stubs in order and returns the first match's cycled
// response, or the imposter's defaultResponse (or the built-in empty 200)
// when nothing matches.
func Select(stubs []*stubmodel.Stub, defaultResponse *stubmodel.Response, req *reqmodel.Request) Result {
	for i, s := range stubs {
		if s.Matches(req) {
			resp, respIdx := s.NextResponse()
			return Result{Response: resp, StubIndex: i, RespIndex: respIdx}
		}
	}
	if defaultResponse != nil {
		return Result{Response: defaultResponse, StubIndex: -1, RespIndex: -1, UsedDefault: true}
	}
	return Result{Response: defaultEmptyResponse, StubIndex: -1, RespIndex: -1, UsedDefault: true}
}
