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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os/exec"

	"github.com/riftmock/rift/internal/reqmodel"
	"github.com/riftmock/rift/internal/riftkind"
)

type shellRequest struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Query   map[string]string `json:"query"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

type shellResponse struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

type shellEnvelope struct {
	Request  shellRequest  `json:"request"`
	Response shellResponse `json:"response"`
}

// applyShellTransform runs command (via "sh -c"), feeding it a JSON envelope
// of {request, response} on stdin and expecting a JSON response object back
// on stdout, per §4.4's "external program" description. Gated by the same
// --allow-injection capability as script execution (Pipeline.allowShellTransform):
// spawning an external process is at least as strong a capability as an
// in-process sandboxed script, so §9's Open Question on this point is
// resolved conservatively.
func applyShellTransform(ctx context.Context, command string, req *reqmodel.Request, status int, headers http.Header, body string) (int, http.Header, string, error) {
	query := make(map[string]string, len(req.Query))
	for k := range req.Query {
		query[k] = req.QueryValue(k)
	}
	reqHeaders := make(map[string]string, len(req.Headers))
	for k := range req.Headers {
		reqHeaders[k] = req.HeaderValue(k)
	}

	input := shellEnvelope{
		Request: shellRequest{
			Method:  req.Method,
			Path:    req.Path,
			Query:   query,
			Headers: reqHeaders,
			Body:    req.BodyText(),
		},
		Response: shellResponse{
			StatusCode: status,
			Headers:    headerToMap(headers),
			Body:       body,
		},
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return 0, nil, "", riftkind.Wrap(riftkind.Internal, "marshal shellTransform input", err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return 0, nil, "", riftkind.Wrap(riftkind.Internal, "run shellTransform", err)
	}

	var out shellResponse
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return 0, nil, "", riftkind.Wrap(riftkind.Internal, "parse shellTransform output", err)
	}
	return out.StatusCode, mapToHeader(out.Headers), out.Body, nil
}

func headerToMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func mapToHeader(m map[string]string) http.Header {
	h := http.Header{}
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}
