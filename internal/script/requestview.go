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

import "github.com/riftmock/rift/internal/reqmodel"

// requestView is the plain-data shape exposed to every dialect as `request`,
// matching §4.7's field list exactly.
type requestView struct {
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Query      map[string]string `json:"query"`
	Headers    map[string]string `json:"headers"`
	PathParams map[string]string `json:"pathParams"`
	Body       any               `json:"body"` // parsed JSON if possible, else the raw string
}

func newRequestView(req *reqmodel.Request) requestView {
	query := make(map[string]string, len(req.Query))
	for k := range req.Query {
		query[k] = req.QueryValue(k)
	}
	headers := make(map[string]string, len(req.Headers))
	for k := range req.Headers {
		headers[k] = req.HeaderValue(k)
	}
	var body any = req.BodyText()
	if req.JSONBody != nil {
		body = req.JSONBody
	}
	return requestView{
		Method:     req.Method,
		Path:       req.Path,
		Query:      query,
		Headers:    headers,
		PathParams: req.PathParams,
		Body:       body,
	}
}
