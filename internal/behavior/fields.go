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
	"sort"
	"strings"

	"github.com/riftmock/rift/internal/reqmodel"
)

// resolveFieldText returns a copy source field's comparable text form (for
// regex extraction) alongside its raw bytes (for jsonpath/xpath, which need
// to parse the field as structured data rather than as opaque text).
func resolveFieldText(req *reqmodel.Request, field string) (string, []byte) {
	switch field {
	case "method":
		m := strings.ToUpper(req.Method)
		return m, []byte(m)
	case "path":
		return req.Path, []byte(req.Path)
	case "body":
		return req.BodyText(), req.Body
	case "query":
		s := req.Query.Encode()
		return s, []byte(s)
	case "headers":
		s := headersText(req)
		return s, []byte(s)
	default:
		return "", nil
	}
}

// headersText renders headers as sorted "Name: value" lines, giving
// regex/jsonpath copy sources something stable to match against.
func headersText(req *reqmodel.Request) string {
	keys := make([]string, 0, len(req.Headers))
	for k := range req.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(req.HeaderValue(k))
		b.WriteString("\n")
	}
	return b.String()
}
