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

package stubmodel

import "net/http"

// FaultConfig is the `_rift.fault` vendor extension (§4.6), settable at
// imposter or response level. A response-level FaultConfig, when present,
// overrides the imposter-level one entirely (not merged field by field).
type FaultConfig struct {
	Latency *LatencyFault
	Error   *ErrorFault
	TCP     *TCPFault
}

// LatencyFault delays the response by a uniformly sampled duration.
type LatencyFault struct {
	Probability float64
	MinMs       int
	MaxMs       int
}

// ErrorFault replaces the normal response with a canned error.
type ErrorFault struct {
	Probability float64
	Status      int
	Body        string
	Headers     http.Header
}

// TCPFaultType names a connection-level fault in place of a normal HTTP
// response.
type TCPFaultType string

const (
	TCPReset   TCPFaultType = "reset"
	TCPTimeout TCPFaultType = "timeout"
	TCPClose   TCPFaultType = "close"
)

// TCPFault preempts the response write with a connection-level action.
type TCPFault struct {
	Probability float64
	Type        TCPFaultType
}
