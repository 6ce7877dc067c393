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

// Package fault implements the fault injection layer (C6): composing a
// response's configured latency/error/tcp faults in the fixed order from
// §4.6, with a should_inject script decision (C2) overriding the composed
// result entirely when it fires.
package fault

import (
	"math/rand"
	"net/http"

	"github.com/riftmock/rift/internal/script"
	"github.com/riftmock/rift/internal/stubmodel"
)

// Outcome discriminates what a fault decision replaces the normal response
// with, if anything.
type Outcome int

const (
	Normal Outcome = iota
	ErrorOutcome
	TCPOutcome
)

// Decision is the result of evaluating a response's fault configuration: an
// optional pre-write delay (independent of the other two fault types), plus
// at most one of an error-response or connection-level outcome.
type Decision struct {
	DelayMs int
	Outcome Outcome
	Status  int
	Body    string
	Headers http.Header
	TCPType stubmodel.TCPFaultType
}

// Evaluate composes a fault decision per §4.6: latency is checked first and
// applies independently of the other two; error is checked next and
// short-circuits (tcp is never also checked once error fires); tcp is
// checked last and may preempt the write. scriptDecision, when non-nil,
// Inject, and carrying a Fault, entirely replaces the configured fault for
// this request rather than composing with it, per §4.6's explicit override
// rule.
func Evaluate(cfg *stubmodel.FaultConfig, scriptDecision *script.Decision, rng *rand.Rand) Decision {
	if scriptDecision != nil && scriptDecision.Inject && scriptDecision.Fault != nil {
		return fromScript(scriptDecision.Fault)
	}
	if cfg == nil {
		return Decision{}
	}

	var d Decision
	if cfg.Latency != nil && rng.Float64() < cfg.Latency.Probability {
		d.DelayMs = sampleLatency(rng, cfg.Latency.MinMs, cfg.Latency.MaxMs)
	}
	if cfg.Error != nil && rng.Float64() < cfg.Error.Probability {
		d.Outcome = ErrorOutcome
		d.Status = cfg.Error.Status
		d.Body = cfg.Error.Body
		d.Headers = cfg.Error.Headers
		return d
	}
	if cfg.TCP != nil && rng.Float64() < cfg.TCP.Probability {
		d.Outcome = TCPOutcome
		d.TCPType = cfg.TCP.Type
		return d
	}
	return d
}

func sampleLatency(rng *rand.Rand, minMs, maxMs int) int {
	if maxMs <= minMs {
		return minMs
	}
	return minMs + rng.Intn(maxMs-minMs+1)
}

func fromScript(fd *script.FaultDecision) Decision {
	switch fd.Kind {
	case "latency":
		return Decision{DelayMs: fd.DurationMs}
	case "error":
		headers := http.Header{}
		for k, v := range fd.Headers {
			headers.Set(k, v)
		}
		return Decision{Outcome: ErrorOutcome, Status: fd.Status, Body: fd.Body, Headers: headers}
	default:
		return Decision{}
	}
}
