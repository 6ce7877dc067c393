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

package fault

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riftmock/rift/internal/script"
	"github.com/riftmock/rift/internal/stubmodel"
)

func TestEvaluateNilConfigYieldsNormal(t *testing.T) {
	d := Evaluate(nil, nil, rand.New(rand.NewSource(1)))
	require.Equal(t, Normal, d.Outcome)
	require.Zero(t, d.DelayMs)
}

func TestEvaluateLatencyAlwaysTriggersAtProbabilityOne(t *testing.T) {
	cfg := &stubmodel.FaultConfig{Latency: &stubmodel.LatencyFault{Probability: 1, MinMs: 50, MaxMs: 50}}
	d := Evaluate(cfg, nil, rand.New(rand.NewSource(1)))
	require.Equal(t, 50, d.DelayMs)
	require.Equal(t, Normal, d.Outcome)
}

func TestEvaluateLatencyNeverTriggersAtProbabilityZero(t *testing.T) {
	cfg := &stubmodel.FaultConfig{Latency: &stubmodel.LatencyFault{Probability: 0, MinMs: 50, MaxMs: 100}}
	for seed := int64(0); seed < 20; seed++ {
		d := Evaluate(cfg, nil, rand.New(rand.NewSource(seed)))
		require.Zero(t, d.DelayMs)
	}
}

func TestEvaluateErrorShortCircuitsBeforeTCP(t *testing.T) {
	cfg := &stubmodel.FaultConfig{
		Error: &stubmodel.ErrorFault{Probability: 1, Status: 503, Body: "down"},
		TCP:   &stubmodel.TCPFault{Probability: 1, Type: stubmodel.TCPReset},
	}
	d := Evaluate(cfg, nil, rand.New(rand.NewSource(1)))
	require.Equal(t, ErrorOutcome, d.Outcome)
	require.Equal(t, 503, d.Status)
	require.Equal(t, "down", d.Body)
}

func TestEvaluateTCPFiresWhenErrorDoesNot(t *testing.T) {
	cfg := &stubmodel.FaultConfig{
		Error: &stubmodel.ErrorFault{Probability: 0, Status: 503},
		TCP:   &stubmodel.TCPFault{Probability: 1, Type: stubmodel.TCPReset},
	}
	d := Evaluate(cfg, nil, rand.New(rand.NewSource(1)))
	require.Equal(t, TCPOutcome, d.Outcome)
	require.Equal(t, stubmodel.TCPReset, d.TCPType)
}

func TestEvaluateLatencyComposesWithError(t *testing.T) {
	cfg := &stubmodel.FaultConfig{
		Latency: &stubmodel.LatencyFault{Probability: 1, MinMs: 25, MaxMs: 25},
		Error:   &stubmodel.ErrorFault{Probability: 1, Status: 500, Body: "boom"},
	}
	d := Evaluate(cfg, nil, rand.New(rand.NewSource(1)))
	require.Equal(t, 25, d.DelayMs)
	require.Equal(t, ErrorOutcome, d.Outcome)
	require.Equal(t, 500, d.Status)
}

func TestEvaluateScriptDecisionOverridesConfiguredFault(t *testing.T) {
	cfg := &stubmodel.FaultConfig{
		Error: &stubmodel.ErrorFault{Probability: 1, Status: 500, Body: "configured"},
	}
	decision := &script.Decision{
		Inject: true,
		Fault:  &script.FaultDecision{Kind: "error", Status: 503, Body: "scripted"},
	}
	d := Evaluate(cfg, decision, rand.New(rand.NewSource(1)))
	require.Equal(t, ErrorOutcome, d.Outcome)
	require.Equal(t, 503, d.Status)
	require.Equal(t, "scripted", d.Body)
}

func TestEvaluateScriptLatencyDecision(t *testing.T) {
	decision := &script.Decision{
		Inject: true,
		Fault:  &script.FaultDecision{Kind: "latency", DurationMs: 333},
	}
	d := Evaluate(nil, decision, rand.New(rand.NewSource(1)))
	require.Equal(t, 333, d.DelayMs)
	require.Equal(t, Normal, d.Outcome)
}

func TestEvaluateScriptNoInjectFallsBackToConfiguredFault(t *testing.T) {
	cfg := &stubmodel.FaultConfig{Error: &stubmodel.ErrorFault{Probability: 1, Status: 500}}
	decision := &script.Decision{Inject: false}
	d := Evaluate(cfg, decision, rand.New(rand.NewSource(1)))
	require.Equal(t, ErrorOutcome, d.Outcome)
	require.Equal(t, 500, d.Status)
}
