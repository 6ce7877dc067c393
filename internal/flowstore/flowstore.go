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

// Package flowstore implements the shared flow-state key-value store (C1):
// one interface, three backends (in-memory, Redis, Postgres), plus an
// optional Kafka audit sink. Key layout is `flow:{flow_id}:{key}` across
// every backend so operators can correlate entries regardless of which
// backend an imposter selected.
package flowstore

import (
	"context"
	"fmt"
)

// Store is the flow-state interface consumed by the script runtime (C2).
// Every method is safe for concurrent use; Increment is linearizable per
// (flowID, key) as required by §5.
type Store interface {
	Get(ctx context.Context, flowID, key string) (any, bool, error)
	Set(ctx context.Context, flowID, key string, value any) error
	Increment(ctx context.Context, flowID, key string) (int64, error)
	Exists(ctx context.Context, flowID, key string) (bool, error)
	Delete(ctx context.Context, flowID, key string) (bool, error)
	SetTTL(ctx context.Context, flowID string, ttlSecs int) error
	Close() error
}

// Backend names the configuration value accepted by `_rift.flowState.backend`.
type Backend string

const (
	InMemory Backend = "inmemory"
	RedisB   Backend = "redis"
	Postgres Backend = "postgres"
)

func wireKey(flowID, key string) string {
	return fmt.Sprintf("flow:%s:%s", flowID, key)
}
