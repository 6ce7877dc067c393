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

package flowstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riftmock/rift/internal/riftkind"
)

// evaler abstracts the subset of *redis.Client this package calls, so tests
// can substitute a miniredis-backed client without depending on the
// concrete type.
type evaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
}

// setScript performs SET plus an optional EXPIRE in one round trip.
const setScript = `
redis.call('SET', KEYS[1], ARGV[1])
if tonumber(ARGV[2]) > 0 then
  redis.call('EXPIRE', KEYS[1], tonumber(ARGV[2]))
end
return 1
`

// incrScript creates-as-1 and applies defaultTTL only on first creation, so
// repeated increments don't keep resetting the expiry, matching the
// in-memory backend's "TTL set on Set, not on every Increment" behavior.
const incrScript = `
local v = redis.call('INCR', KEYS[1])
if v == 1 and tonumber(ARGV[1]) > 0 then
  redis.call('EXPIRE', KEYS[1], tonumber(ARGV[1]))
end
return v
`

// Redis is the remote Flow Store backend, backed by github.com/redis/go-redis/v9.
// Mutations that must appear atomic to concurrent scripts (increment, the
// create-or-replace in Set) run server-side via EVAL, the same pattern the
// teacher's idempotent commit layer uses for its counter writes.
type Redis struct {
	client     evaler
	defaultTTL time.Duration
}

// NewRedis wraps an existing *redis.Client. defaultTTL mirrors Memory's:
// applied by Set and by Increment's first creation, 0 means no expiry.
func NewRedis(client *redis.Client, defaultTTL time.Duration) *Redis {
	return &Redis{client: client, defaultTTL: defaultTTL}
}

func (r *Redis) Get(ctx context.Context, flowID, key string) (any, bool, error) {
	s, err := r.client.Get(ctx, wireKey(flowID, key)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, riftkind.Wrap(riftkind.FlowStoreUnavailable, "redis get", err)
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s, true, nil // stored as a raw string that is not JSON
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, flowID, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return riftkind.Wrap(riftkind.Internal, "encode flow value", err)
	}
	ttlSecs := int(r.defaultTTL / time.Second)
	if err := r.client.Eval(ctx, setScript, []string{wireKey(flowID, key)}, string(encoded), ttlSecs).Err(); err != nil {
		return riftkind.Wrap(riftkind.FlowStoreUnavailable, "redis set", err)
	}
	return nil
}

func (r *Redis) Increment(ctx context.Context, flowID, key string) (int64, error) {
	ttlSecs := int(r.defaultTTL / time.Second)
	v, err := r.client.Eval(ctx, incrScript, []string{wireKey(flowID, key)}, ttlSecs).Int64()
	if err != nil {
		return 0, riftkind.Wrap(riftkind.FlowStoreUnavailable, "redis increment", err)
	}
	return v, nil
}

func (r *Redis) Exists(ctx context.Context, flowID, key string) (bool, error) {
	_, ok, err := r.Get(ctx, flowID, key)
	return ok, err
}

func (r *Redis) Delete(ctx context.Context, flowID, key string) (bool, error) {
	n, err := r.client.Del(ctx, wireKey(flowID, key)).Result()
	if err != nil {
		return false, riftkind.Wrap(riftkind.FlowStoreUnavailable, "redis delete", err)
	}
	return n > 0, nil
}

// SetTTL bounds its pattern scan to maxScanKeys per call, per §4.8's
// "implemented via pattern scan; bounded" note.
const maxScanKeys = 10_000

func (r *Redis) SetTTL(ctx context.Context, flowID string, ttlSecs int) error {
	pattern := fmt.Sprintf("flow:%s:*", flowID)
	ttl := time.Duration(ttlSecs) * time.Second
	var cursor uint64
	scanned := 0
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return riftkind.Wrap(riftkind.FlowStoreUnavailable, "redis scan", err)
		}
		for _, k := range keys {
			if err := r.client.Expire(ctx, k, ttl).Err(); err != nil {
				return riftkind.Wrap(riftkind.FlowStoreUnavailable, "redis expire", err)
			}
			scanned++
			if scanned >= maxScanKeys {
				return nil
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (r *Redis) Close() error {
	if c, ok := r.client.(*redis.Client); ok {
		return c.Close()
	}
	return nil
}

const checkpointKeyPrefix = "rift:checkpoint:"

// Checkpoint implements flowstore.CheckpointSink via INCRBY, for
// CheckpointingStore's write-behind batching.
func (r *Redis) Checkpoint(ctx context.Context, backend string, delta int64) error {
	incrementer, ok := r.client.(interface {
		IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd
	})
	if !ok {
		return riftkind.New(riftkind.FlowStoreUnavailable, "redis client does not support IncrBy")
	}
	if err := incrementer.IncrBy(ctx, checkpointKeyPrefix+backend, delta).Err(); err != nil {
		return riftkind.Wrap(riftkind.FlowStoreUnavailable, "redis checkpoint", err)
	}
	return nil
}

// LastCheckpoint reads backend's last persisted total, for seeding a
// CheckpointingStore's Accumulator across a process restart.
func (r *Redis) LastCheckpoint(ctx context.Context, backend string) (int64, error) {
	s, err := r.client.Get(ctx, checkpointKeyPrefix+backend).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, riftkind.Wrap(riftkind.FlowStoreUnavailable, "redis last checkpoint", err)
	}
	var total int64
	if _, err := fmt.Sscanf(s, "%d", &total); err != nil {
		return 0, riftkind.Wrap(riftkind.Internal, "decode checkpoint total", err)
	}
	return total, nil
}
