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
	"time"
)

// KafkaProducer is a minimal abstraction over a Kafka client, deliberately
// not tied to one client library: operators wire whichever idempotent
// producer their deployment already runs (segmentio/kafka-go,
// confluent-kafka-go, IBM/sarama all satisfy this shape with a one-line
// adapter). Requirements: enable.idempotence=true, use the flow_id as the
// message key so per-flow ordering is preserved.
type KafkaProducer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// ChangeEvent is the payload published for every flow-store mutation.
type ChangeEvent struct {
	FlowID   string `json:"flow_id"`
	Key      string `json:"key"`
	Op       string `json:"op"` // "set" | "increment" | "delete" | "set_ttl"
	Result   any    `json:"result,omitempty"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}

// KafkaAuditSink wraps a Store and publishes a ChangeEvent for every
// mutation, off the request's hot path semantics: a publish failure is
// discarded and never fails the underlying Store operation,
// since flow-store correctness must never depend on the sink being up.
type KafkaAuditSink struct {
	Store
	producer KafkaProducer
	topic    string
	now      func() time.Time
}

// NewKafkaAuditSink wraps store so every mutation also publishes to topic.
func NewKafkaAuditSink(store Store, producer KafkaProducer, topic string) *KafkaAuditSink {
	return &KafkaAuditSink{Store: store, producer: producer, topic: topic, now: time.Now}
}

func (k *KafkaAuditSink) publish(ctx context.Context, flowID, key, op string, result any) {
	evt := ChangeEvent{FlowID: flowID, Key: key, Op: op, Result: result, TsUnixMs: k.now().UnixMilli()}
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	_ = k.producer.Produce(ctx, k.topic, []byte(flowID), payload)
}

func (k *KafkaAuditSink) Set(ctx context.Context, flowID, key string, value any) error {
	err := k.Store.Set(ctx, flowID, key, value)
	if err == nil {
		k.publish(ctx, flowID, key, "set", value)
	}
	return err
}

func (k *KafkaAuditSink) Increment(ctx context.Context, flowID, key string) (int64, error) {
	v, err := k.Store.Increment(ctx, flowID, key)
	if err == nil {
		k.publish(ctx, flowID, key, "increment", v)
	}
	return v, err
}

func (k *KafkaAuditSink) Delete(ctx context.Context, flowID, key string) (bool, error) {
	ok, err := k.Store.Delete(ctx, flowID, key)
	if err == nil && ok {
		k.publish(ctx, flowID, key, "delete", nil)
	}
	return ok, err
}

func (k *KafkaAuditSink) SetTTL(ctx context.Context, flowID string, ttlSecs int) error {
	err := k.Store.SetTTL(ctx, flowID, ttlSecs)
	if err == nil {
		k.publish(ctx, flowID, "", "set_ttl", ttlSecs)
	}
	return err
}
