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

import (
	"context"

	"github.com/riftmock/rift/internal/flowstore"
)

// flowHandle is the `flow_store` object exposed to scripts, thin wrappers
// over flowstore.Store with the error-to-sentinel translation from §7:
// FlowStoreUnavailable reads return nil, writes return false, and the
// script itself decides how to react.
type flowHandle struct {
	ctx   context.Context
	store flowstore.Store
}

func newFlowHandle(ctx context.Context, store flowstore.Store) *flowHandle {
	return &flowHandle{ctx: ctx, store: store}
}

func (h *flowHandle) Get(flowID, key string) any {
	v, ok, err := h.store.Get(h.ctx, flowID, key)
	if err != nil || !ok {
		return nil
	}
	return v
}

func (h *flowHandle) Set(flowID, key string, value any) bool {
	return h.store.Set(h.ctx, flowID, key, value) == nil
}

func (h *flowHandle) Increment(flowID, key string) int64 {
	v, err := h.store.Increment(h.ctx, flowID, key)
	if err != nil {
		return 0
	}
	return v
}

func (h *flowHandle) Exists(flowID, key string) bool {
	ok, err := h.store.Exists(h.ctx, flowID, key)
	return err == nil && ok
}

func (h *flowHandle) Delete(flowID, key string) bool {
	ok, err := h.store.Delete(h.ctx, flowID, key)
	return err == nil && ok
}

func (h *flowHandle) SetTTL(flowID string, ttlSecs int) bool {
	return h.store.SetTTL(h.ctx, flowID, ttlSecs) == nil
}
