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
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/lib/pq"

	"github.com/riftmock/rift/internal/riftkind"
)

// Postgres schema (reference):
//
// CREATE TABLE IF NOT EXISTS flow_entries (
//   flow_id    TEXT NOT NULL,
//   key        TEXT NOT NULL,
//   value      JSONB NOT NULL,
//   expires_at TIMESTAMPTZ,
//   PRIMARY KEY (flow_id, key)
// );
// CREATE INDEX IF NOT EXISTS idx_flow_entries_flow_id ON flow_entries(flow_id);

// Postgres is the remote Flow Store backend, backed by database/sql and
// github.com/lib/pq. Set and Increment use INSERT ... ON CONFLICT so
// concurrent writers never lose an update, the same idempotent-upsert
// pattern the teacher's persistence layer uses for counter commits.
type Postgres struct {
	db         *sql.DB
	defaultTTL time.Duration
}

// NewPostgres wraps an existing *sql.DB already opened against the
// "postgres" driver.
func NewPostgres(db *sql.DB, defaultTTL time.Duration) *Postgres {
	return &Postgres{db: db, defaultTTL: defaultTTL}
}

func (p *Postgres) Get(ctx context.Context, flowID, key string) (any, bool, error) {
	var raw []byte
	var expiresAt sql.NullTime
	err := p.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM flow_entries WHERE flow_id = $1 AND key = $2`,
		flowID, key).Scan(&raw, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, riftkind.Wrap(riftkind.FlowStoreUnavailable, "postgres get", err)
	}
	if expiresAt.Valid && expiresAt.Time.Before(time.Now()) {
		_, _ = p.db.ExecContext(ctx, `DELETE FROM flow_entries WHERE flow_id = $1 AND key = $2`, flowID, key)
		return nil, false, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, riftkind.Wrap(riftkind.Internal, "decode flow value", err)
	}
	return v, true, nil
}

func (p *Postgres) Set(ctx context.Context, flowID, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return riftkind.Wrap(riftkind.Internal, "encode flow value", err)
	}
	expiresAt := p.expiryOrNil()
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO flow_entries (flow_id, key, value, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (flow_id, key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`, flowID, key, encoded, expiresAt)
	if err != nil {
		return riftkind.Wrap(riftkind.FlowStoreUnavailable, "postgres set", err)
	}
	return nil
}

// Increment upserts the counter, applying defaultTTL only on first
// creation (the expires_at column keeps its prior value on conflict,
// matching Memory's "TTL reset only by Set" behavior).
func (p *Postgres) Increment(ctx context.Context, flowID, key string) (int64, error) {
	var result int64
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO flow_entries (flow_id, key, value, expires_at)
		VALUES ($1, $2, '1'::jsonb, $3)
		ON CONFLICT (flow_id, key) DO UPDATE
		SET value = to_jsonb(COALESCE((flow_entries.value)::text::bigint, 0) + 1)
		RETURNING (value)::text::bigint
	`, flowID, key, p.expiryOrNil())
	if err := row.Scan(&result); err != nil {
		return 0, riftkind.Wrap(riftkind.FlowStoreUnavailable, "postgres increment", err)
	}
	return result, nil
}

func (p *Postgres) Exists(ctx context.Context, flowID, key string) (bool, error) {
	_, ok, err := p.Get(ctx, flowID, key)
	return ok, err
}

func (p *Postgres) Delete(ctx context.Context, flowID, key string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM flow_entries WHERE flow_id = $1 AND key = $2`, flowID, key)
	if err != nil {
		return false, riftkind.Wrap(riftkind.FlowStoreUnavailable, "postgres delete", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (p *Postgres) SetTTL(ctx context.Context, flowID string, ttlSecs int) error {
	var expiresAt any
	if ttlSecs > 0 {
		expiresAt = time.Now().Add(time.Duration(ttlSecs) * time.Second)
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE flow_entries SET expires_at = $2 WHERE flow_id = $1`, flowID, expiresAt)
	if err != nil {
		return riftkind.Wrap(riftkind.FlowStoreUnavailable, "postgres set_ttl", err)
	}
	return nil
}

func (p *Postgres) expiryOrNil() any {
	if p.defaultTTL <= 0 {
		return nil
	}
	return time.Now().Add(p.defaultTTL)
}

func (p *Postgres) Close() error { return p.db.Close() }

// Postgres schema addition for Checkpoint (reference):
//
// CREATE TABLE IF NOT EXISTS flow_store_op_checkpoints (
//   backend TEXT PRIMARY KEY,
//   total   BIGINT NOT NULL DEFAULT 0
// );

// Checkpoint implements flowstore.CheckpointSink: it adds delta to
// backend's running total, for CheckpointingStore's write-behind batching.
func (p *Postgres) Checkpoint(ctx context.Context, backend string, delta int64) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO flow_store_op_checkpoints (backend, total)
		VALUES ($1, $2)
		ON CONFLICT (backend) DO UPDATE
		SET total = flow_store_op_checkpoints.total + EXCLUDED.total
	`, backend, delta)
	if err != nil {
		return riftkind.Wrap(riftkind.FlowStoreUnavailable, "postgres checkpoint", err)
	}
	return nil
}

// LastCheckpoint reads backend's last persisted total, for seeding a
// CheckpointingStore's Accumulator across a process restart.
func (p *Postgres) LastCheckpoint(ctx context.Context, backend string) (int64, error) {
	var total int64
	err := p.db.QueryRowContext(ctx,
		`SELECT total FROM flow_store_op_checkpoints WHERE backend = $1`, backend).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, riftkind.Wrap(riftkind.FlowStoreUnavailable, "postgres last checkpoint", err)
	}
	return total, nil
}
