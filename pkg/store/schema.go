// Copyright 2025 Kadir Pekel
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

// Package store is the single embedded relational store (C1): jobs,
// per-row results, the LLM classification cache, learned patterns,
// phonetic families, and confirmations. Every write is transactional;
// the only shared mutable process state in the whole pipeline lives
// here.
package store

import (
	"database/sql"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    input_path TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    total_rows INTEGER NOT NULL,
    batch_size INTEGER NOT NULL,
    last_committed_batch INTEGER NOT NULL DEFAULT -1,
    processed_rows INTEGER NOT NULL DEFAULT 0,
    failed_rows INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP,
    accumulated_cost REAL NOT NULL DEFAULT 0,
    accumulated_millis INTEGER NOT NULL DEFAULT 0,
    error_summary TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_running_per_path
    ON jobs(input_path) WHERE status = 'running';

CREATE TABLE IF NOT EXISTS job_locks (
    input_path TEXT PRIMARY KEY,
    job_id TEXT NOT NULL,
    holder TEXT NOT NULL,
    acquired_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS lead_results (
    job_id TEXT NOT NULL,
    source_row_index INTEGER NOT NULL,
    entity_name TEXT NOT NULL DEFAULT '',
    director_name TEXT NOT NULL DEFAULT '',
    registered_address TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    province TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    confidence REAL NOT NULL DEFAULT 0,
    method TEXT NOT NULL DEFAULT '',
    elapsed_millis INTEGER NOT NULL DEFAULT 0,
    provider_id TEXT NOT NULL DEFAULT '',
    cost REAL NOT NULL DEFAULT 0,
    retry_count INTEGER NOT NULL DEFAULT 0,
    error_kind TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (job_id, source_row_index)
);

CREATE TABLE IF NOT EXISTS llm_classifications (
    normalized_name TEXT PRIMARY KEY,
    category TEXT NOT NULL,
    confidence REAL NOT NULL,
    provider_id TEXT NOT NULL,
    cost REAL NOT NULL,
    elapsed_millis INTEGER NOT NULL,
    soundex TEXT NOT NULL DEFAULT '',
    metaphone TEXT NOT NULL DEFAULT '',
    double_metaphone_primary TEXT NOT NULL DEFAULT '',
    double_metaphone_secondary TEXT NOT NULL DEFAULT '',
    nysiis TEXT NOT NULL DEFAULT '',
    linguistic_markers TEXT NOT NULL DEFAULT '',
    structural_features TEXT NOT NULL DEFAULT '',
    session_id TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_llm_classifications_phonetic
    ON llm_classifications(soundex, metaphone, double_metaphone_primary, nysiis);

CREATE TABLE IF NOT EXISTS learned_patterns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pattern_kind TEXT NOT NULL,
    pattern_value TEXT NOT NULL,
    category TEXT NOT NULL,
    derived_confidence REAL NOT NULL,
    usage_count INTEGER NOT NULL DEFAULT 0,
    success_count INTEGER NOT NULL DEFAULT 0,
    created_from_session TEXT NOT NULL DEFAULT '',
    active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    UNIQUE(pattern_kind, pattern_value, category)
);

CREATE INDEX IF NOT EXISTS idx_learned_patterns_kind_value
    ON learned_patterns(pattern_kind, pattern_value);

CREATE TABLE IF NOT EXISTS phonetic_families (
    codes_key TEXT PRIMARY KEY,
    category TEXT NOT NULL,
    confidence REAL NOT NULL,
    evidence_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS canonical_categories (
    code TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    sort_order INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS confirmations (
    source_fingerprint TEXT NOT NULL,
    source_row_index INTEGER NOT NULL,
    entity_name TEXT NOT NULL DEFAULT '',
    director_name TEXT NOT NULL DEFAULT '',
    registered_address TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    province TEXT NOT NULL DEFAULT '',
    spatial_context_hash TEXT NOT NULL DEFAULT '',
    predicted_category TEXT NOT NULL DEFAULT '',
    predicted_confidence REAL NOT NULL DEFAULT 0,
    predicted_method TEXT NOT NULL DEFAULT '',
    confirmed_category TEXT NOT NULL DEFAULT '',
    confirmer_id TEXT NOT NULL DEFAULT '',
    confirmed_at TIMESTAMP,
    notes TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (source_fingerprint, source_row_index),
    FOREIGN KEY (confirmed_category) REFERENCES canonical_categories(code)
);
`

// Store wraps the single SQLite connection backing the pipeline.
type Store struct {
	db *sql.DB
}

// Open runs schema migration against db and returns a Store. db must
// already be configured for single-connection, WAL-mode access (see
// internal/config.OpenStore).
func Open(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying connection, mainly for tests that need to
// seed or inspect rows directly.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}
