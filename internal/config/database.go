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

package config

import "fmt"

// StoreConfig holds configuration for the embedded persistent store.
//
// The store is always a single SQLite file with no sidecar files carrying
// authoritative state, so unlike a general-purpose connection config this
// carries no host/port/credential fields.
type StoreConfig struct {
	// Path is the filesystem path to the SQLite database file.
	Path string `yaml:"store_path"`

	// BusyTimeoutMS is how long a writer waits for the single SQLite
	// connection before failing with SQLITE_BUSY.
	BusyTimeoutMS int `yaml:"busy_timeout_ms,omitempty"`
}

// SetDefaults applies default values to the store config.
func (c *StoreConfig) SetDefaults() {
	if c.BusyTimeoutMS == 0 {
		c.BusyTimeoutMS = 10000
	}
}

// Validate checks the store configuration.
func (c *StoreConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("store_path is required")
	}
	if c.BusyTimeoutMS < 0 {
		return fmt.Errorf("busy_timeout_ms must be non-negative")
	}
	return nil
}

// DSN returns the data source name for sql.Open("sqlite3", ...).
func (c *StoreConfig) DSN() string {
	return c.Path
}
