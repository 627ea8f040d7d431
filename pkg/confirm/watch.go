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

package confirm

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/originate-data/dirclass/internal/logging"
)

// WatchStore is the subset of pkg/store's Store the watch loop needs
// to re-ingest an annotated export every time a reviewer saves it.
type WatchStore interface {
	IngestStore
	FeedbackStore
}

// watchDebounce coalesces the burst of write events most spreadsheet
// editors emit for a single save into one ingest pass.
const watchDebounce = 500 * time.Millisecond

// Watch watches an annotated export file for saves and re-ingests it
// on every change, applying learning feedback for each newly
// confirmed row. It blocks until ctx is cancelled.
func Watch(ctx context.Context, store WatchStore, sourceFingerprint, path, confirmerID string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	logger := logging.GetLogger()
	logger.Info("watching annotated export for confirmations", "path", path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	runIngest := func() {
		result, err := Ingest(ctx, store, sourceFingerprint, path, confirmerID)
		if err != nil {
			logger.Error("watch: ingest failed", "path", path, "error", err)
			return
		}
		for _, c := range result.Confirmed {
			if err := ApplyFeedback(ctx, store, c); err != nil {
				logger.Warn("watch: apply feedback failed", "row", c.SourceRowIndex, "error", err)
			}
		}
		for _, inv := range result.Invalid {
			logger.Warn("watch: invalid confirmation row", "row", inv.RowNumber, "reason", inv.Reason)
		}
		logger.Info("watch: re-ingested annotated export", "path", path, "confirmed", len(result.Confirmed))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, runIngest)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch: fsnotify error", "path", path, "error", err)
		}
	}
}
