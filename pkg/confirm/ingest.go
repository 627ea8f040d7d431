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
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/originate-data/dirclass/pkg/model"
)

// IngestStore is the subset of pkg/store's Store the ingest step needs.
type IngestStore interface {
	IsCanonicalCategory(ctx context.Context, code model.Category) (bool, error)
	GetConfirmation(ctx context.Context, fingerprint string, rowIndex int) (*model.Confirmation, error)
	UpsertConfirmation(ctx context.Context, c *model.Confirmation) error
}

// InvalidRow describes one row rejected during ingest, by 1-based
// spreadsheet row number (including the header), so reviewers can find
// and fix it without another round trip.
type InvalidRow struct {
	RowNumber int
	Reason    string
}

// IngestResult summarizes one ingest pass. Confirmed carries the rows
// that were newly persisted this pass, so a caller can feed them
// straight into ApplyFeedback without a second store round trip.
type IngestResult struct {
	Confirmed []model.Confirmation
	Invalid   []InvalidRow
}

// Ingest reads an annotated export artifact and persists any new,
// valid confirmations. Rows whose confirmed-ethnicity is blank are
// ignored (not yet reviewed); rows with an out-of-set value are
// reported in Invalid and otherwise skipped, never blocking the rest
// of the sheet.
func Ingest(ctx context.Context, store IngestStore, sourceFingerprint, path, confirmerID string) (IngestResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return IngestResult{}, fmt.Errorf("open annotated export: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return IngestResult{}, fmt.Errorf("annotated export %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return IngestResult{}, fmt.Errorf("read annotated export: %w", err)
	}
	if len(rows) == 0 {
		return IngestResult{}, fmt.Errorf("annotated export %s is empty", path)
	}

	colIndex := indexHeader(rows[0])
	rowNumCol, hasRowNum := colIndex["source_row_number"]
	confirmedCol, hasConfirmed := colIndex["confirmed_ethnicity"]
	notesCol, hasNotes := colIndex["confirmation_notes"]
	if !hasRowNum || !hasConfirmed {
		return IngestResult{}, fmt.Errorf("annotated export %s is missing required enriched columns", path)
	}

	result := IngestResult{}
	now := time.Now()

	for i, row := range rows[1:] {
		spreadsheetRow := i + 2 // account for the header row, 1-based

		confirmedRaw := cellAt(row, confirmedCol)
		confirmed := strings.ToLower(strings.TrimSpace(confirmedRaw))
		if confirmed == "" {
			continue
		}

		sourceRowIndex, err := strconv.Atoi(strings.TrimSpace(cellAt(row, rowNumCol)))
		if err != nil {
			result.Invalid = append(result.Invalid, InvalidRow{RowNumber: spreadsheetRow, Reason: "source_row_number is not a valid integer"})
			continue
		}

		category := model.Category(confirmed)
		ok, err := store.IsCanonicalCategory(ctx, category)
		if err != nil {
			return result, fmt.Errorf("validate category at row %d: %w", spreadsheetRow, err)
		}
		if !ok {
			result.Invalid = append(result.Invalid, InvalidRow{RowNumber: spreadsheetRow, Reason: fmt.Sprintf("%q is not a canonical category", confirmedRaw)})
			continue
		}

		existing, err := store.GetConfirmation(ctx, sourceFingerprint, sourceRowIndex)
		if err != nil {
			return result, fmt.Errorf("load existing confirmation at row %d: %w", spreadsheetRow, err)
		}
		if existing == nil {
			result.Invalid = append(result.Invalid, InvalidRow{RowNumber: spreadsheetRow, Reason: "no matching exported row for this (source, row index)"})
			continue
		}
		if existing.ConfirmedCategory == category {
			continue
		}

		existing.ConfirmedCategory = category
		existing.ConfirmerID = confirmerID
		existing.ConfirmedAt = &now
		if hasNotes {
			existing.Notes = cellAt(row, notesCol)
		}

		if err := store.UpsertConfirmation(ctx, existing); err != nil {
			return result, fmt.Errorf("persist confirmation at row %d: %w", spreadsheetRow, err)
		}
		result.Confirmed = append(result.Confirmed, *existing)
	}

	return result, nil
}

func indexHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}
