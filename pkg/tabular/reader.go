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

// Package tabular is the streaming row reader (C9) and enriched-export
// writer (used by the Confirmation Pipeline, C11). It reads and writes
// xlsx sources row by row, never loading a whole sheet into memory, so
// memory use stays bounded by batch size regardless of source size.
package tabular

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/originate-data/dirclass/pkg/model"
)

// headerAliases maps a canonical input field to the header names the
// reader accepts for it, matched case-insensitively after trimming.
// Director name is the only field classification requires; everything
// else is retained for traceability and is tolerated if absent.
var headerAliases = map[string][]string{
	"entity_name":        {"entity name", "company name", "name"},
	"trading_name":       {"trading name", "trading as"},
	"keyword":            {"keyword"},
	"director_name":      {"director name", "director", "director full name"},
	"director_cell":      {"director cell", "director phone", "director contact"},
	"registered_address":  {"registered address", "address"},
	"city":               {"city", "town"},
	"province":           {"province", "state"},
}

// Row is one source row annotated with its absolute row index (0-based
// over data rows, excluding the header).
type Row struct {
	SourceRowIndex int
	Lead           model.LeadInput
	RawCells       map[string]string
}

// Reader produces batches of Rows lazily via excelize's streaming row
// iterator, skipping to a start offset without materializing skipped
// rows. It is restartable from any offset: Open a fresh Reader at the
// desired start for each resume.
type Reader struct {
	file       *excelize.File
	rows       *excelize.Rows
	sheet      string
	colIndex   map[string]int
	nextIndex  int
}

// Open opens path's first sheet and positions the reader at dataRowOffset
// (0-based, relative to the first row after the header).
func Open(path string, dataRowOffset int) (*Reader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open tabular source: %w", err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, fmt.Errorf("tabular source %s has no sheets", path)
	}
	sheet := sheets[0]

	rowsIter, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open row iterator: %w", err)
	}

	if !rowsIter.Next() {
		f.Close()
		return nil, fmt.Errorf("tabular source %s has no header row", path)
	}
	header, err := rowsIter.Columns()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read header row: %w", err)
	}
	colIndex := resolveHeader(header)
	if _, ok := colIndex["director_name"]; !ok {
		f.Close()
		return nil, fmt.Errorf("tabular source %s is missing a director name column", path)
	}

	r := &Reader{file: f, rows: rowsIter, sheet: sheet, colIndex: colIndex}

	for r.nextIndex < dataRowOffset {
		if !rowsIter.Next() {
			break
		}
		r.nextIndex++
	}

	return r, nil
}

func resolveHeader(header []string) map[string]int {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	colIndex := make(map[string]int)
	for field, aliases := range headerAliases {
		for i, h := range normalized {
			matched := false
			for _, alias := range aliases {
				if h == alias {
					matched = true
					break
				}
			}
			if matched {
				colIndex[field] = i
				break
			}
		}
	}
	return colIndex
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}

// NextBatch reads up to size rows starting from the reader's current
// position and returns them, advancing the position. A returned slice
// shorter than size (including empty) signals end of source.
func (r *Reader) NextBatch(size int) ([]Row, error) {
	batch := make([]Row, 0, size)
	for len(batch) < size {
		if !r.rows.Next() {
			break
		}
		cells, err := r.rows.Columns()
		if err != nil {
			return batch, fmt.Errorf("read row %d: %w", r.nextIndex, err)
		}

		row := Row{
			SourceRowIndex: r.nextIndex,
			RawCells:       make(map[string]string, len(r.colIndex)),
		}
		for field, idx := range r.colIndex {
			if idx < len(cells) {
				row.RawCells[field] = strings.TrimSpace(cells[idx])
			}
		}
		row.Lead = model.LeadInput{
			SourceRowIndex:    row.SourceRowIndex,
			EntityName:        row.RawCells["entity_name"],
			DirectorName:      row.RawCells["director_name"],
			RegisteredAddress: row.RawCells["registered_address"],
			City:              row.RawCells["city"],
			Province:          row.RawCells["province"],
		}

		r.nextIndex++
		batch = append(batch, row)
	}
	return batch, nil
}

// CountDataRows returns the total number of data rows (excluding the
// header) in path's first sheet, used to plan a new Job's total row
// count. It opens its own independent streaming pass.
func CountDataRows(path string) (int, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return 0, fmt.Errorf("open tabular source: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return 0, fmt.Errorf("tabular source %s has no sheets", path)
	}
	rowsIter, err := f.Rows(sheets[0])
	if err != nil {
		return 0, fmt.Errorf("open row iterator: %w", err)
	}
	defer rowsIter.Close()

	count := -1 // first row is the header
	for rowsIter.Next() {
		count++
	}
	if count < 0 {
		count = 0
	}
	return count, nil
}

// ColumnLetter converts a 0-based column index to an Excel column
// reference (A, B, ..., Z, AA, ...).
func ColumnLetter(index int) string {
	result := ""
	for {
		result = string(rune('A'+index%26)) + result
		index = index/26 - 1
		if index < 0 {
			break
		}
	}
	return result
}

// CellRef formats a 0-based column index and a 1-based spreadsheet row
// number as an Excel cell reference.
func CellRef(col, row int) string {
	return ColumnLetter(col) + strconv.Itoa(row)
}
