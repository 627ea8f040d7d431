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

package tabular

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// EnrichedColumns are appended, in order, after all of the source's
// original columns verbatim.
var EnrichedColumns = []string{
	"director_ethnicity",
	"ethnicity_confidence",
	"classification_method",
	"spatial_context",
	"processing_notes",
	"confirmed_ethnicity",
	"confirmation_notes",
	"source_row_number",
	"job_id",
	"processed_at",
}

// EnrichedRow is one output row: the original source cells in their
// original order, plus the enriched fields in EnrichedColumns order.
type EnrichedRow struct {
	SourceCells []string
	Category    string
	Confidence  float64
	Method      string
	Spatial     string
	Notes       string
	SourceRow   int
	JobID       string
	ProcessedAt string
}

// Writer produces the enriched export artifact: all original columns
// verbatim, then the enriched columns, with the confirmed-ethnicity
// column's data validation bound to the canonical category display
// names so only valid values can be entered.
type Writer struct {
	file           *excelize.File
	sheet          string
	row            int
	confirmedCol   int
	totalCols      int
}

// NewWriter creates a new enriched-export workbook. header is the
// original source's header row, used verbatim as the first columns.
func NewWriter(header []string, canonicalCategories []string) (*Writer, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	fullHeader := append(append([]string{}, header...), EnrichedColumns...)
	for i, h := range fullHeader {
		cell := CellRef(i, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header cell %s: %w", cell, err)
		}
	}

	confirmedCol := len(header) + indexOf(EnrichedColumns, "confirmed_ethnicity")

	w := &Writer{file: f, sheet: sheet, row: 2, confirmedCol: confirmedCol, totalCols: len(fullHeader)}

	if len(canonicalCategories) > 0 {
		dv := excelize.NewDataValidation(true)
		colLetter := ColumnLetter(confirmedCol)
		dv.Sqref = fmt.Sprintf("%s2:%s1048576", colLetter, colLetter)
		if err := dv.SetDropList(canonicalCategories); err != nil {
			f.Close()
			return nil, fmt.Errorf("build confirmed-ethnicity data validation: %w", err)
		}
		if err := f.AddDataValidation(sheet, dv); err != nil {
			f.Close()
			return nil, fmt.Errorf("attach data validation: %w", err)
		}
	}

	return w, nil
}

func indexOf(s []string, v string) int {
	for i, e := range s {
		if e == v {
			return i
		}
	}
	return -1
}

// WriteRow appends one enriched row. confirmed_ethnicity and
// confirmation_notes are left blank for the human reviewer.
func (w *Writer) WriteRow(r EnrichedRow) error {
	cells := append(append([]string{}, r.SourceCells...),
		r.Category,
		fmt.Sprintf("%.4f", r.Confidence),
		r.Method,
		r.Spatial,
		r.Notes,
		"", // confirmed_ethnicity: blank for human entry
		"", // confirmation_notes: blank for human entry
		fmt.Sprintf("%d", r.SourceRow),
		r.JobID,
		r.ProcessedAt,
	)
	for i := 0; i < w.totalCols; i++ {
		var v string
		if i < len(cells) {
			v = cells[i]
		}
		cell := CellRef(i, w.row)
		if err := w.file.SetCellValue(w.sheet, cell, v); err != nil {
			return fmt.Errorf("write cell %s: %w", cell, err)
		}
	}
	w.row++
	return nil
}

// SaveAs writes the workbook to path.
func (w *Writer) SaveAs(path string) error {
	return w.file.SaveAs(path)
}

// Close releases the underlying workbook resources.
func (w *Writer) Close() error {
	return w.file.Close()
}
