package tabular

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFixture(t *testing.T, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			require.NoError(t, f.SetCellValue(sheet, CellRef(c, r+1), v))
		}
	}
	path := filepath.Join(t.TempDir(), "fixture.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func fixtureRows() [][]string {
	return [][]string{
		{"Entity Name", "Director Name", "Registered Address", "City", "Province"},
		{"Acme CC", "Thabo Mthembu", "1 Main Rd", "Durban", "KwaZulu-Natal"},
		{"Beta CC", "Jan van der Merwe", "2 Oak Ave", "Cape Town", "Western Cape"},
		{"Gamma CC", "Bongani Zulu", "3 Pine St", "Johannesburg", "Gauteng"},
	}
}

func TestReaderResolvesHeaderAliasesCaseInsensitively(t *testing.T) {
	path := writeFixture(t, fixtureRows())

	r, err := Open(path, 0)
	require.NoError(t, err)
	defer r.Close()

	batch, err := r.NextBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	assert.Equal(t, "Thabo Mthembu", batch[0].Lead.DirectorName)
	assert.Equal(t, "Durban", batch[0].Lead.City)
	assert.Equal(t, 0, batch[0].SourceRowIndex)
	assert.Equal(t, 2, batch[2].SourceRowIndex)
}

func TestReaderBatchesAndAdvancesPosition(t *testing.T) {
	path := writeFixture(t, fixtureRows())

	r, err := Open(path, 0)
	require.NoError(t, err)
	defer r.Close()

	first, err := r.NextBatch(2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := r.NextBatch(2)
	require.NoError(t, err)
	require.Len(t, second, 1)

	third, err := r.NextBatch(2)
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestOpenResumesFromDataRowOffset(t *testing.T) {
	path := writeFixture(t, fixtureRows())

	r, err := Open(path, 2)
	require.NoError(t, err)
	defer r.Close()

	batch, err := r.NextBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "Bongani Zulu", batch[0].Lead.DirectorName)
	assert.Equal(t, 2, batch[0].SourceRowIndex)
}

func TestOpenRejectsSourceMissingDirectorNameColumn(t *testing.T) {
	path := writeFixture(t, [][]string{
		{"Entity Name", "Registered Address"},
		{"Acme CC", "1 Main Rd"},
	})

	_, err := Open(path, 0)
	assert.Error(t, err)
}

func TestCountDataRowsExcludesHeader(t *testing.T) {
	path := writeFixture(t, fixtureRows())

	count, err := CountDataRows(path)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestWriterRoundTripsEnrichedColumns(t *testing.T) {
	w, err := NewWriter([]string{"Entity Name", "Director Name"}, []string{"african", "white", "coloured", "indian", "unclassified"})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteRow(EnrichedRow{
		SourceCells: []string{"Acme CC", "Thabo Mthembu"},
		Category:    "african",
		Confidence:  0.92,
		Method:      "rule",
		Spatial:     "durban|kwazulu-natal",
		SourceRow:   0,
		JobID:       "job-1",
		ProcessedAt: "2026-08-01T00:00:00Z",
	}))

	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, w.SaveAs(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	header := rows[0]
	assert.Contains(t, header, "director_ethnicity")
	assert.Contains(t, header, "confirmed_ethnicity")
	assert.Equal(t, "Acme CC", rows[1][0])
	assert.Equal(t, "african", rows[1][2])
}
