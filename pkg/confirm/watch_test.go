package confirm

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/originate-data/dirclass/pkg/model"
	"github.com/originate-data/dirclass/pkg/tabular"
)

type fakeWatchStore struct {
	*fakeIngestStore
	*fakeFeedbackStore
}

func newFakeWatchStore() *fakeWatchStore {
	return &fakeWatchStore{
		fakeIngestStore:   newFakeIngestStore(),
		fakeFeedbackStore: &fakeFeedbackStore{patterns: map[string]*model.LearnedPattern{}},
	}
}

func TestWatchReingestsOnFileWrite(t *testing.T) {
	path := writeAnnotatedFixture(t, [][]string{
		{"Acme", "Thabo Mthembu", "", "", "", "", "", "", "", "0", "job-1", ""},
		{"Beta", "Jan van der Merwe", "", "", "", "", "", "", "", "1", "job-1", ""},
	})
	store := newFakeWatchStore()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Watch(ctx, store, "fp-1", path, "reviewer-1") }()

	// give the watcher time to register before mutating the file
	time.Sleep(150 * time.Millisecond)
	annotateRow(t, path, 2, "african")

	require.Eventually(t, func() bool {
		c := store.confirmations[confirmKey("fp-1", 0)]
		return c != nil && c.ConfirmedCategory == "african"
	}, 2*time.Second, 50*time.Millisecond)

	cancel()
	<-done
}

func annotateRow(t *testing.T, path string, spreadsheetRow int, category string) {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	sheet := f.GetSheetList()[0]
	require.NoError(t, f.SetCellValue(sheet, tabular.CellRef(7, spreadsheetRow), category))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())
}

func TestWatchStopsOnContextCancellation(t *testing.T) {
	path := writeAnnotatedFixture(t, [][]string{
		{"Acme", "Thabo Mthembu", "", "", "", "", "", "", "", "0", "job-1", ""},
	})
	store := newFakeWatchStore()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, store, "fp-1", path, "reviewer-1") }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after context cancellation")
	}
}

func TestWatchReturnsErrorForMissingFile(t *testing.T) {
	store := newFakeWatchStore()
	ctx := context.Background()

	err := Watch(ctx, store, "fp-1", filepath.Join(t.TempDir(), "does-not-exist.xlsx"), "reviewer-1")

	assert.Error(t, err)
}
