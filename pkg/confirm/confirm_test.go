package confirm

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/originate-data/dirclass/pkg/model"
	"github.com/originate-data/dirclass/pkg/tabular"
)

func TestCanonicalProvinceResolvesKnownAliases(t *testing.T) {
	assert.Equal(t, "kwazulu-natal", CanonicalProvince("KZN"))
	assert.Equal(t, "kwazulu-natal", CanonicalProvince(" KwaZulu Natal "))
	assert.Equal(t, "free state", CanonicalProvince("Free State"))
}

func TestCanonicalProvincePassesThroughUnknownValues(t *testing.T) {
	assert.Equal(t, "neverland", CanonicalProvince("Neverland"))
}

func TestSpatialContextIsEmptyWhenBothPartsBlank(t *testing.T) {
	assert.Equal(t, "", SpatialContext("", ""))
	assert.Equal(t, "durban|kwazulu-natal", SpatialContext("Durban", "KZN"))
}

func TestSpatialContextHashIsStableAndDeterministic(t *testing.T) {
	h1 := SpatialContextHash("durban|kwazulu-natal")
	h2 := SpatialContextHash("durban|kwazulu-natal")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, SpatialContextHash("cape town|western cape"))
}

type fakeExportStore struct {
	job           *model.Job
	results       []model.LeadResult
	categories    []model.CanonicalCategory
	confirmations map[string]*model.Confirmation
}

func confirmKey(fingerprint string, rowIndex int) string {
	return fmt.Sprintf("%s|%d", fingerprint, rowIndex)
}

func (f *fakeExportStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	if f.job == nil || f.job.ID != jobID {
		return nil, nil
	}
	return f.job, nil
}

func (f *fakeExportStore) ListLeadResults(ctx context.Context, jobID string) ([]model.LeadResult, error) {
	return f.results, nil
}

func (f *fakeExportStore) ListCanonicalCategories(ctx context.Context) ([]model.CanonicalCategory, error) {
	return f.categories, nil
}

func (f *fakeExportStore) GetConfirmation(ctx context.Context, fingerprint string, rowIndex int) (*model.Confirmation, error) {
	return f.confirmations[confirmKey(fingerprint, rowIndex)], nil
}

func (f *fakeExportStore) UpsertConfirmation(ctx context.Context, c *model.Confirmation) error {
	if f.confirmations == nil {
		f.confirmations = map[string]*model.Confirmation{}
	}
	cp := *c
	f.confirmations[confirmKey(c.SourceFingerprint, c.SourceRowIndex)] = &cp
	return nil
}

func newFakeExportStore() *fakeExportStore {
	return &fakeExportStore{
		job: &model.Job{ID: "job-1", Fingerprint: "fp-1"},
		results: []model.LeadResult{
			{JobID: "job-1", SourceRowIndex: 0, EntityName: "Acme", DirectorName: "Thabo Mthembu", City: "Durban", Province: "KZN", Category: "african", Confidence: 0.92, Method: model.MethodRule},
			{JobID: "job-1", SourceRowIndex: 1, EntityName: "Beta", DirectorName: "", Category: model.Unclassified, Method: model.MethodNone, ErrorKind: "lead_validation", ErrorMessage: "missing director name"},
		},
		categories: []model.CanonicalCategory{
			{Code: "african", DisplayName: "African", SortOrder: 0},
			{Code: "white", DisplayName: "White", SortOrder: 1},
		},
		confirmations: map[string]*model.Confirmation{},
	}
}

func TestExportWritesEnrichedArtifactAndSeedsConfirmations(t *testing.T) {
	store := newFakeExportStore()
	out := filepath.Join(t.TempDir(), "export.xlsx")

	err := Export(context.Background(), store, "job-1", out)
	require.NoError(t, err)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 rows

	header := rows[0]
	assert.Contains(t, header, "director_ethnicity")
	assert.Contains(t, header, "confirmed_ethnicity")

	assert.Len(t, store.confirmations, 2)
	c0 := store.confirmations[confirmKey("fp-1", 0)]
	require.NotNil(t, c0)
	assert.Equal(t, model.Category("african"), c0.PredictedCategory)
	assert.Equal(t, "durban|kwazulu-natal", SpatialContext(c0.City, c0.Province))
}

func TestExportDoesNotClobberExistingConfirmation(t *testing.T) {
	store := newFakeExportStore()
	confirmedAt := time.Now()
	store.confirmations[confirmKey("fp-1", 0)] = &model.Confirmation{
		SourceFingerprint: "fp-1",
		SourceRowIndex:    0,
		ConfirmedCategory: "african",
		ConfirmerID:       "reviewer-1",
		ConfirmedAt:       &confirmedAt,
	}
	out := filepath.Join(t.TempDir(), "export.xlsx")

	err := Export(context.Background(), store, "job-1", out)
	require.NoError(t, err)

	got := store.confirmations[confirmKey("fp-1", 0)]
	require.NotNil(t, got)
	assert.Equal(t, model.Category("african"), got.ConfirmedCategory)
	assert.Equal(t, "reviewer-1", got.ConfirmerID)
}

func TestExportFailsWhenJobNotFound(t *testing.T) {
	store := newFakeExportStore()
	out := filepath.Join(t.TempDir(), "export.xlsx")

	err := Export(context.Background(), store, "missing-job", out)
	assert.Error(t, err)
}

type fakeIngestStore struct {
	canonical     map[model.Category]bool
	confirmations map[string]*model.Confirmation
	upserted      []model.Confirmation
}

func (f *fakeIngestStore) IsCanonicalCategory(ctx context.Context, code model.Category) (bool, error) {
	return f.canonical[code], nil
}

func (f *fakeIngestStore) GetConfirmation(ctx context.Context, fingerprint string, rowIndex int) (*model.Confirmation, error) {
	return f.confirmations[confirmKey(fingerprint, rowIndex)], nil
}

func (f *fakeIngestStore) UpsertConfirmation(ctx context.Context, c *model.Confirmation) error {
	f.upserted = append(f.upserted, *c)
	f.confirmations[confirmKey(c.SourceFingerprint, c.SourceRowIndex)] = c
	return nil
}

func newFakeIngestStore() *fakeIngestStore {
	return &fakeIngestStore{
		canonical: map[model.Category]bool{"african": true, "white": true},
		confirmations: map[string]*model.Confirmation{
			confirmKey("fp-1", 0): {SourceFingerprint: "fp-1", SourceRowIndex: 0, PredictedCategory: "african"},
			confirmKey("fp-1", 1): {SourceFingerprint: "fp-1", SourceRowIndex: 1, PredictedCategory: "white"},
		},
	}
}

func writeAnnotatedFixture(t *testing.T, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	header := append(append([]string{}, []string{"entity_name", "director_name"}...), tabular.EnrichedColumns...)
	for i, h := range header {
		require.NoError(t, f.SetCellValue(sheet, tabular.CellRef(i, 1), h))
	}
	for r, row := range rows {
		for c, v := range row {
			require.NoError(t, f.SetCellValue(sheet, tabular.CellRef(c, r+2), v))
		}
	}
	path := filepath.Join(t.TempDir(), "annotated.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

// columns: entity_name, director_name, director_ethnicity, ethnicity_confidence,
// classification_method, spatial_context, processing_notes, confirmed_ethnicity,
// confirmation_notes, source_row_number, job_id, processed_at
func TestIngestPersistsValidConfirmationsAndSkipsBlank(t *testing.T) {
	path := writeAnnotatedFixture(t, [][]string{
		{"Acme", "Thabo Mthembu", "african", "0.9200", "rule", "durban|kwazulu-natal", "", "african", "looks right", "0", "job-1", "2026-01-01T00:00:00Z"},
		{"Beta", "Jan van der Merwe", "white", "0.8800", "rule", "", "", "", "", "1", "job-1", "2026-01-01T00:00:00Z"},
	})
	store := newFakeIngestStore()

	result, err := Ingest(context.Background(), store, "fp-1", path, "reviewer-1")

	require.NoError(t, err)
	assert.Len(t, result.Confirmed, 1)
	assert.Empty(t, result.Invalid)
	got := store.confirmations[confirmKey("fp-1", 0)]
	require.NotNil(t, got)
	assert.Equal(t, model.Category("african"), got.ConfirmedCategory)
	assert.Equal(t, "reviewer-1", got.ConfirmerID)
	assert.Equal(t, "looks right", got.Notes)
}

func TestIngestReportsInvalidCategoryWithoutBlockingOtherRows(t *testing.T) {
	path := writeAnnotatedFixture(t, [][]string{
		{"Acme", "Thabo Mthembu", "", "", "", "", "", "not-a-category", "", "0", "job-1", ""},
		{"Beta", "Jan van der Merwe", "", "", "", "", "", "white", "", "1", "job-1", ""},
	})
	store := newFakeIngestStore()

	result, err := Ingest(context.Background(), store, "fp-1", path, "reviewer-1")

	require.NoError(t, err)
	assert.Len(t, result.Confirmed, 1)
	require.Len(t, result.Invalid, 1)
	assert.Equal(t, 2, result.Invalid[0].RowNumber)
}

func TestIngestReportsUnmatchedRowWithoutBlockingOthers(t *testing.T) {
	path := writeAnnotatedFixture(t, [][]string{
		{"Acme", "Unknown Name", "", "", "", "", "", "african", "", "99", "job-1", ""},
		{"Beta", "Jan van der Merwe", "", "", "", "", "", "white", "", "1", "job-1", ""},
	})
	store := newFakeIngestStore()

	result, err := Ingest(context.Background(), store, "fp-1", path, "reviewer-1")

	require.NoError(t, err)
	assert.Len(t, result.Confirmed, 1)
	require.Len(t, result.Invalid, 1)
	assert.Contains(t, result.Invalid[0].Reason, "no matching exported row")
}

type fakeFeedbackStore struct {
	patterns map[string]*model.LearnedPattern
	outcomes []string
}

func feedbackKey(kind model.PatternKind, value string) string {
	return string(kind) + "|" + value
}

func (f *fakeFeedbackStore) LookupPattern(ctx context.Context, kind model.PatternKind, value string) (*model.LearnedPattern, error) {
	return f.patterns[feedbackKey(kind, value)], nil
}

func (f *fakeFeedbackStore) RecordPatternOutcome(ctx context.Context, kind model.PatternKind, value string, category model.Category, correct bool) error {
	f.outcomes = append(f.outcomes, feedbackKey(kind, value))
	p := f.patterns[feedbackKey(kind, value)]
	if p == nil {
		return nil
	}
	p.UsageCount++
	if correct {
		p.SuccessCount++
	}
	return nil
}

func TestApplyFeedbackRecordsOutcomeForMatchedPatterns(t *testing.T) {
	store := &fakeFeedbackStore{patterns: map[string]*model.LearnedPattern{
		feedbackKey(model.PatternContains, "thabo mthembu"): {Kind: model.PatternContains, Value: "thabo mthembu", Category: "african", UsageCount: 1, SuccessCount: 1},
	}}
	c := model.Confirmation{DirectorName: "Thabo Mthembu", ConfirmedCategory: "african"}

	err := ApplyFeedback(context.Background(), store, c)

	require.NoError(t, err)
	assert.Contains(t, store.outcomes, feedbackKey(model.PatternContains, "thabo mthembu"))
	got := store.patterns[feedbackKey(model.PatternContains, "thabo mthembu")]
	assert.Equal(t, 2, got.SuccessCount)
}

func TestApplyFeedbackSkipsUnknownPatternsWithoutError(t *testing.T) {
	store := &fakeFeedbackStore{patterns: map[string]*model.LearnedPattern{}}
	c := model.Confirmation{DirectorName: "Someone Else", ConfirmedCategory: "white"}

	err := ApplyFeedback(context.Background(), store, c)

	require.NoError(t, err)
	assert.Empty(t, store.outcomes)
}

func TestApplyFeedbackIgnoresUnconfirmedRows(t *testing.T) {
	store := &fakeFeedbackStore{patterns: map[string]*model.LearnedPattern{}}
	c := model.Confirmation{DirectorName: "Thabo Mthembu", ConfirmedCategory: ""}

	err := ApplyFeedback(context.Background(), store, c)

	require.NoError(t, err)
	assert.Empty(t, store.outcomes)
}
