package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/originate-data/dirclass/pkg/model"
)

func TestParseLevelAcceptsKnownNames(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParseLevelFallsBackToWarnForUnknownInput(t *testing.T) {
	got, err := ParseLevel("nonsense")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, got)
}

func TestSimpleTextHandlerFormatsLevelMessageAndAttrs(t *testing.T) {
	dir := t.TempDir()
	file, err := os.Create(filepath.Join(dir, "log.txt"))
	require.NoError(t, err)
	defer file.Close()

	h := &simpleTextHandler{handler: slog.NewTextHandler(file, nil), writer: file}
	logger := slog.New(h)
	logger.Warn("rate limited", "provider", "provider-a")

	contents, err := os.ReadFile(file.Name())
	require.NoError(t, err)
	assert.Contains(t, string(contents), "WARN rate limited provider=provider-a")
}

func TestOpenLogFileCreatesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dirclass.log")

	file, cleanup, err := OpenLogFile(path)
	require.NoError(t, err)
	_, err = file.WriteString("line one\n")
	require.NoError(t, err)
	cleanup()

	file2, cleanup2, err := OpenLogFile(path)
	require.NoError(t, err)
	_, err = file2.WriteString("line two\n")
	require.NoError(t, err)
	cleanup2()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(contents))
}

func TestGetLoggerInitializesDefaultWhenUnset(t *testing.T) {
	defaultLogger = nil
	logger := GetLogger()
	assert.NotNil(t, logger)
	assert.Same(t, logger, GetLogger())
}

func TestInitSetsDefaultLogger(t *testing.T) {
	dir := t.TempDir()
	file, err := os.Create(filepath.Join(dir, "init.log"))
	require.NoError(t, err)
	defer file.Close()

	Init(slog.LevelDebug, file, "verbose")
	assert.NotNil(t, defaultLogger)

	defaultLogger.Info("hello")
	contents, err := os.ReadFile(file.Name())
	require.NoError(t, err)
	assert.Contains(t, string(contents), "hello")
}

func TestForJobAndForBatchBindScopingAttrs(t *testing.T) {
	dir := t.TempDir()
	file, err := os.Create(filepath.Join(dir, "scoped.log"))
	require.NoError(t, err)
	defer file.Close()

	Init(slog.LevelDebug, file, "verbose")

	ForJob("job-1").Info("row classified")
	ForBatch("job-1", 3).Info("batch committed")

	contents, err := os.ReadFile(file.Name())
	require.NoError(t, err)
	assert.Contains(t, string(contents), "job_id=job-1")
	assert.Contains(t, string(contents), "batch_index=3")
}

func TestLevelForCascadeLayerGradesByMethod(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelForCascadeLayer(model.MethodExactCache))
	assert.Equal(t, slog.LevelDebug, LevelForCascadeLayer(model.MethodRule))
	assert.Equal(t, slog.LevelDebug, LevelForCascadeLayer(model.MethodPhonetic))
	assert.Equal(t, slog.LevelInfo, LevelForCascadeLayer(model.MethodLearned))
	assert.Equal(t, slog.LevelInfo, LevelForCascadeLayer(model.MethodLLM))
	assert.Equal(t, slog.LevelWarn, LevelForCascadeLayer(model.MethodNone))
}
