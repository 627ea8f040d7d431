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

// Command dirclass classifies directors named in a tabular lead sheet
// into demographic categories, resuming cleanly after an interrupted
// run and exporting an enriched, human-reviewable artifact.
//
// Usage:
//
//	dirclass run --config config.yaml --input leads.xlsx --output enriched.xlsx
//	dirclass ingest --config config.yaml --job <job-id> --annotated enriched.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/originate-data/dirclass/internal/config"
	"github.com/originate-data/dirclass/internal/logging"
	"github.com/originate-data/dirclass/internal/metrics"
	"github.com/originate-data/dirclass/pkg/cascade"
	"github.com/originate-data/dirclass/pkg/confirm"
	"github.com/originate-data/dirclass/pkg/job"
	"github.com/originate-data/dirclass/pkg/learn"
	"github.com/originate-data/dirclass/pkg/provider"
	"github.com/originate-data/dirclass/pkg/ratelimit"
	"github.com/originate-data/dirclass/pkg/ruledict"
	"github.com/originate-data/dirclass/pkg/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runCommand(os.Args[2:])
	case "ingest":
		err = ingestCommand(os.Args[2:])
	case "watch":
		err = watchCommand(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		var exitErr *exitCodeError
		if asExitCodeError(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Error())
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dirclass <run|ingest|watch> [flags]")
}

type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func asExitCodeError(err error, target **exitCodeError) bool {
	e, ok := err.(*exitCodeError)
	if !ok {
		return false
	}
	*target = e
	return true
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	envPath := fs.String("env", "", "path to .env file")
	inputPath := fs.String("input", "", "path to the source xlsx of leads")
	outputPath := fs.String("output", "", "path to write the enriched export")
	metricsAddr := fs.String("metrics-addr", "", "if set, serve Prometheus metrics on this address for the run's duration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *inputPath != "" {
		cfg.InputPath = *inputPath
	}
	if *outputPath != "" {
		cfg.OutputPath = *outputPath
	}
	if cfg.InputPath == "" {
		return fmt.Errorf("an --input path (or config input_path) is required")
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logging.Init(level, os.Stderr, cfg.LogFormat)
	logger := logging.GetLogger()

	db, err := config.OpenStore(&config.StoreConfig{Path: cfg.StorePath})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	st, err := store.Open(db)
	if err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	if err := st.SeedCanonicalCategories(context.Background(), ruledict.SeedCanonicalCategories()); err != nil {
		return fmt.Errorf("seed canonical categories: %w", err)
	}

	sessionID := uuid.New().String()
	cas := buildCascade(cfg, st, sessionID, logger)

	eng := job.New(st, cas, cfg.BatchSize, cfg.MaxConcurrent, sessionID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		metricsServer := &http.Server{Addr: *metricsAddr, Handler: metrics.Handler()}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		defer metricsServer.Close()
		logger.Info("serving metrics", "addr", *metricsAddr)
	}

	result, runErr := eng.Run(ctx, cfg.InputPath)
	if runErr != nil {
		logger.Error("job run failed", "error", runErr, "exit_code", result.ExitCode)
	}

	if result.Job != nil && cfg.OutputPath != "" && result.ExitCode == job.ExitCompleted {
		if err := confirm.Export(context.Background(), st, result.Job.ID, cfg.OutputPath); err != nil {
			return fmt.Errorf("export enriched artifact: %w", err)
		}
		logger.Info("exported enriched artifact", "path", cfg.OutputPath, "job_id", result.Job.ID)
	}

	if result.ExitCode != job.ExitCompleted {
		summary := "job did not complete"
		if runErr != nil {
			summary = runErr.Error()
		}
		return &exitCodeError{code: int(result.ExitCode), err: fmt.Errorf("%s", summary)}
	}
	return nil
}

func ingestCommand(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	envPath := fs.String("env", "", "path to .env file")
	jobID := fs.String("job", "", "job id the annotated export was produced from")
	annotatedPath := fs.String("annotated", "", "path to the reviewer-annotated export")
	confirmerID := fs.String("confirmer", "", "identifier of the reviewer confirming these rows")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *jobID == "" || *annotatedPath == "" {
		return fmt.Errorf("--job and --annotated are required")
	}

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logging.Init(level, os.Stderr, cfg.LogFormat)
	logger := logging.GetLogger()

	db, err := config.OpenStore(&config.StoreConfig{Path: cfg.StorePath})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	st, err := store.Open(db)
	if err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	ctx := context.Background()
	j, err := st.GetJob(ctx, *jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if j == nil {
		return fmt.Errorf("job %s not found", *jobID)
	}

	result, err := confirm.Ingest(ctx, st, j.Fingerprint, *annotatedPath, *confirmerID)
	if err != nil {
		return fmt.Errorf("ingest annotated export: %w", err)
	}
	logger.Info("ingested confirmations", "confirmed", len(result.Confirmed), "invalid", len(result.Invalid))
	for _, inv := range result.Invalid {
		logger.Warn("invalid confirmation row", "row", inv.RowNumber, "reason", inv.Reason)
	}

	for _, c := range result.Confirmed {
		if err := confirm.ApplyFeedback(ctx, st, c); err != nil {
			return fmt.Errorf("apply feedback for row %d: %w", c.SourceRowIndex, err)
		}
	}
	return nil
}

func watchCommand(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	envPath := fs.String("env", "", "path to .env file")
	jobID := fs.String("job", "", "job id the annotated export was produced from")
	annotatedPath := fs.String("annotated", "", "path to the reviewer-annotated export")
	confirmerID := fs.String("confirmer", "", "identifier of the reviewer confirming these rows")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *jobID == "" || *annotatedPath == "" {
		return fmt.Errorf("--job and --annotated are required")
	}

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logging.Init(level, os.Stderr, cfg.LogFormat)

	db, err := config.OpenStore(&config.StoreConfig{Path: cfg.StorePath})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	st, err := store.Open(db)
	if err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	j, err := st.GetJob(ctx, *jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if j == nil {
		return fmt.Errorf("job %s not found", *jobID)
	}

	err = confirm.Watch(ctx, st, j.Fingerprint, *annotatedPath, *confirmerID)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// buildCascade wires the full five-layer cascade from configuration:
// rule dictionary, rate-limited providers (if credentials are
// present), and the learning extractor feeding derived patterns back
// into the store.
func buildCascade(cfg *config.Config, st *store.Store, sessionID string, logger *slog.Logger) *cascade.Cascade {
	dict := ruledict.NewDictionary(ruledict.Seed())
	resolver := ruledict.NewResolver(dict, st)

	providers := map[provider.ID]provider.Classifier{}
	rateLimitConfigs := map[string]ratelimit.Config{}

	if cfg.ProviderA.APIKey != "" {
		p := provider.NewProviderA(provider.HTTPConfig{
			BaseURL:        cfg.ProviderA.BaseURL,
			APIKey:         cfg.ProviderA.APIKey,
			Model:          cfg.ProviderA.Model,
			RequestTimeout: time.Duration(cfg.PerRequestTimeoutSeconds * float64(time.Second)),
		})
		providers[provider.ProviderA] = p
		rateLimitConfigs[string(provider.ProviderA)] = ratelimit.Config{
			RequestsPerMinute: cfg.ProviderA.RPM,
			InitialBackoff:    time.Duration(cfg.InitialBackoffSeconds * float64(time.Second)),
			MaxBackoff:        time.Duration(cfg.MaxBackoffSeconds * float64(time.Second)),
			BackoffMultiplier: cfg.BackoffMultiplier,
		}
	} else {
		logger.Warn("provider-a has no api key configured; L4 will fail over to provider-b only")
	}

	if cfg.ProviderB.APIKey != "" {
		p := provider.NewProviderB(provider.HTTPConfig{
			BaseURL:        cfg.ProviderB.BaseURL,
			APIKey:         cfg.ProviderB.APIKey,
			Model:          cfg.ProviderB.Model,
			RequestTimeout: time.Duration(cfg.PerRequestTimeoutSeconds * float64(time.Second)),
		})
		providers[provider.ProviderB] = p
		rateLimitConfigs[string(provider.ProviderB)] = ratelimit.Config{
			RequestsPerMinute: cfg.ProviderB.RPM,
			InitialBackoff:    time.Duration(cfg.InitialBackoffSeconds * float64(time.Second)),
			MaxBackoff:        time.Duration(cfg.MaxBackoffSeconds * float64(time.Second)),
			BackoffMultiplier: cfg.BackoffMultiplier,
		}
	}
	if len(providers) == 0 {
		logger.Warn("no provider credentials configured; the cascade will classify through L3 only")
	}

	governor := ratelimit.New(rateLimitConfigs)
	extractor := learn.New(st, sessionID)
	ledger := newSessionLedger(cfg.MaxLLMCostPerSession)

	thresholds := cascade.DefaultThresholds()
	thresholds.PhoneticSimilarityMin = cfg.PhoneticSimilarityThreshold
	thresholds.LearnedMin = cfg.LearnedPatternMinConfidence

	requestTimeout := time.Duration(cfg.PerRequestTimeoutSeconds * float64(time.Second))
	return cascade.New(st, resolver, dict, st, providers, governor, extractor, ledger, thresholds, requestTimeout)
}

// sessionLedger is a mutex-protected running total of LLM spend for
// one process invocation.
type sessionLedger struct {
	mu      sync.Mutex
	spent   float64
	ceiling float64
}

func newSessionLedger(ceiling float64) *sessionLedger {
	return &sessionLedger{ceiling: ceiling}
}

func (l *sessionLedger) Spent() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spent
}

func (l *sessionLedger) Add(amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.spent += amount
}

func (l *sessionLedger) Ceiling() float64 {
	return l.ceiling
}
