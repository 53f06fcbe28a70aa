package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sewaa/forecast-sync/internal/domain"
	"github.com/sewaa/forecast-sync/internal/ledger"
	"github.com/sewaa/forecast-sync/internal/observability"
	"github.com/sewaa/forecast-sync/internal/store"
)

// Runner executes the model inference subprocess. The contract is entirely
// exit-code based: zero means the output file was produced, anything else
// means failure with possible partial output.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) error
}

// ExecRunner runs the cGAN scripts with the python interpreter on PATH.
type ExecRunner struct {
	Python string // defaults to "python"
	Logger *slog.Logger
}

func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) error {
	python := r.Python
	if python == "" {
		python = "python"
	}
	cmd := exec.CommandContext(ctx, python, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", python, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	r.Logger.Info("model run finished", "args", args)
	return nil
}

// cutoffYear excludes archived ensemble inputs from generation; runs before
// this are training data, not live forecasts.
const cutoffYear = 2018

// Trigger invokes the external cGAN inference runtime for every synced
// ensemble input date that has no generated output yet, then routes the
// output through the migrator.
type Trigger struct {
	// WorkHome contains the ensemble-cgan checkout; scripts run from its
	// dsrnngan directory.
	WorkHome string
	Resolver *store.Resolver
	Migrator *Migrator
	Ledger   ledger.Store
	Runner   Runner
	// MinInputBytes is the plausibility floor for an ensemble input. After
	// a failed run, a smaller input is deleted to force a clean re-fetch.
	MinInputBytes int64
	Logger        *slog.Logger
	Metrics       *observability.Metrics
}

// scriptFor maps a model to its inference entry point: the 6-hour models
// take the input file path, the 7-day models the forecast date.
func scriptFor(model domain.Source) string {
	if model.EnsembleInput() == domain.SourceCganIFS7d {
		return "forecast_date.py"
	}
	return "test_forecast.py"
}

// GenerateMissing runs the model for every input date missing from the
// output catalog. Entry is gated on the processing ledger flag; individual
// run failures are logged and skipped.
func (t *Trigger) GenerateMissing(ctx context.Context, model domain.Source) error {
	if t.Ledger.Get(ledger.KindProcessing, model) {
		t.Logger.Info("generation already active, skipping", "model", model)
		return nil
	}
	if err := t.Ledger.Set(ledger.KindProcessing, model, true); err != nil {
		return err
	}
	defer func() {
		if err := t.Ledger.Set(ledger.KindProcessing, model, false); err != nil {
			t.Logger.Error("failed to clear processing flag", "model", model, "error", err)
		}
	}()

	missing, err := t.missingDates(model)
	if err != nil {
		return err
	}
	t.Logger.Info("generation pass starting", "model", model, "missing", len(missing))

	for _, date := range missing {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := t.generateOne(ctx, model, date); err != nil {
			t.Logger.Error("generation failed", "model", model,
				"date", date.Format(domain.DisplayDateLayout), "error", err)
			t.Metrics.GenerationRuns.WithLabelValues(string(model), "error").Inc()
			continue
		}
		t.Metrics.GenerationRuns.WithLabelValues(string(model), "success").Inc()
	}
	return nil
}

// missingDates diffs the synced input dates against the generated output
// dates, oldest first, dropping archived years.
func (t *Trigger) missingDates(model domain.Source) ([]time.Time, error) {
	input := model.EnsembleInput()
	inputKeys, err := t.Resolver.GANDateKeys(input, "")
	if err != nil {
		return nil, err
	}
	outputKeys, err := t.Resolver.GANDateKeys(model, "")
	if err != nil {
		return nil, err
	}
	generated := make(map[string]bool, len(outputKeys))
	for _, k := range outputKeys {
		generated[k] = true
	}

	var missing []time.Time
	for _, key := range inputKeys {
		if generated[key] {
			continue
		}
		date, err := time.ParseInLocation("20060102_15", key, time.UTC)
		if err != nil {
			continue
		}
		if date.Year() <= cutoffYear {
			continue
		}
		missing = append(missing, date)
	}
	return missing, nil
}

// generateOne runs the model subprocess for a single init date and migrates
// its output. On a non-zero exit the partial output is deleted, and an
// implausibly small input is deleted too.
func (t *Trigger) generateOne(ctx context.Context, model domain.Source, date time.Time) error {
	input := model.EnsembleInput()
	id := domain.DatasetIdentity{Source: input, InitDate: date, InitHour: date.Hour(), HasHour: true}
	inputPath, err := t.Resolver.DatasetPath(input, "", date, strings.TrimPrefix(id.StagedName(), "IFS_"))
	if err != nil {
		return err
	}

	staging, err := t.Resolver.StagingDir(model)
	if err != nil {
		return err
	}
	outID := domain.DatasetIdentity{Source: model, InitDate: date, InitHour: date.Hour(), HasHour: true}
	outputPath := filepath.Join(staging, outID.StagedName())

	relInput, err := filepath.Rel(t.Resolver.ForecastsDir, inputPath)
	if err != nil {
		return err
	}

	scriptDir := filepath.Join(t.WorkHome, "ensemble-cgan", "dsrnngan")
	var args []string
	if scriptFor(model) == "forecast_date.py" {
		args = []string{"forecast_date.py", "-d", date.Format("20060102")}
	} else {
		args = []string{"test_forecast.py", "-f", relInput}
	}

	if err := t.Runner.Run(ctx, scriptDir, args...); err != nil {
		os.Remove(outputPath)
		t.cleanSuspectInput(inputPath)
		return err
	}

	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("model exited zero but output %s is missing: %w", outputPath, err)
	}
	return t.Migrator.Migrate(ctx, outputPath, model, "GAN_")
}

// cleanSuspectInput deletes the input file when it is implausibly small; a
// truncated input is the usual cause of an inference crash.
func (t *Trigger) cleanSuspectInput(inputPath string) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return
	}
	if info.Size() < t.MinInputBytes {
		t.Logger.Warn("deleting implausibly small model input",
			"file", inputPath, "size", info.Size(), "min", t.MinInputBytes)
		os.Remove(inputPath)
	}
}
