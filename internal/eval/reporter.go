package eval

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"pitchmodel/internal/outcome"
)

// Reporter writes the outputs of a training-and-evaluation run: a text
// summary, per-run fit-log CSVs, a JSON report and fit-curve PNGs.
type Reporter struct {
	outputPath  string
	comparisons []ModelComparison
	fitLogs     map[string]*outcome.FitLog
	started     time.Time
	finished    time.Time
}

// NewReporter creates a reporter writing into outputPath.
func NewReporter(outputPath string, comparisons []ModelComparison, fitLogs map[string]*outcome.FitLog, started, finished time.Time) *Reporter {
	return &Reporter{
		outputPath:  outputPath,
		comparisons: comparisons,
		fitLogs:     fitLogs,
		started:     started,
		finished:    finished,
	}
}

// GenerateReport writes every report format.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}
	if err := r.generateFitLogCSVs(); err != nil {
		return err
	}
	if err := r.generateJSONReport(); err != nil {
		return err
	}
	if err := r.generateFitCurves(); err != nil {
		return err
	}

	log.Info().Str("path", r.outputPath).Msg("evaluation report written")
	return nil
}

func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, "evaluation_summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "MODEL EVALUATION SUMMARY\n")
	fmt.Fprintf(file, "========================\n\n")
	fmt.Fprintf(file, "Run: %s to %s (%s)\n\n",
		r.started.Format("2006-01-02 15:04:05"),
		r.finished.Format("2006-01-02 15:04:05"),
		r.finished.Sub(r.started))

	fmt.Fprintf(file, "MEAN LOG-LIKELIHOOD\n")
	fmt.Fprintf(file, "-------------------\n")
	for _, c := range r.comparisons {
		fmt.Fprintf(file, "%-16s %.4f\n", c.Name, c.MeanLogLik)
	}

	fmt.Fprintf(file, "\nBOOTSTRAP VS BASELINE\n")
	fmt.Fprintf(file, "---------------------\n")
	for _, c := range r.comparisons {
		if c.Baseline.Iterations == 0 {
			fmt.Fprintf(file, "%-16s (baseline)\n", c.Name)
			continue
		}
		fmt.Fprintf(file, "%-16s diff %.4f  95%% CI [%.4f, %.4f]  win %.1f%%\n",
			c.Name, c.Baseline.MeanDiff, c.Baseline.CILow, c.Baseline.CIHigh,
			c.Baseline.WinFraction*100)
	}

	if len(r.fitLogs) > 0 {
		fmt.Fprintf(file, "\nBEST VALIDATION SCORES\n")
		fmt.Fprintf(file, "----------------------\n")
		for _, name := range r.sortedRuns() {
			if best, ok := r.fitLogs[name].Best(); ok {
				fmt.Fprintf(file, "%-16s %.4f at batch %d\n", name, best.Score, best.Batch)
			}
		}
	}
	return nil
}

func (r *Reporter) generateFitLogCSVs() error {
	for _, name := range r.sortedRuns() {
		fitLog := r.fitLogs[name]
		path := filepath.Join(r.outputPath, fmt.Sprintf("fit_log_%s.csv", name))
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create fit log csv: %w", err)
		}

		w := csv.NewWriter(file)
		if err := w.Write([]string{"batch", "validation_score"}); err != nil {
			file.Close()
			return err
		}
		for _, p := range fitLog.Points {
			record := []string{strconv.Itoa(p.Batch), strconv.FormatFloat(p.Score, 'f', 6, 64)}
			if err := w.Write(record); err != nil {
				file.Close()
				return err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			file.Close()
			return err
		}
		file.Close()
	}
	return nil
}

func (r *Reporter) generateJSONReport() error {
	report := struct {
		Started     time.Time                  `json:"started"`
		Finished    time.Time                  `json:"finished"`
		Comparisons []ModelComparison          `json:"comparisons"`
		FitLogs     map[string]*outcome.FitLog `json:"fit_logs"`
	}{
		Started:     r.started,
		Finished:    r.finished,
		Comparisons: r.comparisons,
		FitLogs:     r.fitLogs,
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return os.WriteFile(filepath.Join(r.outputPath, "evaluation_report.json"), data, 0o644)
}

func (r *Reporter) sortedRuns() []string {
	names := make([]string, 0, len(r.fitLogs))
	for name := range r.fitLogs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
