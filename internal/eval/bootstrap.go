// Package eval compares trained outcome models. Per-observation
// log-likelihoods are resampled with a paired bootstrap to put confidence
// intervals on the difference between two models, and a reporter writes the
// results alongside the fit-log curves of each training run.
package eval

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"

	"pitchmodel/internal/dataset"
)

// Scorer yields per-observation log-likelihoods on a dataset. Trained
// outcome models satisfy it.
type Scorer interface {
	LogLikelihoods(data *dataset.PitchData) ([]float64, error)
}

// BootstrapResult summarizes a paired bootstrap comparison of model A
// against model B on the same observations.
type BootstrapResult struct {
	MeanDiff float64 `json:"mean_diff"`
	CILow    float64 `json:"ci_low"`
	CIHigh   float64 `json:"ci_high"`
	// WinFraction is the share of resamples in which A's mean
	// log-likelihood beats B's.
	WinFraction float64 `json:"win_fraction"`
	Iterations  int     `json:"iterations"`
}

// Bootstrap resamples the paired per-observation log-likelihood differences
// of two models. Both score slices must be row-aligned on the same data.
func Bootstrap(scoresA, scoresB []float64, iters int, rng *rand.Rand) (BootstrapResult, error) {
	if len(scoresA) != len(scoresB) {
		return BootstrapResult{}, fmt.Errorf("eval: score lengths differ (%d vs %d)", len(scoresA), len(scoresB))
	}
	if len(scoresA) == 0 {
		return BootstrapResult{}, fmt.Errorf("eval: bootstrap on empty scores")
	}
	if iters <= 0 {
		iters = 1000
	}

	n := len(scoresA)
	diffs := make([]float64, n)
	for i := range diffs {
		diffs[i] = scoresA[i] - scoresB[i]
	}

	means := make([]float64, iters)
	wins := 0
	for it := 0; it < iters; it++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += diffs[rng.Intn(n)]
		}
		means[it] = sum / float64(n)
		if means[it] > 0 {
			wins++
		}
	}
	sort.Float64s(means)

	return BootstrapResult{
		MeanDiff:    stat.Mean(diffs, nil),
		CILow:       stat.Quantile(0.025, stat.Empirical, means, nil),
		CIHigh:      stat.Quantile(0.975, stat.Empirical, means, nil),
		WinFraction: float64(wins) / float64(iters),
		Iterations:  iters,
	}, nil
}

// ModelComparison holds one model's standing against the baseline.
type ModelComparison struct {
	Name       string          `json:"name"`
	MeanLogLik float64         `json:"mean_log_likelihood"`
	Baseline   BootstrapResult `json:"vs_baseline,omitempty"`
}

// Compare scores every model on the same data and bootstraps each against
// the named baseline model.
func Compare(models map[string]Scorer, baseline string, data *dataset.PitchData, iters int, rng *rand.Rand) ([]ModelComparison, error) {
	base, ok := models[baseline]
	if !ok {
		return nil, fmt.Errorf("eval: baseline model %q not in comparison set", baseline)
	}
	baseScores, err := base.LogLikelihoods(data)
	if err != nil {
		return nil, fmt.Errorf("eval: baseline %q: %w", baseline, err)
	}

	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ModelComparison, 0, len(models))
	for _, name := range names {
		scores := baseScores
		if name != baseline {
			scores, err = models[name].LogLikelihoods(data)
			if err != nil {
				return nil, fmt.Errorf("eval: %q: %w", name, err)
			}
		}
		cmp := ModelComparison{Name: name, MeanLogLik: stat.Mean(scores, nil)}
		if name != baseline {
			cmp.Baseline, err = Bootstrap(scores, baseScores, iters, rng)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, cmp)
	}
	return out, nil
}
