package eval

import (
	"math"
	"math/rand"
	"testing"

	"pitchmodel/internal/dataset"
)

func TestBootstrapIdenticalScores(t *testing.T) {
	scores := []float64{-1.1, -0.9, -1.3, -0.7, -1.0}
	res, err := Bootstrap(scores, scores, 200, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if res.MeanDiff != 0 {
		t.Errorf("mean diff %v, want 0", res.MeanDiff)
	}
	if res.CILow != 0 || res.CIHigh != 0 {
		t.Errorf("CI [%v, %v], want [0, 0]", res.CILow, res.CIHigh)
	}
	if res.WinFraction != 0 {
		t.Errorf("win fraction %v, want 0", res.WinFraction)
	}
	if res.Iterations != 200 {
		t.Errorf("iterations %d, want 200", res.Iterations)
	}
}

func TestBootstrapClearWinner(t *testing.T) {
	n := 100
	scoresA := make([]float64, n)
	scoresB := make([]float64, n)
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < n; i++ {
		// A is consistently half a nat better per observation.
		scoresB[i] = -1.5 + rng.NormFloat64()*0.1
		scoresA[i] = scoresB[i] + 0.5 + rng.NormFloat64()*0.05
	}

	res, err := Bootstrap(scoresA, scoresB, 500, rng)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if math.Abs(res.MeanDiff-0.5) > 0.05 {
		t.Errorf("mean diff %v, want near 0.5", res.MeanDiff)
	}
	if res.CILow <= 0 {
		t.Errorf("CI low %v should be above zero for a clear winner", res.CILow)
	}
	if res.CILow > res.MeanDiff || res.CIHigh < res.MeanDiff {
		t.Errorf("CI [%v, %v] should bracket the mean %v", res.CILow, res.CIHigh, res.MeanDiff)
	}
	if res.WinFraction != 1 {
		t.Errorf("win fraction %v, want 1", res.WinFraction)
	}
}

func TestBootstrapErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	if _, err := Bootstrap([]float64{1}, []float64{1, 2}, 10, rng); err == nil {
		t.Error("expected error for mismatched lengths")
	}
	if _, err := Bootstrap(nil, nil, 10, rng); err == nil {
		t.Error("expected error for empty scores")
	}
}

func TestBootstrapDefaultIterations(t *testing.T) {
	res, err := Bootstrap([]float64{-1, -2}, []float64{-2, -1}, 0, rand.New(rand.NewSource(4)))
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if res.Iterations != 1000 {
		t.Errorf("iterations %d, want default 1000", res.Iterations)
	}
}

// fixedScorer returns preset log-likelihoods regardless of the data.
type fixedScorer struct {
	scores []float64
}

func (f fixedScorer) LogLikelihoods(*dataset.PitchData) ([]float64, error) {
	return f.scores, nil
}

func TestCompare(t *testing.T) {
	better := make([]float64, 50)
	worse := make([]float64, 50)
	for i := range better {
		better[i] = -0.5
		worse[i] = -1.5
	}
	models := map[string]Scorer{
		"logistic":      fixedScorer{worse},
		"single_hidden": fixedScorer{better},
	}

	comparisons, err := Compare(models, "logistic", &dataset.PitchData{}, 100, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(comparisons) != 2 {
		t.Fatalf("got %d comparisons, want 2", len(comparisons))
	}
	// Sorted by name: logistic first.
	if comparisons[0].Name != "logistic" || comparisons[1].Name != "single_hidden" {
		t.Fatalf("wrong order: %s, %s", comparisons[0].Name, comparisons[1].Name)
	}
	if comparisons[0].MeanLogLik != -1.5 {
		t.Errorf("baseline mean %v, want -1.5", comparisons[0].MeanLogLik)
	}
	if got := comparisons[1].Baseline.MeanDiff; got != 1.0 {
		t.Errorf("challenger mean diff %v, want 1.0", got)
	}
	if comparisons[1].Baseline.WinFraction != 1 {
		t.Error("constant improvement should win every resample")
	}

	if _, err := Compare(models, "embedding", &dataset.PitchData{}, 100, rand.New(rand.NewSource(6))); err == nil {
		t.Error("expected error for missing baseline")
	}
}
