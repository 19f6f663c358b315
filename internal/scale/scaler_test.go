package scale

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestFitTransform(t *testing.T) {
	rows := [][]float64{
		{1, 10, 5},
		{2, 20, 5},
		{3, 30, 5},
	}

	s := &Scaler{}
	scaled, err := s.FitTransform(rows)
	if err != nil {
		t.Fatalf("FitTransform: %v", err)
	}

	if !almostEqual(s.Means[0], 2) || !almostEqual(s.Means[1], 20) {
		t.Errorf("wrong means: %v", s.Means)
	}

	// Each column should come out with mean zero.
	for j := 0; j < 3; j++ {
		sum := 0.0
		for _, row := range scaled {
			sum += row[j]
		}
		if !almostEqual(sum, 0) {
			t.Errorf("column %d sum = %v, want 0", j, sum)
		}
	}

	// Source rows are untouched.
	if rows[0][0] != 1 {
		t.Error("Transform mutated its input")
	}
}

func TestTransformRowConstantColumn(t *testing.T) {
	s := &Scaler{}
	if err := s.Fit([][]float64{{1, 5}, {2, 5}, {3, 5}}); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	row, err := s.TransformRow([]float64{2, 5})
	if err != nil {
		t.Fatalf("TransformRow: %v", err)
	}
	if row[1] != 0 {
		t.Errorf("constant column scaled to %v, want 0", row[1])
	}
}

func TestFitErrors(t *testing.T) {
	s := &Scaler{}
	if err := s.Fit(nil); err == nil {
		t.Error("expected error for empty data")
	}
	if err := s.Fit([][]float64{{1, 2}, {1}}); err == nil {
		t.Error("expected error for ragged rows")
	}
}

func TestTransformRowWidthMismatch(t *testing.T) {
	s := &Scaler{}
	if err := s.Fit([][]float64{{1, 2}, {3, 4}}); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if _, err := s.TransformRow([]float64{1}); err == nil {
		t.Error("expected error for width mismatch")
	}
}

func TestTransformInPlace(t *testing.T) {
	rows := [][]float64{{1, 0}, {3, 0}}
	s := &Scaler{}
	if err := s.Fit(rows); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if err := s.TransformInPlace(rows); err != nil {
		t.Fatalf("TransformInPlace: %v", err)
	}
	if !almostEqual(rows[0][0]+rows[1][0], 0) {
		t.Errorf("in-place rows not centered: %v", rows)
	}
}
