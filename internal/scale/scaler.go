// Package scale normalizes feature columns to zero mean and unit variance.
// A Scaler is fit on the training split only and then applied to every split,
// so validation and test data never leak into the normalization constants.
package scale

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Scaler records per-column means and standard deviations.
type Scaler struct {
	Means   []float64 `json:"means"`
	Stddevs []float64 `json:"stddevs"`
}

// Fit computes the normalization constants from the given rows.
func (s *Scaler) Fit(rows [][]float64) error {
	if len(rows) == 0 {
		return fmt.Errorf("scale: fit on empty data")
	}
	width := len(rows[0])
	s.Means = make([]float64, width)
	s.Stddevs = make([]float64, width)

	col := make([]float64, len(rows))
	for j := 0; j < width; j++ {
		for i, row := range rows {
			if len(row) != width {
				return fmt.Errorf("scale: ragged row %d (%d columns, want %d)", i, len(row), width)
			}
			col[i] = row[j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		s.Means[j] = mean
		s.Stddevs[j] = std
	}
	return nil
}

// Transform returns normalized copies of the given rows.
func (s *Scaler) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled, err := s.TransformRow(row)
		if err != nil {
			return nil, fmt.Errorf("scale: row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

// TransformRow normalizes one row.
func (s *Scaler) TransformRow(row []float64) ([]float64, error) {
	if len(row) != len(s.Means) {
		return nil, fmt.Errorf("scale: %d columns, scaler fit on %d", len(row), len(s.Means))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		// Constant columns carry no information; map them to zero rather
		// than dividing by a zero spread.
		if s.Stddevs[j] == 0 {
			out[j] = 0
			continue
		}
		out[j] = (v - s.Means[j]) / s.Stddevs[j]
	}
	return out, nil
}

// TransformInPlace normalizes the given rows without allocating.
func (s *Scaler) TransformInPlace(rows [][]float64) error {
	for i, row := range rows {
		scaled, err := s.TransformRow(row)
		if err != nil {
			return fmt.Errorf("scale: row %d: %w", i, err)
		}
		copy(rows[i], scaled)
	}
	return nil
}

// FitTransform fits the scaler and returns the normalized training rows.
func (s *Scaler) FitTransform(rows [][]float64) ([][]float64, error) {
	if err := s.Fit(rows); err != nil {
		return nil, err
	}
	return s.Transform(rows)
}
