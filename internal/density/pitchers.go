package density

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"pitchmodel/internal/dataset"
)

// FitPitchers fits one estimator per pitcher on the movement variables.
// Pitchers with fewer than minPitches observations are skipped: a kernel sum
// over a handful of pitches is all bandwidth and no signal.
func FitPitchers(data *dataset.PitchData, bandwidth float64, minPitches int) (map[string]*Estimator, error) {
	byPitcher := make(map[string][][]float64)
	points, err := data.Columns(MovementVariables...)
	if err != nil {
		return nil, fmt.Errorf("density: %w", err)
	}
	for i, point := range points {
		name := data.Pitchers[data.PitcherIDs[i]]
		byPitcher[name] = append(byPitcher[name], point)
	}

	estimators := make(map[string]*Estimator, len(byPitcher))
	skipped := 0
	for name, pitcherPoints := range byPitcher {
		if len(pitcherPoints) < minPitches {
			skipped++
			continue
		}
		est, err := NewEstimator(bandwidth, nil)
		if err != nil {
			return nil, err
		}
		if err := est.Fit(pitcherPoints); err != nil {
			return nil, fmt.Errorf("density: pitcher %q: %w", name, err)
		}
		estimators[name] = est
	}
	log.Info().
		Int("pitchers", len(estimators)).
		Int("skipped", skipped).
		Float64("bandwidth", bandwidth).
		Msg("fit per-pitcher density estimators")
	return estimators, nil
}

// RenderAll renders every estimator on the same grid, keyed by pitcher name.
func RenderAll(estimators map[string]*Estimator, mins, maxes []float64, resolutions []int) (map[string]*Grid, error) {
	renders := make(map[string]*Grid, len(estimators))
	for name, est := range estimators {
		grid, err := est.Render(mins, maxes, resolutions)
		if err != nil {
			return nil, fmt.Errorf("density: render %q: %w", name, err)
		}
		renders[name] = grid
	}
	return renders, nil
}

// Compressed holds the voxels that survive compression. Every pitcher's
// Values follow the shared Indices order, so the vectors are directly
// comparable and usable as model features.
type Compressed struct {
	Indices []int                `json:"indices"`
	Shape   []int                `json:"shape"`
	Values  map[string][]float64 `json:"values"`
}

// Compress keeps only the voxels whose maximum value across all pitchers
// exceeds threshold.
func Compress(renders map[string]*Grid, threshold float64) (*Compressed, error) {
	if len(renders) == 0 {
		return nil, fmt.Errorf("density: compress with no renders")
	}

	var shape []int
	var size int
	for _, grid := range renders {
		if shape == nil {
			shape = grid.Shape
			size = grid.Len()
		} else if grid.Len() != size {
			return nil, fmt.Errorf("density: mismatched render sizes (%d vs %d)", grid.Len(), size)
		}
	}

	maxes := make([]float64, size)
	for _, grid := range renders {
		for i, v := range grid.Values {
			if v > maxes[i] {
				maxes[i] = v
			}
		}
	}

	var indices []int
	for i, v := range maxes {
		if v > threshold {
			indices = append(indices, i)
		}
	}
	sort.Ints(indices)

	out := &Compressed{
		Indices: indices,
		Shape:   append([]int(nil), shape...),
		Values:  make(map[string][]float64, len(renders)),
	}
	for name, grid := range renders {
		vals := make([]float64, len(indices))
		for i, idx := range indices {
			vals[i] = grid.Values[idx]
		}
		out.Values[name] = vals
	}
	log.Debug().
		Int("kept", len(indices)).
		Int("total", size).
		Float64("threshold", threshold).
		Msg("compressed density renders")
	return out, nil
}

// Flatten returns the dense renders as flat per-pitcher feature vectors.
func Flatten(renders map[string]*Grid) map[string][]float64 {
	out := make(map[string][]float64, len(renders))
	for name, grid := range renders {
		out[name] = grid.Values
	}
	return out
}
