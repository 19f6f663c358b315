// Package density fits kernel density estimates of a pitcher's pitch-movement
// distribution over three physical variables and renders them as fixed
// resolution voxel grids. The renders, their compressed form and per-pitcher
// quantile profiles all feed the outcome models as extra feature columns.
package density

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"pitchmodel/internal/scale"
)

// MovementVariables are the dataset columns the estimator is fit on.
var MovementVariables = []string{"velocity_y", "accel_x", "accel_z"}

// Estimator is a Gaussian-kernel density estimate with a fixed bandwidth.
// An optional scaler is applied to both training and query points.
type Estimator struct {
	Bandwidth float64
	Scaler    *scale.Scaler

	points [][]float64
	dim    int
}

// NewEstimator returns an unfit estimator.
func NewEstimator(bandwidth float64, scaler *scale.Scaler) (*Estimator, error) {
	if bandwidth <= 0 {
		return nil, fmt.Errorf("density: bandwidth must be positive, got %g", bandwidth)
	}
	return &Estimator{Bandwidth: bandwidth, Scaler: scaler}, nil
}

// Fit stores the training points the kernel sum is evaluated against.
func (e *Estimator) Fit(points [][]float64) error {
	if len(points) == 0 {
		return fmt.Errorf("density: fit on empty data")
	}
	dim := len(points[0])
	for i, p := range points {
		if len(p) != dim {
			return fmt.Errorf("density: ragged point %d (%d dims, want %d)", i, len(p), dim)
		}
	}
	if e.Scaler != nil {
		scaled, err := e.Scaler.Transform(points)
		if err != nil {
			return fmt.Errorf("density: %w", err)
		}
		points = scaled
	}
	e.points = points
	e.dim = dim
	return nil
}

// LogDensity returns the log of the estimated density at one point.
func (e *Estimator) LogDensity(point []float64) (float64, error) {
	if e.points == nil {
		return 0, fmt.Errorf("density: estimator is not fit")
	}
	if len(point) != e.dim {
		return 0, fmt.Errorf("density: query has %d dims, estimator fit on %d", len(point), e.dim)
	}
	if e.Scaler != nil {
		scaled, err := e.Scaler.TransformRow(point)
		if err != nil {
			return 0, fmt.Errorf("density: %w", err)
		}
		point = scaled
	}

	h2 := e.Bandwidth * e.Bandwidth
	logKernels := make([]float64, len(e.points))
	for i, train := range e.points {
		var d2 float64
		for j := range point {
			diff := point[j] - train[j]
			d2 += diff * diff
		}
		logKernels[i] = -d2 / (2 * h2)
	}
	logNorm := float64(e.dim)/2*math.Log(2*math.Pi*h2) + math.Log(float64(len(e.points)))
	return floats.LogSumExp(logKernels) - logNorm, nil
}

// Scores returns the per-point log-likelihood of each query point.
func (e *Estimator) Scores(points [][]float64) ([]float64, error) {
	out := make([]float64, len(points))
	for i, p := range points {
		s, err := e.LogDensity(p)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// Score returns the mean log-likelihood over the query points.
func (e *Estimator) Score(points [][]float64) (float64, error) {
	scores, err := e.Scores(points)
	if err != nil {
		return 0, err
	}
	if len(scores) == 0 {
		return 0, fmt.Errorf("density: score on empty data")
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores)), nil
}

// Grid is a dense voxel rendering of an estimate. Values are stored row-major
// over Shape.
type Grid struct {
	Shape  []int     `json:"shape"`
	Values []float64 `json:"values"`
}

// At returns the voxel value at the given 3-D coordinates.
func (g *Grid) At(i, j, k int) float64 {
	return g.Values[(i*g.Shape[1]+j)*g.Shape[2]+k]
}

// Len returns the total number of voxels.
func (g *Grid) Len() int { return len(g.Values) }

// Render evaluates exp(log density) on the regular grid spanned by linspace
// axes between mins and maxes with the given per-axis resolutions.
func (e *Estimator) Render(mins, maxes []float64, resolutions []int) (*Grid, error) {
	if len(mins) != e.dim || len(maxes) != e.dim || len(resolutions) != e.dim {
		return nil, fmt.Errorf("density: render bounds must have %d dims", e.dim)
	}
	for i, res := range resolutions {
		if res < 2 {
			return nil, fmt.Errorf("density: axis %d resolution %d too small", i, res)
		}
		if maxes[i] <= mins[i] {
			return nil, fmt.Errorf("density: axis %d has empty range [%g, %g]", i, mins[i], maxes[i])
		}
	}

	axes := make([][]float64, e.dim)
	for i := range axes {
		axes[i] = linspace(mins[i], maxes[i], resolutions[i])
	}

	total := 1
	for _, res := range resolutions {
		total *= res
	}
	grid := &Grid{Shape: append([]int(nil), resolutions...), Values: make([]float64, total)}

	point := make([]float64, e.dim)
	idx := make([]int, e.dim)
	for flat := 0; flat < total; flat++ {
		rem := flat
		for axis := e.dim - 1; axis >= 0; axis-- {
			idx[axis] = rem % resolutions[axis]
			rem /= resolutions[axis]
		}
		for axis := range point {
			point[axis] = axes[axis][idx[axis]]
		}
		logDensity, err := e.LogDensity(point)
		if err != nil {
			return nil, err
		}
		grid.Values[flat] = math.Exp(logDensity)
	}
	return grid, nil
}

func linspace(min, max float64, n int) []float64 {
	out := make([]float64, n)
	step := (max - min) / float64(n-1)
	for i := range out {
		out[i] = min + float64(i)*step
	}
	out[n-1] = max
	return out
}
