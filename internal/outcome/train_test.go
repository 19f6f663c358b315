package outcome

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitchmodel/internal/dataset"
)

func TestFitImprovesScore(t *testing.T) {
	for _, variant := range Variants {
		t.Run(string(variant), func(t *testing.T) {
			withDensity := variant == VariantDensity || variant == VariantDensityDirect
			train := toyData(400, 5, withDensity)
			val := toyData(100, 6, withDensity)

			m, err := New(toyConfig(variant))
			require.NoError(t, err)

			before, err := m.Score(val)
			require.NoError(t, err)

			err = m.Fit(context.Background(), train, val, FitOptions{Steps: 400, ScoreEvery: 100})
			require.NoError(t, err)

			after, err := m.Score(val)
			require.NoError(t, err)
			assert.Less(t, after, before, "training should lower the validation score")
			// Two equiprobable classes score 2.0 under a uniform model; a
			// trained model on separable data must beat that comfortably.
			assert.Less(t, after, 1.8)
		})
	}
}

func TestFitLearnsSeparableBoundary(t *testing.T) {
	train := toyData(500, 7, false)
	val := toyData(100, 8, false)

	m, err := New(toyConfig(VariantLogistic))
	require.NoError(t, err)
	require.NoError(t, m.Fit(context.Background(), train, val, FitOptions{Steps: 600, ScoreEvery: 200}))

	// Far from the boundary the model should be confident.
	probs, err := m.Predict([]float64{-3, 0}, nil, 0, 0)
	require.NoError(t, err)
	assert.Greater(t, probs[0], 0.9, "x far below zero is outcome 1")

	probs, err = m.Predict([]float64{3, 0}, nil, 0, 0)
	require.NoError(t, err)
	assert.Greater(t, probs[1], 0.9, "x far above zero is outcome 2")
}

func TestFitRecordsLog(t *testing.T) {
	train := toyData(200, 9, false)
	val := toyData(50, 10, false)

	m, err := New(toyConfig(VariantLogistic))
	require.NoError(t, err)

	var observed []FitPoint
	err = m.Fit(context.Background(), train, val, FitOptions{
		Steps:      300,
		ScoreEvery: 100,
		Observer:   func(p FitPoint) { observed = append(observed, p) },
	})
	require.NoError(t, err)

	// Steps 0, 100 and 200 are scored.
	require.Equal(t, 3, m.Log.Len())
	assert.Equal(t, m.Log.Points, observed)
	assert.Equal(t, 0, m.Log.Points[0].Batch)
	assert.Equal(t, 200, m.Log.Points[2].Batch)

	last, ok := m.Log.Last()
	require.True(t, ok)
	assert.Equal(t, 200, last.Batch)

	best, ok := m.Log.Best()
	require.True(t, ok)
	for _, p := range m.Log.Points {
		assert.LessOrEqual(t, best.Score, p.Score)
	}
}

func TestFitEmbeddingCoversIDsMissingFromTrain(t *testing.T) {
	// Splits share one id space over the full player lists, so validation can
	// hold a player who never appears in the training rows. The embedding
	// tables are sized for the whole id space, not the training maximum.
	cfg := toyConfig(VariantEmbedding)
	cfg.NumPitchers = 4
	cfg.NumBatters = 4
	m, err := New(cfg)
	require.NoError(t, err)

	train := toyData(200, 17, false) // player ids 1 and 2 only
	val := toyData(50, 18, false)
	val.PitcherIDs[0] = 3
	val.BatterIDs[0] = 3

	err = m.Fit(context.Background(), train, val, FitOptions{Steps: 100, ScoreEvery: 50})
	require.NoError(t, err, "validation scoring must accept ids absent from train")

	probs, err := m.Predict([]float64{0.5, 1}, nil, 3, 3)
	require.NoError(t, err)
	assert.Len(t, probs, cfg.NumOutcomes)
}

func TestFitErrors(t *testing.T) {
	m, err := New(toyConfig(VariantLogistic))
	require.NoError(t, err)
	train := toyData(50, 11, false)

	err = m.Fit(context.Background(), train, train, FitOptions{Steps: 0})
	assert.Error(t, err, "zero steps")

	err = m.Fit(context.Background(), &dataset.PitchData{}, train, FitOptions{Steps: 10})
	assert.Error(t, err, "empty training set")

	md, err := New(toyConfig(VariantDensity))
	require.NoError(t, err)
	err = md.Fit(context.Background(), train, train, FitOptions{Steps: 10})
	assert.Error(t, err, "density variant without density features")
}

func TestFitHonorsCancellation(t *testing.T) {
	m, err := New(toyConfig(VariantLogistic))
	require.NoError(t, err)
	train := toyData(50, 12, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.Fit(ctx, train, train, FitOptions{Steps: 1000})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDropoutOnlyDuringTraining(t *testing.T) {
	cfg := toyConfig(VariantSingleHidden)
	cfg.Dropout = 0.5
	m, err := New(cfg)
	require.NoError(t, err)

	// Inference never applies the dropout mask, so repeated predictions on
	// the same input are identical.
	a, err := m.Predict([]float64{1, 2}, nil, 0, 0)
	require.NoError(t, err)
	b, err := m.Predict([]float64{1, 2}, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	train := toyData(200, 13, false)
	val := toyData(50, 14, false)
	require.NoError(t, m.Fit(context.Background(), train, val, FitOptions{Steps: 300, ScoreEvery: 100}))

	after, err := m.Score(val)
	require.NoError(t, err)
	assert.Less(t, after, 2.0)
}

func TestCheckpointRoundTrip(t *testing.T) {
	train := toyData(200, 15, false)
	val := toyData(50, 16, false)

	m, err := New(toyConfig(VariantSingleHidden))
	require.NoError(t, err)
	require.NoError(t, m.Fit(context.Background(), train, val, FitOptions{Steps: 200, ScoreEvery: 100}))

	path := filepath.Join(t.TempDir(), "nested", "model.json")
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.Config, loaded.Config)
	assert.Equal(t, m.Log.Len(), loaded.Log.Len())

	input := []float64{0.3, -0.7}
	want, err := m.Predict(input, nil, 0, 0)
	require.NoError(t, err)
	got, err := loaded.Predict(input, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
