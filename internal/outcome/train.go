package outcome

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"pitchmodel/internal/dataset"
)

// TrainObserver is notified after every validation scoring during Fit.
// The metrics layer and the live training feed both hang off this.
type TrainObserver func(FitPoint)

// FitOptions control a training run.
type FitOptions struct {
	// Steps is the number of mini-batch gradient steps to take.
	Steps int
	// ScoreEvery is the interval, in steps, between validation scorings.
	ScoreEvery int
	// Observer, when set, receives every fit-log point as it is recorded.
	Observer TrainObserver
}

// gradients accumulates one batch of parameter gradients.
type gradients struct {
	hiddenW  [][]float64
	hiddenB  []float64
	densityW [][]float64
	densityB []float64
	outW     [][]float64
	outB     []float64
	// Embedding gradients are sparse per batch: only the players that
	// appear get entries.
	pitcherEmbed map[int][]float64
	batterEmbed  map[int][]float64
}

func newGradients(cfg Config) *gradients {
	g := &gradients{
		outW: zeroMatrix(cfg.NumOutcomes, cfg.outputInDim()),
		outB: make([]float64, cfg.NumOutcomes),
	}
	if cfg.Variant != VariantLogistic {
		g.hiddenW = zeroMatrix(cfg.HiddenDim, cfg.inputDim())
		g.hiddenB = make([]float64, cfg.HiddenDim)
	}
	if cfg.Variant == VariantDensity {
		g.densityW = zeroMatrix(cfg.DensityHiddenDim, cfg.DensityDim)
		g.densityB = make([]float64, cfg.DensityHiddenDim)
	}
	if cfg.Variant == VariantEmbedding {
		g.pitcherEmbed = make(map[int][]float64)
		g.batterEmbed = make(map[int][]float64)
	}
	return g
}

func (g *gradients) reset() {
	zeroOutMatrix(g.hiddenW)
	zeroOut(g.hiddenB)
	zeroOutMatrix(g.densityW)
	zeroOut(g.densityB)
	zeroOutMatrix(g.outW)
	zeroOut(g.outB)
	if g.pitcherEmbed != nil {
		g.pitcherEmbed = make(map[int][]float64)
		g.batterEmbed = make(map[int][]float64)
	}
}

// Fit trains the model on mini-batches drawn from train, scoring against
// validation every ScoreEvery steps and appending each score to the fit log.
// Cancellation is checked between batches.
func (m *Model) Fit(ctx context.Context, train, validation *dataset.PitchData, opts FitOptions) error {
	if opts.Steps <= 0 {
		return fmt.Errorf("outcome: training steps must be positive, got %d", opts.Steps)
	}
	if opts.ScoreEvery <= 0 {
		opts.ScoreEvery = 200
	}
	if train.Len() == 0 {
		return fmt.Errorf("outcome: empty training set")
	}
	if m.Config.usesDensity() && train.Density == nil {
		return fmt.Errorf("outcome: %s variant needs density features attached", m.Config.Variant)
	}

	if m.grad == nil {
		m.grad = newGradients(m.Config)
		m.ada = newAdagrad(m.Config)
	}

	start := time.Now()
	train.ResetBatchIndex()
	for step := 0; step < opts.Steps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch := train.NextBatch(m.Config.BatchSize)
		loss, err := m.trainStep(batch)
		if err != nil {
			return fmt.Errorf("outcome: step %d: %w", step, err)
		}

		if step%opts.ScoreEvery == 0 {
			score, err := m.Score(validation)
			if err != nil {
				return fmt.Errorf("outcome: validation at step %d: %w", step, err)
			}
			point := FitPoint{Batch: step, Score: score}
			m.Log.Append(point)
			if opts.Observer != nil {
				opts.Observer(point)
			}
			log.Info().
				Str("variant", string(m.Config.Variant)).
				Int("step", step).
				Float64("batch_loss", loss).
				Float64("validation_score", score).
				Msg("training progress")
		}
	}
	log.Info().
		Str("variant", string(m.Config.Variant)).
		Int("steps", opts.Steps).
		Dur("elapsed", time.Since(start)).
		Msg("training complete")
	return nil
}

// trainStep runs forward and backward passes over one batch and applies the
// averaged gradients. Returns the mean batch loss.
func (m *Model) trainStep(batch dataset.Batch) (float64, error) {
	if batch.Len() == 0 {
		return 0, fmt.Errorf("empty batch")
	}
	m.grad.reset()

	var loss float64
	for i := 0; i < batch.Len(); i++ {
		var density []float64
		if batch.Density != nil {
			density = batch.Density[i]
		}
		act, err := m.forward(batch.Features[i], density, batch.PitcherIDs[i], batch.BatterIDs[i], true)
		if err != nil {
			return 0, err
		}
		outcome := batch.Outcomes[i]
		if outcome < 1 || outcome > m.Config.NumOutcomes {
			return 0, fmt.Errorf("outcome label %d out of range", outcome)
		}
		loss -= math.Log(act.probs[outcome-1])
		m.backward(act, outcome-1)
	}

	m.applyGradients(float64(batch.Len()))
	return loss / float64(batch.Len()), nil
}

// backward accumulates the gradients for one observation into m.grad.
func (m *Model) backward(act *activations, target int) {
	cfg := m.Config

	// Softmax cross-entropy collapses to probs minus the one-hot target.
	dLogits := append([]float64(nil), act.probs...)
	dLogits[target]--

	for k, d := range dLogits {
		row := m.grad.outW[k]
		for j, v := range act.outputIn {
			row[j] += d * v
		}
		m.grad.outB[k] += d
	}

	if cfg.Variant == VariantLogistic {
		return
	}

	dOutputIn := make([]float64, cfg.outputInDim())
	for k, d := range dLogits {
		for j, w := range m.OutW[k] {
			dOutputIn[j] += d * w
		}
	}

	dHidden := dOutputIn[:cfg.HiddenDim]
	if cfg.Variant == VariantDensity {
		dDensityOut := dOutputIn[cfg.HiddenDim:]
		for j, d := range dDensityOut {
			s := act.densityOut[j]
			dz := d * s * (1 - s)
			row := m.grad.densityW[j]
			for i, v := range act.densityIn {
				row[i] += dz * v
			}
			m.grad.densityB[j] += dz
		}
	}

	keep := 1 - cfg.Dropout
	dInput := make([]float64, cfg.inputDim())
	for j, d := range dHidden {
		if act.dropoutMask != nil {
			if !act.dropoutMask[j] {
				continue
			}
			d /= keep
		}
		s := act.hiddenPre[j]
		dz := d * s * (1 - s)
		row := m.grad.hiddenW[j]
		for i, v := range act.input {
			row[i] += dz * v
		}
		m.grad.hiddenB[j] += dz
		if cfg.Variant == VariantEmbedding {
			for i, w := range m.HiddenW[j] {
				dInput[i] += dz * w
			}
		}
	}

	if cfg.Variant == VariantEmbedding {
		pStart := cfg.NumFeatures
		bStart := pStart + cfg.EmbeddingDim
		addEmbeddingGrad(m.grad.pitcherEmbed, act.pitcherID, dInput[pStart:bStart])
		addEmbeddingGrad(m.grad.batterEmbed, act.batterID, dInput[bStart:bStart+cfg.EmbeddingDim])
	}
}

func addEmbeddingGrad(grads map[int][]float64, id int, d []float64) {
	g, ok := grads[id]
	if !ok {
		g = make([]float64, len(d))
		grads[id] = g
	}
	for i, v := range d {
		g[i] += v
	}
}

// applyGradients averages the accumulated gradients over the batch and takes
// one Adagrad step.
func (m *Model) applyGradients(batchSize float64) {
	scaleMatrix(m.grad.outW, 1/batchSize)
	scaleVector(m.grad.outB, 1/batchSize)
	m.ada.updateMatrix(m.OutW, m.grad.outW, m.ada.outW, m.Config.LearningRate)
	m.ada.updateVector(m.OutB, m.grad.outB, m.ada.outB, m.Config.LearningRate)

	if m.grad.hiddenW != nil {
		scaleMatrix(m.grad.hiddenW, 1/batchSize)
		scaleVector(m.grad.hiddenB, 1/batchSize)
		m.ada.updateMatrix(m.HiddenW, m.grad.hiddenW, m.ada.hiddenW, m.Config.LearningRate)
		m.ada.updateVector(m.HiddenB, m.grad.hiddenB, m.ada.hiddenB, m.Config.LearningRate)
	}
	if m.grad.densityW != nil {
		scaleMatrix(m.grad.densityW, 1/batchSize)
		scaleVector(m.grad.densityB, 1/batchSize)
		m.ada.updateMatrix(m.DensityW, m.grad.densityW, m.ada.densityW, m.Config.LearningRate)
		m.ada.updateVector(m.DensityB, m.grad.densityB, m.ada.densityB, m.Config.LearningRate)
	}
	if m.grad.pitcherEmbed != nil {
		m.ada.updateSparse(m.PitcherEmbed, m.grad.pitcherEmbed, m.ada.pitcherEmbed, m.Config.LearningRate, batchSize)
		m.ada.updateSparse(m.BatterEmbed, m.grad.batterEmbed, m.ada.batterEmbed, m.Config.LearningRate, batchSize)
	}
}

func zeroMatrix(rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	return out
}

func zeroOutMatrix(m [][]float64) {
	for _, row := range m {
		zeroOut(row)
	}
}

func zeroOut(v []float64) {
	for i := range v {
		v[i] = 0
	}
}

func scaleMatrix(m [][]float64, by float64) {
	for _, row := range m {
		scaleVector(row, by)
	}
}

func scaleVector(v []float64, by float64) {
	for i := range v {
		v[i] *= by
	}
}
