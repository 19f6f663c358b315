package outcome

import "math"

// adagradInitial seeds the squared-gradient accumulators so early steps are
// not divided by a near-zero denominator.
const adagradInitial = 0.1

// adagrad holds per-parameter squared-gradient accumulators mirroring the
// model's weight shapes.
type adagrad struct {
	hiddenW      [][]float64
	hiddenB      []float64
	densityW     [][]float64
	densityB     []float64
	outW         [][]float64
	outB         []float64
	pitcherEmbed [][]float64
	batterEmbed  [][]float64
}

func newAdagrad(cfg Config) *adagrad {
	a := &adagrad{
		outW: constMatrix(cfg.NumOutcomes, cfg.outputInDim(), adagradInitial),
		outB: constVector(cfg.NumOutcomes, adagradInitial),
	}
	if cfg.Variant != VariantLogistic {
		a.hiddenW = constMatrix(cfg.HiddenDim, cfg.inputDim(), adagradInitial)
		a.hiddenB = constVector(cfg.HiddenDim, adagradInitial)
	}
	if cfg.Variant == VariantDensity {
		a.densityW = constMatrix(cfg.DensityHiddenDim, cfg.DensityDim, adagradInitial)
		a.densityB = constVector(cfg.DensityHiddenDim, adagradInitial)
	}
	if cfg.Variant == VariantEmbedding {
		a.pitcherEmbed = constMatrix(cfg.NumPitchers, cfg.EmbeddingDim, adagradInitial)
		a.batterEmbed = constMatrix(cfg.NumBatters, cfg.EmbeddingDim, adagradInitial)
	}
	return a
}

func (a *adagrad) updateMatrix(weights, grads, acc [][]float64, lr float64) {
	for i := range weights {
		a.updateVector(weights[i], grads[i], acc[i], lr)
	}
}

func (a *adagrad) updateVector(weights, grads, acc []float64, lr float64) {
	for i, g := range grads {
		acc[i] += g * g
		weights[i] -= lr * g / math.Sqrt(acc[i])
	}
}

// updateSparse applies embedding gradients, which only exist for the players
// present in the batch.
func (a *adagrad) updateSparse(weights [][]float64, grads map[int][]float64, acc [][]float64, lr, batchSize float64) {
	for id, g := range grads {
		row := weights[id]
		accRow := acc[id]
		for i, v := range g {
			v /= batchSize
			accRow[i] += v * v
			row[i] -= lr * v / math.Sqrt(accRow[i])
		}
	}
}

func constMatrix(rows, cols int, v float64) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = constVector(cols, v)
	}
	return out
}

func constVector(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
