// Package outcome implements the pitch outcome models: softmax classifiers
// over the five pitch outcomes, trained with mini-batch gradient steps and
// Adagrad learning-rate adaptation. Five variants share one implementation,
// from plain multinomial logistic regression up to networks with player
// embeddings and per-pitcher density feature blocks.
package outcome

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"pitchmodel/internal/dataset"
	"pitchmodel/internal/scale"
)

// Variant selects the model architecture.
type Variant string

const (
	// VariantLogistic is multinomial logistic regression on the numeric
	// features with no hidden layer.
	VariantLogistic Variant = "logistic"
	// VariantSingleHidden adds one sigmoid hidden layer with dropout.
	VariantSingleHidden Variant = "single_hidden"
	// VariantEmbedding concatenates learned pitcher and batter embeddings
	// onto the numeric inputs of a single-hidden network.
	VariantEmbedding Variant = "embedding"
	// VariantDensityDirect concatenates density feature columns onto the
	// numeric inputs of a single-hidden network.
	VariantDensityDirect Variant = "density_direct"
	// VariantDensity routes density features through their own hidden block
	// before joining the numeric hidden layer at the output.
	VariantDensity Variant = "density"
)

// Variants lists every supported model variant.
var Variants = []Variant{
	VariantLogistic, VariantSingleHidden, VariantEmbedding,
	VariantDensityDirect, VariantDensity,
}

// Config holds the model hyperparameters.
type Config struct {
	Variant      Variant `json:"variant"`
	NumFeatures  int     `json:"num_features"`
	NumOutcomes  int     `json:"num_outcomes"`
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"learning_rate"`
	HiddenDim    int     `json:"hidden_dim"`
	EmbeddingDim int     `json:"embedding_dim"`
	// DensityDim is the width of the attached density feature block; only
	// the density variants read it.
	DensityDim       int     `json:"density_dim"`
	DensityHiddenDim int     `json:"density_hidden_dim"`
	Dropout          float64 `json:"dropout"`
	NumPitchers      int     `json:"num_pitchers"`
	NumBatters       int     `json:"num_batters"`
	Seed             int64   `json:"seed"`
}

// DefaultConfig returns the training configuration used across variants.
func DefaultConfig(variant Variant) Config {
	return Config{
		Variant:          variant,
		NumFeatures:      dataset.NumFeatures,
		NumOutcomes:      dataset.NumOutcomes,
		BatchSize:        32,
		LearningRate:     0.1,
		HiddenDim:        96,
		EmbeddingDim:     8,
		DensityHiddenDim: 32,
		Dropout:          0.5,
		Seed:             1,
	}
}

func (c Config) validate() error {
	switch c.Variant {
	case VariantLogistic, VariantSingleHidden, VariantEmbedding, VariantDensityDirect, VariantDensity:
	default:
		return fmt.Errorf("outcome: unknown variant %q", c.Variant)
	}
	if c.NumFeatures <= 0 || c.NumOutcomes <= 0 {
		return fmt.Errorf("outcome: invalid dimensions (%d features, %d outcomes)", c.NumFeatures, c.NumOutcomes)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("outcome: batch size must be positive, got %d", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("outcome: learning rate must be positive, got %g", c.LearningRate)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("outcome: dropout must be in [0, 1), got %g", c.Dropout)
	}
	if c.Variant != VariantLogistic && c.HiddenDim <= 0 {
		return fmt.Errorf("outcome: hidden dim must be positive, got %d", c.HiddenDim)
	}
	if c.Variant == VariantEmbedding {
		if c.EmbeddingDim <= 0 {
			return fmt.Errorf("outcome: embedding dim must be positive, got %d", c.EmbeddingDim)
		}
		if c.NumPitchers <= 0 || c.NumBatters <= 0 {
			return fmt.Errorf("outcome: embedding variant needs pitcher and batter counts")
		}
	}
	if c.usesDensity() && c.DensityDim <= 0 {
		return fmt.Errorf("outcome: density variant needs a density feature width")
	}
	if c.Variant == VariantDensity && c.DensityHiddenDim <= 0 {
		return fmt.Errorf("outcome: density hidden dim must be positive, got %d", c.DensityHiddenDim)
	}
	return nil
}

func (c Config) usesDensity() bool {
	return c.Variant == VariantDensityDirect || c.Variant == VariantDensity
}

// inputDim is the width of the main input vector after concatenation.
func (c Config) inputDim() int {
	dim := c.NumFeatures
	if c.Variant == VariantEmbedding {
		dim += 2 * c.EmbeddingDim
	}
	if c.Variant == VariantDensityDirect {
		dim += c.DensityDim
	}
	return dim
}

// outputInDim is the width of the vector feeding the output layer.
func (c Config) outputInDim() int {
	switch c.Variant {
	case VariantLogistic:
		return c.inputDim()
	case VariantDensity:
		return c.HiddenDim + c.DensityHiddenDim
	default:
		return c.HiddenDim
	}
}

// Model is a trained or in-training outcome classifier. The zero value is
// not usable; construct with New or Load.
type Model struct {
	Config Config        `json:"config"`
	Scaler *scale.Scaler `json:"scaler,omitempty"`
	Log    FitLog        `json:"fit_log"`

	// Weight matrices are stored row-per-output-unit.
	HiddenW  [][]float64 `json:"hidden_w,omitempty"`
	HiddenB  []float64   `json:"hidden_b,omitempty"`
	DensityW [][]float64 `json:"density_w,omitempty"`
	DensityB []float64   `json:"density_b,omitempty"`
	OutW     [][]float64 `json:"out_w"`
	OutB     []float64   `json:"out_b"`
	// Embeddings are stored row-per-player.
	PitcherEmbed [][]float64 `json:"pitcher_embed,omitempty"`
	BatterEmbed  [][]float64 `json:"batter_embed,omitempty"`

	rng  *rand.Rand
	grad *gradients
	ada  *adagrad
}

// New builds a model with weights drawn from a seeded normal distribution.
func New(cfg Config) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	m := &Model{Config: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}

	if cfg.Variant != VariantLogistic {
		m.HiddenW = m.normalMatrix(cfg.HiddenDim, cfg.inputDim(), 0.3)
		m.HiddenB = m.normalVector(cfg.HiddenDim, 0.1)
	}
	if cfg.Variant == VariantDensity {
		m.DensityW = m.normalMatrix(cfg.DensityHiddenDim, cfg.DensityDim, 0.3)
		m.DensityB = m.normalVector(cfg.DensityHiddenDim, 0.1)
	}
	if cfg.Variant == VariantEmbedding {
		m.PitcherEmbed = m.normalMatrix(cfg.NumPitchers, cfg.EmbeddingDim, 0.3)
		m.BatterEmbed = m.normalMatrix(cfg.NumBatters, cfg.EmbeddingDim, 0.3)
	}
	m.OutW = m.normalMatrix(cfg.NumOutcomes, cfg.outputInDim(), 0.5)
	m.OutB = m.normalVector(cfg.NumOutcomes, 0.1)
	return m, nil
}

func (m *Model) normalMatrix(rows, cols int, stddev float64) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = m.normalVector(cols, stddev)
	}
	return out
}

func (m *Model) normalVector(n int, stddev float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = m.rng.NormFloat64() * stddev
	}
	return out
}

// activations holds one observation's forward pass.
type activations struct {
	input       []float64
	hidden      []float64 // post-sigmoid, post-dropout
	hiddenPre   []float64 // post-sigmoid, pre-dropout
	densityIn   []float64
	densityOut  []float64
	outputIn    []float64
	probs       []float64
	dropoutMask []bool
	pitcherID   int
	batterID    int
}

// forward computes the class probabilities for one observation. When
// training is true, dropout is applied to the hidden layer with inverted
// scaling so inference needs no correction.
func (m *Model) forward(features, density []float64, pitcherID, batterID int, training bool) (*activations, error) {
	cfg := m.Config
	if len(features) != cfg.NumFeatures {
		return nil, fmt.Errorf("outcome: %d features, model expects %d", len(features), cfg.NumFeatures)
	}
	if cfg.usesDensity() && len(density) != cfg.DensityDim {
		return nil, fmt.Errorf("outcome: %d density features, model expects %d", len(density), cfg.DensityDim)
	}

	if m.Scaler != nil {
		scaled, err := m.Scaler.TransformRow(features)
		if err != nil {
			return nil, fmt.Errorf("outcome: %w", err)
		}
		features = scaled
	}

	act := &activations{pitcherID: pitcherID, batterID: batterID}

	input := make([]float64, 0, cfg.inputDim())
	input = append(input, features...)
	switch cfg.Variant {
	case VariantEmbedding:
		if pitcherID < 0 || pitcherID >= cfg.NumPitchers {
			return nil, fmt.Errorf("outcome: pitcher id %d out of range", pitcherID)
		}
		if batterID < 0 || batterID >= cfg.NumBatters {
			return nil, fmt.Errorf("outcome: batter id %d out of range", batterID)
		}
		input = append(input, m.PitcherEmbed[pitcherID]...)
		input = append(input, m.BatterEmbed[batterID]...)
	case VariantDensityDirect:
		input = append(input, density...)
	}
	act.input = input

	var outputIn []float64
	if cfg.Variant == VariantLogistic {
		outputIn = input
	} else {
		act.hiddenPre = make([]float64, cfg.HiddenDim)
		for j, w := range m.HiddenW {
			act.hiddenPre[j] = sigmoid(floats.Dot(w, input) + m.HiddenB[j])
		}
		act.hidden = append([]float64(nil), act.hiddenPre...)
		if training && cfg.Dropout > 0 {
			keep := 1 - cfg.Dropout
			act.dropoutMask = make([]bool, cfg.HiddenDim)
			for j := range act.hidden {
				if m.rng.Float64() < keep {
					act.dropoutMask[j] = true
					act.hidden[j] /= keep
				} else {
					act.hidden[j] = 0
				}
			}
		}
		outputIn = act.hidden

		if cfg.Variant == VariantDensity {
			act.densityIn = density
			act.densityOut = make([]float64, cfg.DensityHiddenDim)
			for j, w := range m.DensityW {
				act.densityOut[j] = sigmoid(floats.Dot(w, density) + m.DensityB[j])
			}
			outputIn = make([]float64, 0, cfg.outputInDim())
			outputIn = append(outputIn, act.hidden...)
			outputIn = append(outputIn, act.densityOut...)
		}
	}
	act.outputIn = outputIn

	logits := make([]float64, cfg.NumOutcomes)
	for k, w := range m.OutW {
		logits[k] = floats.Dot(w, outputIn) + m.OutB[k]
	}
	act.probs = softmax(logits)
	return act, nil
}

// Predict returns the outcome probability vector for one observation.
// Outcome k's probability is at index k-1.
func (m *Model) Predict(features, density []float64, pitcherID, batterID int) ([]float64, error) {
	act, err := m.forward(features, density, pitcherID, batterID, false)
	if err != nil {
		return nil, err
	}
	return act.probs, nil
}

// LogLikelihoods returns ln p(observed outcome) for every row, in row order.
// The evaluation module bootstraps these to compare models.
func (m *Model) LogLikelihoods(data *dataset.PitchData) ([]float64, error) {
	out := make([]float64, data.Len())
	for i := range out {
		var density []float64
		if data.Density != nil {
			density = data.Density[i]
		}
		act, err := m.forward(data.Features[i], density, data.PitcherIDs[i], data.BatterIDs[i], false)
		if err != nil {
			return nil, fmt.Errorf("outcome: row %d: %w", i, err)
		}
		out[i] = math.Log(act.probs[data.Outcomes[i]-1])
	}
	return out, nil
}

// Score returns exp(mean cross-entropy) over one full pass of the data:
// the geometric mean perplexity of the observed outcomes. Lower is better.
func (m *Model) Score(data *dataset.PitchData) (float64, error) {
	if data.Len() == 0 {
		return 0, fmt.Errorf("outcome: score on empty data")
	}
	scores, err := m.LogLikelihoods(data)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, s := range scores {
		sum -= s
	}
	return math.Exp(sum / float64(len(scores))), nil
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func softmax(logits []float64) []float64 {
	max := floats.Max(logits)
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
