package cfg

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the YAML representation of the settings. Every value can be
// overridden by the corresponding environment variable.
type ConfigFile struct {
	System struct {
		DataPath    string `yaml:"dataPath"`
		OutputPath  string `yaml:"outputPath"`
		ServePort   int    `yaml:"servePort"`
		MetricsPort int    `yaml:"metricsPort"`
		HTTPTimeout string `yaml:"httpTimeout"`
	} `yaml:"system"`

	Density struct {
		Bandwidth            float64   `yaml:"bandwidth"`
		GridMins             []float64 `yaml:"gridMins"`
		GridMaxes            []float64 `yaml:"gridMaxes"`
		GridResolutions      []int     `yaml:"gridResolutions"`
		CompressionThreshold float64   `yaml:"compressionThreshold"`
		MinPitches           int       `yaml:"minPitches"`
	} `yaml:"density"`

	Training struct {
		BatchSize     int     `yaml:"batchSize"`
		LearningRate  float64 `yaml:"learningRate"`
		HiddenDim     int     `yaml:"hiddenDim"`
		EmbeddingDim  int     `yaml:"embeddingDim"`
		Steps         int     `yaml:"steps"`
		ScoreEvery    int     `yaml:"scoreEvery"`
		Seed          int64   `yaml:"seed"`
		TrainFraction float64 `yaml:"trainFraction"`
		ValFraction   float64 `yaml:"valFraction"`
	} `yaml:"training"`
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	httpTimeout, err := time.ParseDuration(config.System.HTTPTimeout)
	if err != nil {
		httpTimeout = 30 * time.Second
	}

	settings := Settings{
		DataPath:             getEnvOrDefault("DATA_PATH", orString(config.System.DataPath, "data")),
		OutputPath:           getEnvOrDefault("OUTPUT_PATH", orString(config.System.OutputPath, "output")),
		Bandwidth:            getFloatOrDefault("DENSITY_BANDWIDTH", orFloat(config.Density.Bandwidth, 0.5)),
		GridMins:             orFloats(config.Density.GridMins, []float64{-150, -25, -50}),
		GridMaxes:            orFloats(config.Density.GridMaxes, []float64{-100, 25, 20}),
		GridResolutions:      orInts(config.Density.GridResolutions, []int{20, 20, 20}),
		CompressionThreshold: getFloatOrDefault("COMPRESSION_THRESHOLD", orFloat(config.Density.CompressionThreshold, 1e-4)),
		MinPitches:           getIntOrDefault("MIN_PITCHES", orInt(config.Density.MinPitches, 100)),
		BatchSize:            getIntOrDefault("BATCH_SIZE", orInt(config.Training.BatchSize, 32)),
		LearningRate:         getFloatOrDefault("LEARNING_RATE", orFloat(config.Training.LearningRate, 0.1)),
		HiddenDim:            getIntOrDefault("HIDDEN_DIM", orInt(config.Training.HiddenDim, 96)),
		EmbeddingDim:         getIntOrDefault("EMBEDDING_DIM", orInt(config.Training.EmbeddingDim, 8)),
		TrainingSteps:        getIntOrDefault("TRAINING_STEPS", orInt(config.Training.Steps, 20000)),
		ScoreEvery:           getIntOrDefault("SCORE_EVERY", orInt(config.Training.ScoreEvery, 200)),
		Seed:                 int64(getIntOrDefault("SEED", orInt(int(config.Training.Seed), 1))),
		TrainFraction:        getFloatOrDefault("TRAIN_FRACTION", orFloat(config.Training.TrainFraction, 0.6)),
		ValFraction:          getFloatOrDefault("VAL_FRACTION", orFloat(config.Training.ValFraction, 0.2)),
		ServePort:            getIntOrDefault("SERVE_PORT", orInt(config.System.ServePort, 8090)),
		MetricsPort:          getIntOrDefault("METRICS_PORT", orInt(config.System.MetricsPort, 8080)),
		HTTPTimeout:          getDurationOrDefault("HTTP_TIMEOUT", httpTimeout),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}

func orFloats(v, def []float64) []float64 {
	if len(v) > 0 {
		return v
	}
	return def
}

func orInts(v, def []int) []int {
	if len(v) > 0 {
		return v
	}
	return def
}
