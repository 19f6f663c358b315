// Package cfg loads pipeline configuration from a YAML file with
// environment-variable overrides, falling back to environment variables
// alone when no file is configured.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings is the resolved pipeline configuration.
type Settings struct {
	DataPath   string
	OutputPath string

	// Density estimation
	Bandwidth            float64
	GridMins             []float64
	GridMaxes            []float64
	GridResolutions      []int
	CompressionThreshold float64
	MinPitches           int

	// Training
	BatchSize     int
	LearningRate  float64
	HiddenDim     int
	EmbeddingDim  int
	TrainingSteps int
	ScoreEvery    int
	Seed          int64
	TrainFraction float64
	ValFraction   float64

	// Serving
	ServePort   int
	MetricsPort int

	// Data acquisition
	HTTPTimeout time.Duration
}

// Load resolves settings from CONFIG_FILE when set, otherwise from the
// environment alone. A .env file in the working directory is read first
// when present.
func Load() (Settings, error) {
	_ = godotenv.Load()
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DataPath:             getEnvOrDefault("DATA_PATH", "data"),
		OutputPath:           getEnvOrDefault("OUTPUT_PATH", "output"),
		Bandwidth:            getFloatOrDefault("DENSITY_BANDWIDTH", 0.5),
		GridMins:             getFloatsOrDefault("GRID_MINS", []float64{-150, -25, -50}),
		GridMaxes:            getFloatsOrDefault("GRID_MAXES", []float64{-100, 25, 20}),
		GridResolutions:      getIntsOrDefault("GRID_RESOLUTIONS", []int{20, 20, 20}),
		CompressionThreshold: getFloatOrDefault("COMPRESSION_THRESHOLD", 1e-4),
		MinPitches:           getIntOrDefault("MIN_PITCHES", 100),
		BatchSize:            getIntOrDefault("BATCH_SIZE", 32),
		LearningRate:         getFloatOrDefault("LEARNING_RATE", 0.1),
		HiddenDim:            getIntOrDefault("HIDDEN_DIM", 96),
		EmbeddingDim:         getIntOrDefault("EMBEDDING_DIM", 8),
		TrainingSteps:        getIntOrDefault("TRAINING_STEPS", 20000),
		ScoreEvery:           getIntOrDefault("SCORE_EVERY", 200),
		Seed:                 int64(getIntOrDefault("SEED", 1)),
		TrainFraction:        getFloatOrDefault("TRAIN_FRACTION", 0.6),
		ValFraction:          getFloatOrDefault("VAL_FRACTION", 0.2),
		ServePort:            getIntOrDefault("SERVE_PORT", 8090),
		MetricsPort:          getIntOrDefault("METRICS_PORT", 8080),
		HTTPTimeout:          getDurationOrDefault("HTTP_TIMEOUT", 30*time.Second),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getFloatsOrDefault(key string, defaultValue []float64) []float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	parts := strings.Split(v, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, f)
	}
	return out
}

func getIntsOrDefault(key string, defaultValue []int) []int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		i, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return defaultValue
		}
		out = append(out, i)
	}
	return out
}

// validateSettings performs range validation of configuration values.
func validateSettings(s *Settings) error {
	if s.DataPath == "" {
		return fmt.Errorf("data path cannot be empty")
	}
	if s.Bandwidth <= 0 {
		return fmt.Errorf("density bandwidth must be positive, got %g", s.Bandwidth)
	}
	if len(s.GridMins) != 3 || len(s.GridMaxes) != 3 || len(s.GridResolutions) != 3 {
		return fmt.Errorf("density grid bounds must have 3 axes")
	}
	for i := range s.GridMins {
		if s.GridMaxes[i] <= s.GridMins[i] {
			return fmt.Errorf("grid axis %d has empty range [%g, %g]", i, s.GridMins[i], s.GridMaxes[i])
		}
		if s.GridResolutions[i] < 2 || s.GridResolutions[i] > 200 {
			return fmt.Errorf("grid axis %d resolution must be between 2 and 200, got %d", i, s.GridResolutions[i])
		}
	}
	if s.CompressionThreshold < 0 {
		return fmt.Errorf("compression threshold must be non-negative, got %g", s.CompressionThreshold)
	}
	if s.MinPitches < 1 {
		return fmt.Errorf("min pitches must be at least 1, got %d", s.MinPitches)
	}
	if s.BatchSize < 1 || s.BatchSize > 4096 {
		return fmt.Errorf("batch size must be between 1 and 4096, got %d", s.BatchSize)
	}
	if s.LearningRate <= 0 || s.LearningRate > 10 {
		return fmt.Errorf("learning rate must be between 0 and 10, got %g", s.LearningRate)
	}
	if s.HiddenDim < 1 || s.HiddenDim > 4096 {
		return fmt.Errorf("hidden dim must be between 1 and 4096, got %d", s.HiddenDim)
	}
	if s.EmbeddingDim < 1 || s.EmbeddingDim > 256 {
		return fmt.Errorf("embedding dim must be between 1 and 256, got %d", s.EmbeddingDim)
	}
	if s.TrainingSteps < 1 {
		return fmt.Errorf("training steps must be positive, got %d", s.TrainingSteps)
	}
	if s.ScoreEvery < 1 {
		return fmt.Errorf("score interval must be positive, got %d", s.ScoreEvery)
	}
	if s.TrainFraction <= 0 || s.ValFraction < 0 || s.TrainFraction+s.ValFraction >= 1 {
		return fmt.Errorf("split fractions train=%.2f val=%.2f must leave room for a test set",
			s.TrainFraction, s.ValFraction)
	}
	if s.ServePort < 1024 || s.ServePort > 65535 {
		return fmt.Errorf("serve port must be between 1024 and 65535, got %d", s.ServePort)
	}
	if s.MetricsPort < 1024 || s.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", s.MetricsPort)
	}
	if s.HTTPTimeout < time.Second || s.HTTPTimeout > 5*time.Minute {
		return fmt.Errorf("HTTP timeout must be between 1s and 5m, got %v", s.HTTPTimeout)
	}
	return nil
}
