package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pitchmodel/internal/cfg"
	"pitchmodel/internal/dataset"
	"pitchmodel/internal/eval"
	"pitchmodel/internal/metrics"
	"pitchmodel/internal/outcome"
	"pitchmodel/internal/scale"
	"pitchmodel/internal/serve"
	"pitchmodel/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		datasetName = flag.String("dataset", "pitches", "Stored dataset to train on")
		densitySet  = flag.String("density-set", "default", "Stored density set for the density variants")
		densityFrom = flag.String("density-source", "compressed", "Density feature source: compressed or quantiles")
		variantList = flag.String("variants", "", "Comma-separated variants to train (default: all)")
		steps       = flag.Int("steps", 0, "Training steps (overrides config)")
		baseline    = flag.String("baseline", string(outcome.VariantLogistic), "Baseline variant for bootstrap comparisons")
		iterations  = flag.Int("bootstrap", 1000, "Bootstrap resampling iterations")
		outputPath  = flag.String("output", "", "Output directory for reports (overrides config)")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if *steps > 0 {
		config.TrainingSteps = *steps
	}
	if *outputPath != "" {
		config.OutputPath = *outputPath
	}

	variants, err := parseVariants(*variantList)
	if err != nil {
		log.Fatal().Err(err).Msg("bad -variants value")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	feed := serve.NewFeed(m)
	defer feed.Close()
	startMetricsServer(ctx, config.MetricsPort, feed)

	store, err := storage.New(config.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	data, err := store.LoadDataset(*datasetName)
	if err != nil {
		log.Fatal().Err(err).Str("dataset", *datasetName).Msg("failed to load dataset")
	}
	data, err = data.FilterNulls(dataset.FilterOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("null filtering failed")
	}

	if anyUsesDensity(variants) {
		features, err := loadDensityFeatures(store, *densitySet, *densityFrom)
		if err != nil {
			log.Fatal().Err(err).Str("set", *densitySet).Msg("failed to load density features")
		}
		data, err = data.AttachDensity(features)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to attach density features")
		}
		log.Info().Int("pitches", data.Len()).Msg("restricted to pitchers with density features")
	}

	rng := rand.New(rand.NewSource(config.Seed))
	data.Shuffle(rng)
	trainSet, valSet, testSet, err := data.Split(config.TrainFraction, config.ValFraction)
	if err != nil {
		log.Fatal().Err(err).Msg("split failed")
	}
	log.Info().
		Int("train", trainSet.Len()).
		Int("validation", valSet.Len()).
		Int("test", testSet.Len()).
		Msg("dataset split")

	started := time.Now()
	scorers := make(map[string]eval.Scorer, len(variants))
	fitLogs := make(map[string]*outcome.FitLog, len(variants))
	versions := make(map[string]storage.ModelVersion, len(variants))

	for _, variant := range variants {
		model, err := trainVariant(ctx, variant, config, trainSet, valSet, m, feed)
		if err != nil {
			log.Fatal().Err(err).Str("variant", string(variant)).Msg("training failed")
		}

		path := filepath.Join(config.OutputPath, "models", string(variant)+".json")
		if err := model.Save(path); err != nil {
			log.Fatal().Err(err).Msg("checkpoint save failed")
		}
		m.CheckpointsSaved.Inc()

		testScore, err := model.Score(testSet)
		if err != nil {
			log.Fatal().Err(err).Msg("test scoring failed")
		}
		valScore, err := model.Score(valSet)
		if err != nil {
			log.Fatal().Err(err).Msg("validation scoring failed")
		}

		if err := store.SaveFitLog(string(variant), &model.Log); err != nil {
			log.Fatal().Err(err).Msg("fit log save failed")
		}
		version, err := store.AddVersion(string(variant), path, storage.ModelMetrics{
			ValidationScore: valScore,
			TestScore:       testScore,
			TrainingSteps:   config.TrainingSteps,
			TrainingSamples: trainSet.Len(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("version record failed")
		}

		scorers[string(variant)] = model
		fitLogs[string(variant)] = &model.Log
		versions[string(variant)] = version
		log.Info().
			Str("variant", string(variant)).
			Float64("validation_score", valScore).
			Float64("test_score", testScore).
			Msg("variant trained")
	}

	comparisons, err := eval.Compare(scorers, *baseline, testSet, *iterations, rng)
	if err != nil {
		log.Fatal().Err(err).Msg("model comparison failed")
	}

	reporter := eval.NewReporter(config.OutputPath, comparisons, fitLogs, started, time.Now())
	if err := reporter.GenerateReport(); err != nil {
		log.Error().Err(err).Msg("report generation failed")
	}

	activateBest(store, versions)
	log.Info().Str("output", config.OutputPath).Msg("training run complete")
}

// trainVariant builds, scales and fits one model variant.
func trainVariant(ctx context.Context, variant outcome.Variant, config cfg.Settings,
	trainSet, valSet *dataset.PitchData, m *metrics.Metrics, feed *serve.Feed,
) (*outcome.Model, error) {
	mc := outcome.DefaultConfig(variant)
	mc.BatchSize = config.BatchSize
	mc.LearningRate = config.LearningRate
	mc.HiddenDim = config.HiddenDim
	mc.EmbeddingDim = config.EmbeddingDim
	mc.Seed = config.Seed
	// The splits share one id space over the full name lists, so a player
	// seen only in validation or test still needs an embedding row.
	mc.NumPitchers = len(trainSet.Pitchers)
	mc.NumBatters = len(trainSet.Batters)
	if len(trainSet.Density) > 0 {
		mc.DensityDim = len(trainSet.Density[0])
	}

	model, err := outcome.New(mc)
	if err != nil {
		return nil, err
	}
	scaler := &scale.Scaler{}
	if err := scaler.Fit(trainSet.Features); err != nil {
		return nil, err
	}
	model.Scaler = scaler

	start := time.Now()
	err = model.Fit(ctx, trainSet, valSet, outcome.FitOptions{
		Steps:      config.TrainingSteps,
		ScoreEvery: config.ScoreEvery,
		Observer: func(p outcome.FitPoint) {
			m.ValidationScore.Set(p.Score)
			feed.Broadcast(serve.FeedEvent{Batch: p.Batch, Score: p.Score, Timestamp: time.Now()})
		},
	})
	if err != nil {
		return nil, err
	}
	m.TrainingSteps.Add(float64(config.TrainingSteps))
	m.StepDuration.Observe(time.Since(start).Seconds() / float64(config.TrainingSteps))
	return model, nil
}

func parseVariants(s string) ([]outcome.Variant, error) {
	if s == "" {
		return outcome.Variants, nil
	}
	known := make(map[outcome.Variant]bool, len(outcome.Variants))
	for _, v := range outcome.Variants {
		known[v] = true
	}
	var out []outcome.Variant
	for _, part := range strings.Split(s, ",") {
		v := outcome.Variant(strings.TrimSpace(part))
		if v == "" {
			continue
		}
		if !known[v] {
			return nil, fmt.Errorf("unknown variant %q", v)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no variants named")
	}
	return out, nil
}

func anyUsesDensity(variants []outcome.Variant) bool {
	for _, v := range variants {
		if v == outcome.VariantDensity || v == outcome.VariantDensityDirect {
			return true
		}
	}
	return false
}

func loadDensityFeatures(store *storage.Store, set, source string) (map[string][]float64, error) {
	switch source {
	case "compressed":
		compressed, err := store.LoadCompressed(set)
		if err != nil {
			return nil, err
		}
		return compressed.Values, nil
	case "quantiles":
		return store.LoadQuantiles(set)
	default:
		return nil, fmt.Errorf("unknown density source %q", source)
	}
}

// activateBest marks the version with the lowest test score as active.
func activateBest(store *storage.Store, versions map[string]storage.ModelVersion) {
	var best storage.ModelVersion
	found := false
	for _, v := range versions {
		if !found || v.Metrics.TestScore < best.Metrics.TestScore {
			best, found = v, true
		}
	}
	if !found {
		return
	}
	if err := store.ActivateVersion(best.Version); err != nil {
		log.Error().Err(err).Msg("failed to activate best version")
		return
	}
	log.Info().
		Str("variant", best.Variant).
		Str("version", best.Version).
		Float64("test_score", best.Metrics.TestScore).
		Msg("activated best model version")
}

func startMetricsServer(ctx context.Context, port int, feed *serve.Feed) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/train/feed", feed.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}
