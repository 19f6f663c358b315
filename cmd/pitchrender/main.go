package main

import (
	"flag"
	"os"
	"time"

	"pitchmodel/internal/cfg"
	"pitchmodel/internal/dataset"
	"pitchmodel/internal/density"
	"pitchmodel/internal/metrics"
	"pitchmodel/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		datasetName = flag.String("dataset", "pitches", "Stored dataset to estimate from")
		setName     = flag.String("set", "default", "Name to store renders and profiles under")
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

	store, err := storage.New(config.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	data, err := store.LoadDataset(*datasetName)
	if err != nil {
		log.Fatal().Err(err).Str("dataset", *datasetName).Msg("failed to load dataset")
	}
	// A single NaN movement value would poison every voxel of its pitcher's
	// render, so incomplete pitches are dropped before fitting.
	data, err = data.FilterNulls(dataset.FilterOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("null filtering failed")
	}
	log.Info().Int("pitches", data.Len()).Msg("dataset loaded")

	m := metrics.New()

	estimators, err := density.FitPitchers(data, config.Bandwidth, config.MinPitches)
	if err != nil {
		log.Fatal().Err(err).Msg("density fit failed")
	}

	start := time.Now()
	renders, err := density.RenderAll(estimators, config.GridMins, config.GridMaxes, config.GridResolutions)
	if err != nil {
		log.Fatal().Err(err).Msg("render failed")
	}
	m.RendersTotal.Add(float64(len(renders)))
	m.RenderDuration.Observe(time.Since(start).Seconds())

	if err := store.SaveRenders(*setName, renders); err != nil {
		log.Fatal().Err(err).Msg("failed to save renders")
	}

	compressed, err := density.Compress(renders, config.CompressionThreshold)
	if err != nil {
		log.Fatal().Err(err).Msg("compression failed")
	}
	if err := store.SaveCompressed(*setName, compressed); err != nil {
		log.Fatal().Err(err).Msg("failed to save compressed renders")
	}

	profiles, err := density.QuantileProfiles(data, config.MinPitches)
	if err != nil {
		log.Fatal().Err(err).Msg("quantile profiles failed")
	}
	if err := store.SaveQuantiles(*setName, profiles); err != nil {
		log.Fatal().Err(err).Msg("failed to save quantile profiles")
	}

	log.Info().
		Str("set", *setName).
		Int("pitchers", len(renders)).
		Int("voxels_kept", len(compressed.Indices)).
		Dur("elapsed", time.Since(start)).
		Msg("density renders stored")
}
