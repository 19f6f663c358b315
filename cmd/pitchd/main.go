package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pitchmodel/internal/cfg"
	"pitchmodel/internal/metrics"
	"pitchmodel/internal/outcome"
	"pitchmodel/internal/serve"
	"pitchmodel/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		modelPath    = flag.String("model", "", "Checkpoint to serve (overrides the active stored version)")
		listVersions = flag.Bool("versions", false, "List stored model versions and exit")
		rollback     = flag.Bool("rollback", false, "Activate the previous model version and exit")
		logLevel     = flag.String("log-level", "info", "Log level: debug, info, warn, error")
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

	if *listVersions {
		printVersions(store)
		return
	}
	if *rollback {
		version, err := store.Rollback()
		if err != nil {
			log.Fatal().Err(err).Msg("rollback failed")
		}
		log.Info().
			Str("variant", version.Variant).
			Str("version", version.Version).
			Msg("rolled back to previous version")
		return
	}

	model, loadedAt, err := loadModel(store, *modelPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load model")
	}
	log.Info().Str("variant", string(model.Config.Variant)).Msg("model loaded")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	startMetricsServer(ctx, config.MetricsPort)
	go trackModelAge(ctx, m, loadedAt)

	server := serve.New(model, m, config.ServePort)
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("prediction server failed")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

// loadModel resolves the checkpoint to serve: an explicit path wins,
// otherwise the active stored version.
func loadModel(store *storage.Store, path string) (*outcome.Model, time.Time, error) {
	if path == "" {
		version, err := store.ActiveVersion()
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("no active version (train first or pass -model): %w", err)
		}
		log.Info().
			Str("variant", version.Variant).
			Str("version", version.Version).
			Msg("serving active model version")
		path = version.Path
	}
	model, err := outcome.Load(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	return model, time.Now(), nil
}

func printVersions(store *storage.Store) {
	versions, err := store.ListVersions()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list versions")
	}
	for _, v := range versions {
		active := " "
		if v.IsActive {
			active = "*"
		}
		fmt.Printf("%s %s  %-16s  validation=%.4f test=%.4f\n",
			active, v.Version, v.Variant, v.Metrics.ValidationScore, v.Metrics.TestScore)
	}
}

func trackModelAge(ctx context.Context, m *metrics.Metrics, loadedAt time.Time) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ModelAge.Set(time.Since(loadedAt).Seconds())
		}
	}
}

func startMetricsServer(ctx context.Context, port int) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

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
