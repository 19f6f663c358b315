// Package serve exposes a trained outcome model over HTTP and streams live
// training progress to WebSocket observers.
package serve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"pitchmodel/internal/metrics"
	"pitchmodel/internal/outcome"
)

// Server provides the HTTP API for model predictions.
type Server struct {
	model   *outcome.Model
	metrics *metrics.Metrics
	server  *http.Server
	loaded  time.Time
}

// PredictionRequest is the incoming prediction request. Density features
// and player ids are only consulted by the variants that use them.
type PredictionRequest struct {
	Features  []float64 `json:"features"`
	Density   []float64 `json:"density,omitempty"`
	PitcherID int       `json:"pitcher_id"`
	BatterID  int       `json:"batter_id"`
	RequestID string    `json:"request_id,omitempty"`
}

// PredictionResponse is the prediction result. Probabilities[k] is the
// probability of outcome k+1.
type PredictionResponse struct {
	Probabilities []float64 `json:"probabilities"`
	Outcome       int       `json:"outcome"`
	RequestID     string    `json:"request_id,omitempty"`
	Variant       string    `json:"variant"`
	LatencyMs     float64   `json:"latency_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

// New creates the server for a loaded model.
func New(model *outcome.Model, m *metrics.Metrics, port int) *Server {
	s := &Server{
		model:   model,
		metrics: m,
		loaded:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/model/info", s.handleModelInfo)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("prediction server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	start := time.Now()
	probs, err := s.model.Predict(req.Features, req.Density, req.PitcherID, req.BatterID)
	latency := time.Since(start)
	if err != nil {
		s.metrics.ErrorsTotal.Inc()
		log.Error().Err(err).Str("request_id", req.RequestID).Msg("prediction failed")
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	s.metrics.Predictions.Inc()
	s.metrics.PredictionLatency.Observe(latency.Seconds())

	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}

	resp := PredictionResponse{
		Probabilities: probs,
		Outcome:       best + 1,
		RequestID:     req.RequestID,
		Variant:       string(s.model.Config.Variant),
		LatencyMs:     float64(latency.Microseconds()) / 1000,
		Timestamp:     time.Now(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to write prediction response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleModelInfo(w http.ResponseWriter, _ *http.Request) {
	info := struct {
		Variant    string    `json:"variant"`
		Loaded     time.Time `json:"loaded"`
		AgeSeconds float64   `json:"age_seconds"`
		FitPoints  int       `json:"fit_points"`
		BestScore  float64   `json:"best_score,omitempty"`
	}{
		Variant:    string(s.model.Config.Variant),
		Loaded:     s.loaded,
		AgeSeconds: time.Since(s.loaded).Seconds(),
		FitPoints:  s.model.Log.Len(),
	}
	if best, ok := s.model.Log.Best(); ok {
		info.BestScore = best.Score
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}
