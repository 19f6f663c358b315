package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)
	if m == nil {
		t.Fatal("NewWithRegistry returned nil")
	}

	if v := testutil.ToFloat64(m.TrainingSteps); v != 0 {
		t.Errorf("expected initial counter value 0, got %f", v)
	}

	m.TrainingSteps.Add(200)
	m.Predictions.Inc()
	m.Predictions.Inc()
	if v := testutil.ToFloat64(m.TrainingSteps); v != 200 {
		t.Errorf("expected 200 training steps, got %f", v)
	}
	if v := testutil.ToFloat64(m.Predictions); v != 2 {
		t.Errorf("expected 2 predictions, got %f", v)
	}
}

func TestGauges(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ValidationScore.Set(1.83)
	if v := testutil.ToFloat64(m.ValidationScore); v != 1.83 {
		t.Errorf("expected validation score 1.83, got %f", v)
	}

	m.FeedClients.Set(3)
	m.FeedClients.Dec()
	if v := testutil.ToFloat64(m.FeedClients); v != 2 {
		t.Errorf("expected 2 feed clients, got %f", v)
	}

	m.ModelAge.Set(3600)
	if v := testutil.ToFloat64(m.ModelAge); v != 3600 {
		t.Errorf("expected model age 3600, got %f", v)
	}
}

func TestHistogramObservations(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)

	values := []float64{0.001, 0.005, 0.01, 0.05, 0.1}
	for _, v := range values {
		m.PredictionLatency.Observe(v)
	}
	m.StepDuration.Observe(0.02)
	m.RenderDuration.Observe(2.5)

	count := testutil.CollectAndCount(m.PredictionLatency, "prediction_latency_seconds")
	if count != 1 {
		t.Errorf("expected histogram to be collectable, got %d series", count)
	}
}

func TestIsolatedRegistries(t *testing.T) {
	a := NewWithRegistry(prometheus.NewRegistry())
	b := NewWithRegistry(prometheus.NewRegistry())

	a.ErrorsTotal.Inc()
	if v := testutil.ToFloat64(b.ErrorsTotal); v != 0 {
		t.Errorf("registries leaked: got %f errors on second instance", v)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				m.Predictions.Inc()
				m.PredictionLatency.Observe(0.01)
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if v := testutil.ToFloat64(m.Predictions); v != 1000 {
		t.Errorf("expected 1000 predictions after concurrent access, got %f", v)
	}
}
