package storage

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"pitchmodel/internal/dataset"
	"pitchmodel/internal/density"
	"pitchmodel/internal/outcome"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testDataset() *dataset.PitchData {
	d := &dataset.PitchData{
		Pitchers: []string{"No Pitcher", "Verlander"},
		Batters:  []string{"No Batter", "Jeter"},
	}
	for i := 0; i < 4; i++ {
		row := make([]float64, dataset.NumFeatures)
		row[0] = float64(i)
		d.Features = append(d.Features, row)
		d.Outcomes = append(d.Outcomes, i%dataset.NumOutcomes+1)
		d.PitcherIDs = append(d.PitcherIDs, 1)
		d.BatterIDs = append(d.BatterIDs, 1)
	}
	return d
}

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	store, err := New(tempDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	dbPath := filepath.Join(tempDir, "pitchmodel.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_InvalidPath(t *testing.T) {
	if _, err := New("/nonexistent/path"); err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestDatasetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	want := testDataset()

	if err := store.SaveDataset("pitches", want); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	got, err := store.LoadDataset("pitches")
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if got.Len() != want.Len() {
		t.Errorf("got %d rows, want %d", got.Len(), want.Len())
	}
	if got.Pitchers[1] != "Verlander" {
		t.Errorf("pitcher list lost: %v", got.Pitchers)
	}
	if got.Features[2][0] != 2 {
		t.Error("feature values lost")
	}

	if _, err := store.LoadDataset("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDatasetRoundTripPreservesNaN(t *testing.T) {
	store := newTestStore(t)
	want := testDataset()
	// Pitches missing a PitchFx measurement carry NaN until FilterNulls.
	spinRate, _ := dataset.ColumnIndex("spin_rate")
	want.Features[1][spinRate] = math.NaN()

	if err := store.SaveDataset("pitches", want); err != nil {
		t.Fatalf("SaveDataset with NaN feature: %v", err)
	}
	got, err := store.LoadDataset("pitches")
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if !math.IsNaN(got.Features[1][spinRate]) {
		t.Errorf("NaN not preserved, got %v", got.Features[1][spinRate])
	}
	if got.Features[0][spinRate] != 0 {
		t.Errorf("neighbouring value corrupted: %v", got.Features[0][spinRate])
	}
}

func TestRendersRoundTrip(t *testing.T) {
	store := newTestStore(t)
	renders := map[string]*density.Grid{
		"Verlander": {Shape: []int{2, 2, 2}, Values: []float64{1, 2, 3, 4, 5, 6, 7, 8}},
		"Sabathia":  {Shape: []int{2, 2, 2}, Values: []float64{8, 7, 6, 5, 4, 3, 2, 1}},
	}

	if err := store.SaveRenders("2009", renders); err != nil {
		t.Fatalf("SaveRenders: %v", err)
	}
	// A second set must not leak into the first.
	other := map[string]*density.Grid{
		"Verlander": {Shape: []int{1, 1, 1}, Values: []float64{9}},
	}
	if err := store.SaveRenders("2010", other); err != nil {
		t.Fatalf("SaveRenders: %v", err)
	}

	got, err := store.LoadRenders("2009")
	if err != nil {
		t.Fatalf("LoadRenders: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d renders, want 2", len(got))
	}
	if got["Verlander"].At(1, 1, 1) != 8 {
		t.Error("render values lost")
	}

	if _, err := store.LoadRenders("2011"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCompressedRoundTrip(t *testing.T) {
	store := newTestStore(t)
	want := &density.Compressed{
		Indices: []int{0, 5, 9},
		Shape:   []int{20, 20, 20},
		Values:  map[string][]float64{"Verlander": {0.1, 0.2, 0.3}},
	}

	if err := store.SaveCompressed("2009", want); err != nil {
		t.Fatalf("SaveCompressed: %v", err)
	}
	got, err := store.LoadCompressed("2009")
	if err != nil {
		t.Fatalf("LoadCompressed: %v", err)
	}
	if len(got.Indices) != 3 || got.Indices[1] != 5 {
		t.Errorf("indices lost: %v", got.Indices)
	}
	if got.Values["Verlander"][2] != 0.3 {
		t.Error("values lost")
	}
}

func TestQuantilesRoundTrip(t *testing.T) {
	store := newTestStore(t)
	want := map[string][]float64{
		"Verlander": {1, 2, 3},
		"Sabathia":  {4, 5, 6},
	}

	if err := store.SaveQuantiles("2009", want); err != nil {
		t.Fatalf("SaveQuantiles: %v", err)
	}
	got, err := store.LoadQuantiles("2009")
	if err != nil {
		t.Fatalf("LoadQuantiles: %v", err)
	}
	if len(got) != 2 || got["Sabathia"][0] != 4 {
		t.Errorf("profiles lost: %v", got)
	}
}

func TestFitLogRoundTrip(t *testing.T) {
	store := newTestStore(t)
	fitLog := &outcome.FitLog{}
	fitLog.Append(outcome.FitPoint{Batch: 0, Score: 4.5})
	fitLog.Append(outcome.FitPoint{Batch: 200, Score: 3.1})

	if err := store.SaveFitLog("single_hidden", fitLog); err != nil {
		t.Fatalf("SaveFitLog: %v", err)
	}
	got, err := store.LoadFitLog("single_hidden")
	if err != nil {
		t.Fatalf("LoadFitLog: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("got %d points, want 2", got.Len())
	}
	if best, _ := got.Best(); best.Score != 3.1 {
		t.Errorf("best score %v, want 3.1", best.Score)
	}
}

func TestVersionLifecycle(t *testing.T) {
	store := newTestStore(t)

	v1, err := store.AddVersion("logistic", "models/logistic.json", ModelMetrics{TestScore: 3.2})
	if err != nil {
		t.Fatalf("AddVersion: %v", err)
	}
	v2, err := store.AddVersion("single_hidden", "models/single_hidden.json", ModelMetrics{TestScore: 2.9})
	if err != nil {
		t.Fatalf("AddVersion: %v", err)
	}

	versions, err := store.ListVersions()
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("got %d versions, want 2", len(versions))
	}
	if versions[0].Version != v2.Version {
		t.Error("versions not sorted newest first")
	}

	// No version is active until one is activated.
	if _, err := store.ActiveVersion(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.ActivateVersion(v2.Version); err != nil {
		t.Fatalf("ActivateVersion: %v", err)
	}
	active, err := store.ActiveVersion()
	if err != nil {
		t.Fatalf("ActiveVersion: %v", err)
	}
	if active.Version != v2.Version {
		t.Errorf("active version %s, want %s", active.Version, v2.Version)
	}

	// Activating another version deactivates the first.
	if err := store.ActivateVersion(v1.Version); err != nil {
		t.Fatalf("ActivateVersion: %v", err)
	}
	active, _ = store.ActiveVersion()
	if active.Version != v1.Version {
		t.Errorf("active version %s, want %s", active.Version, v1.Version)
	}

	if err := store.ActivateVersion("20000101-000000-nothing"); err == nil {
		t.Error("expected error for unknown version")
	}
}

func TestRollback(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Rollback(); err == nil {
		t.Error("expected error with no versions")
	}

	v1, _ := store.AddVersion("logistic", "a.json", ModelMetrics{})
	v2, _ := store.AddVersion("embedding", "b.json", ModelMetrics{})
	if err := store.ActivateVersion(v2.Version); err != nil {
		t.Fatalf("ActivateVersion: %v", err)
	}

	previous, err := store.Rollback()
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if previous.Version != v1.Version {
		t.Errorf("rolled back to %s, want %s", previous.Version, v1.Version)
	}
	active, err := store.ActiveVersion()
	if err != nil {
		t.Fatalf("ActiveVersion: %v", err)
	}
	if active.Version != v1.Version {
		t.Error("rollback did not activate the previous version")
	}

	// Already at the oldest version; nothing left to roll back to.
	if _, err := store.Rollback(); err == nil {
		t.Error("expected error at the oldest version")
	}
}
