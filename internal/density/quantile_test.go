package density

import (
	"math"
	"math/rand"
	"testing"

	"pitchmodel/internal/dataset"
)

// movementData builds a dataset where each pitcher's movement columns follow
// a distinct normal distribution.
func movementData(t *testing.T, counts map[string]int) *dataset.PitchData {
	t.Helper()
	rng := rand.New(rand.NewSource(11))

	idxs := make([]int, len(MovementVariables))
	for i, name := range MovementVariables {
		idx, ok := dataset.ColumnIndex(name)
		if !ok {
			t.Fatalf("unknown movement variable %q", name)
		}
		idxs[i] = idx
	}

	d := &dataset.PitchData{
		Pitchers: []string{"No Pitcher"},
		Batters:  []string{"No Batter", "Someone"},
	}
	center := 0.0
	for name, n := range counts {
		id := len(d.Pitchers)
		d.Pitchers = append(d.Pitchers, name)
		center += 10
		for i := 0; i < n; i++ {
			row := make([]float64, dataset.NumFeatures)
			for _, idx := range idxs {
				row[idx] = center + rng.NormFloat64()
			}
			d.Features = append(d.Features, row)
			d.Outcomes = append(d.Outcomes, dataset.OutcomeBall)
			d.PitcherIDs = append(d.PitcherIDs, id)
			d.BatterIDs = append(d.BatterIDs, 1)
		}
	}
	return d
}

func TestFitPitchersSkipsSmallSamples(t *testing.T) {
	d := movementData(t, map[string]int{"Verlander": 40, "Mop-up Guy": 3})

	estimators, err := FitPitchers(d, 0.5, 10)
	if err != nil {
		t.Fatalf("FitPitchers: %v", err)
	}
	if len(estimators) != 1 {
		t.Fatalf("got %d estimators, want 1", len(estimators))
	}
	if _, ok := estimators["Verlander"]; !ok {
		t.Error("expected an estimator for Verlander")
	}
}

func TestRenderAllSharesGrid(t *testing.T) {
	d := movementData(t, map[string]int{"Verlander": 30, "Sabathia": 30})
	estimators, err := FitPitchers(d, 0.5, 10)
	if err != nil {
		t.Fatalf("FitPitchers: %v", err)
	}

	renders, err := RenderAll(estimators,
		[]float64{5, 5, 5}, []float64{25, 25, 25}, []int{4, 4, 4})
	if err != nil {
		t.Fatalf("RenderAll: %v", err)
	}
	if len(renders) != 2 {
		t.Fatalf("got %d renders, want 2", len(renders))
	}
	for name, grid := range renders {
		if grid.Len() != 64 {
			t.Errorf("render %q has %d voxels, want 64", name, grid.Len())
		}
	}

	flat := Flatten(renders)
	if len(flat["Verlander"]) != 64 {
		t.Errorf("flattened render has %d values", len(flat["Verlander"]))
	}
}

func TestNullFilteringKeepsDensityWorkFinite(t *testing.T) {
	// An assembled dataset carries NaN for untracked measurements. One NaN
	// movement value poisons every kernel sum it touches, so callers drop
	// incomplete rows before fitting; the cleaned data must render finite.
	d := movementData(t, map[string]int{"Verlander": 40})
	vyIdx, _ := dataset.ColumnIndex("velocity_y")
	d.Features[7][vyIdx] = math.NaN()

	clean, err := d.FilterNulls(dataset.FilterOptions{})
	if err != nil {
		t.Fatalf("FilterNulls: %v", err)
	}
	if clean.Len() != 39 {
		t.Fatalf("got %d rows after filtering, want 39", clean.Len())
	}

	estimators, err := FitPitchers(clean, 0.5, 10)
	if err != nil {
		t.Fatalf("FitPitchers: %v", err)
	}
	renders, err := RenderAll(estimators,
		[]float64{5, 5, 5}, []float64{25, 25, 25}, []int{4, 4, 4})
	if err != nil {
		t.Fatalf("RenderAll: %v", err)
	}
	for _, v := range renders["Verlander"].Values {
		if math.IsNaN(v) {
			t.Fatal("render contains NaN voxels")
		}
	}

	profiles, err := QuantileProfiles(clean, 10)
	if err != nil {
		t.Fatalf("QuantileProfiles: %v", err)
	}
	for _, v := range profiles["Verlander"] {
		if math.IsNaN(v) {
			t.Fatal("quantile profile contains NaN")
		}
	}
}

func TestQuantileProfile(t *testing.T) {
	d := movementData(t, map[string]int{"Verlander": 200})

	profile, err := QuantileProfile(d, "Verlander")
	if err != nil {
		t.Fatalf("QuantileProfile: %v", err)
	}
	if len(profile) != ProfileLen {
		t.Fatalf("profile length %d, want %d", len(profile), ProfileLen)
	}

	// Within each variable's block the percentiles must be nondecreasing,
	// and the median should sit near the distribution center of 10.
	perVar := len(profile) / len(MovementVariables)
	for v := 0; v < len(MovementVariables); v++ {
		block := profile[v*perVar : (v+1)*perVar]
		for i := 1; i < len(block); i++ {
			if block[i] < block[i-1] {
				t.Fatalf("variable %d percentiles not sorted: %v", v, block)
			}
		}
		if math.Abs(block[3]-10) > 0.5 {
			t.Errorf("variable %d median %v, want near 10", v, block[3])
		}
	}

	if _, err := QuantileProfile(d, "Nobody"); err == nil {
		t.Error("expected error for unknown pitcher")
	}
}

func TestQuantileProfilesSkipsSmallSamples(t *testing.T) {
	d := movementData(t, map[string]int{"Verlander": 60, "Mop-up Guy": 2})

	profiles, err := QuantileProfiles(d, 10)
	if err != nil {
		t.Fatalf("QuantileProfiles: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("got %d profiles, want 1", len(profiles))
	}
	if len(profiles["Verlander"]) != ProfileLen {
		t.Errorf("profile length %d, want %d", len(profiles["Verlander"]), ProfileLen)
	}
}
