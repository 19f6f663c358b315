package density

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"pitchmodel/internal/dataset"
)

// profilePercentiles are the seven points of a pitcher's quantile profile.
var profilePercentiles = []float64{0.01, 0.05, 0.25, 0.50, 0.75, 0.95, 0.99}

// ProfileLen is the length of a flattened quantile profile.
var ProfileLen = len(profilePercentiles) * len(MovementVariables)

// QuantileProfile summarizes one pitcher's movement distribution as the
// percentile profile of each movement variable, flattened variable-major:
// the seven velocity_y percentiles, then accel_x, then accel_z.
func QuantileProfile(data *dataset.PitchData, pitcher string) ([]float64, error) {
	sub, err := data.FilterPitcher(pitcher, dataset.FilterOptions{KeepIDs: true})
	if err != nil {
		return nil, err
	}
	if sub.Len() == 0 {
		return nil, fmt.Errorf("density: no pitches for %q", pitcher)
	}
	return profileOf(sub)
}

// QuantileProfiles computes a profile per pitcher, skipping pitchers with
// fewer than minPitches observations.
func QuantileProfiles(data *dataset.PitchData, minPitches int) (map[string][]float64, error) {
	counts := make(map[int]int)
	for _, id := range data.PitcherIDs {
		counts[id]++
	}

	profiles := make(map[string][]float64)
	for id, n := range counts {
		if n < minPitches {
			continue
		}
		sub, err := data.FilterPitcherID(id, dataset.FilterOptions{KeepIDs: true})
		if err != nil {
			return nil, err
		}
		profile, err := profileOf(sub)
		if err != nil {
			return nil, fmt.Errorf("density: pitcher %q: %w", data.Pitchers[id], err)
		}
		profiles[data.Pitchers[id]] = profile
	}
	return profiles, nil
}

func profileOf(sub *dataset.PitchData) ([]float64, error) {
	profile := make([]float64, 0, ProfileLen)
	for _, variable := range MovementVariables {
		col, err := sub.Column(variable)
		if err != nil {
			return nil, err
		}
		sort.Float64s(col)
		for _, p := range profilePercentiles {
			profile = append(profile, stat.Quantile(p, stat.Empirical, col, nil))
		}
	}
	return profile, nil
}
