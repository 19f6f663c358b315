// Package dataset holds the row-oriented pitch dataset used throughout the
// pipeline. A PitchData keeps the numeric feature matrix, the categorical
// outcome labels and the pitcher/batter identity columns row-aligned under
// every filter, shuffle and split operation.
package dataset

import (
	"fmt"
	"math"
	"math/rand"
)

// Outcome labels for a single pitch.
const (
	OutcomeBall           = 1 // ball or hit by pitch
	OutcomeCalledStrike   = 2
	OutcomeSwingingStrike = 3
	OutcomeFoul           = 4
	OutcomeInPlay         = 5

	NumOutcomes = 5
)

// VariableNames lists the numeric feature columns of a PitchData, in order.
var VariableNames = []string{
	"inning", "outs", "balls", "strikes", "score_away_team", "score_home_team",
	"runner_on_first", "runner_on_second", "runner_on_third",
	"pitch_count_game", "pitch_count_at_bat", "pickoff_count_game", "pickoff_count_at_bat",
	"pitcher_age", "pitcher_mlb_tenure", "pitcher_height", "pitcher_weight",
	"pitcher_bats", "pitcher_throws",
	"batter_age", "batter_mlb_tenure", "batter_height", "batter_weight",
	"batter_bats", "batter_throws",
	"start_speed", "end_speed", "strike_zone_top", "strike_zone_bottom",
	"delta_x", "delta_z", "plate_x", "plate_z",
	"start_x", "start_y", "start_z",
	"velocity_x", "velocity_y", "velocity_z",
	"accel_x", "accel_y", "accel_z",
	"break_y", "break_angle", "break_length",
	"spin_direction", "spin_rate",
}

// NumFeatures is the width of the feature matrix.
var NumFeatures = len(VariableNames)

var columnIndex = func() map[string]int {
	m := make(map[string]int, len(VariableNames))
	for i, name := range VariableNames {
		m[name] = i
	}
	return m
}()

// PitchData is a row-oriented set of pitches. Features, Outcomes, PitcherIDs,
// BatterIDs and Density (when present) always have the same number of rows.
// PitcherIDs and BatterIDs index into the Pitchers and Batters name lists.
type PitchData struct {
	Features   [][]float64
	Outcomes   []int
	PitcherIDs []int
	BatterIDs  []int
	Pitchers   []string
	Batters    []string

	// Density holds optional per-row density feature columns appended by
	// AttachDensity. Nil when no density features are attached.
	Density [][]float64

	batchIndex int
}

// FilterOptions control how row filters behave.
type FilterOptions struct {
	// InPlace mutates the receiver instead of returning a fresh copy.
	InPlace bool
	// KeepIDs preserves the existing player id space instead of compressing
	// it to the surviving players.
	KeepIDs bool
}

// Len returns the number of rows.
func (d *PitchData) Len() int { return len(d.Outcomes) }

// Validate checks the row-alignment invariant.
func (d *PitchData) Validate() error {
	n := len(d.Outcomes)
	if len(d.Features) != n {
		return fmt.Errorf("dataset: %d feature rows for %d outcomes", len(d.Features), n)
	}
	if len(d.PitcherIDs) != n || len(d.BatterIDs) != n {
		return fmt.Errorf("dataset: id columns misaligned (%d pitchers, %d batters, %d rows)",
			len(d.PitcherIDs), len(d.BatterIDs), n)
	}
	if d.Density != nil && len(d.Density) != n {
		return fmt.Errorf("dataset: %d density rows for %d outcomes", len(d.Density), n)
	}
	for i, id := range d.PitcherIDs {
		if id < 0 || id >= len(d.Pitchers) {
			return fmt.Errorf("dataset: row %d pitcher id %d out of range", i, id)
		}
	}
	for i, id := range d.BatterIDs {
		if id < 0 || id >= len(d.Batters) {
			return fmt.Errorf("dataset: row %d batter id %d out of range", i, id)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (d *PitchData) Clone() *PitchData {
	out := &PitchData{
		Features:   make([][]float64, len(d.Features)),
		Outcomes:   append([]int(nil), d.Outcomes...),
		PitcherIDs: append([]int(nil), d.PitcherIDs...),
		BatterIDs:  append([]int(nil), d.BatterIDs...),
		Pitchers:   append([]string(nil), d.Pitchers...),
		Batters:    append([]string(nil), d.Batters...),
	}
	for i, row := range d.Features {
		out.Features[i] = append([]float64(nil), row...)
	}
	if d.Density != nil {
		out.Density = make([][]float64, len(d.Density))
		for i, row := range d.Density {
			out.Density[i] = append([]float64(nil), row...)
		}
	}
	return out
}

// FilterRows keeps only the rows at the given indices, in the given order.
// The filter applies identically to every row-aligned column block.
func (d *PitchData) FilterRows(keep []int, opts FilterOptions) (*PitchData, error) {
	for _, idx := range keep {
		if idx < 0 || idx >= d.Len() {
			return nil, fmt.Errorf("dataset: filter index %d out of range (rows: %d)", idx, d.Len())
		}
	}

	result := d
	if !opts.InPlace {
		result = &PitchData{}
	}

	features := make([][]float64, len(keep))
	outcomes := make([]int, len(keep))
	pitcherIDs := make([]int, len(keep))
	batterIDs := make([]int, len(keep))
	var density [][]float64
	if d.Density != nil {
		density = make([][]float64, len(keep))
	}
	for i, idx := range keep {
		features[i] = d.Features[idx]
		outcomes[i] = d.Outcomes[idx]
		pitcherIDs[i] = d.PitcherIDs[idx]
		batterIDs[i] = d.BatterIDs[idx]
		if density != nil {
			density[i] = d.Density[idx]
		}
	}

	result.Features = features
	result.Outcomes = outcomes
	result.PitcherIDs = pitcherIDs
	result.BatterIDs = batterIDs
	result.Density = density
	result.Pitchers = d.Pitchers
	result.Batters = d.Batters
	result.batchIndex = 0

	if !opts.KeepIDs {
		result.reassignIDs()
	}
	return result, nil
}

// FilterMask keeps the rows whose mask entry is true.
func (d *PitchData) FilterMask(mask []bool, opts FilterOptions) (*PitchData, error) {
	if len(mask) != d.Len() {
		return nil, fmt.Errorf("dataset: mask length %d does not match %d rows", len(mask), d.Len())
	}
	keep := make([]int, 0, len(mask))
	for i, ok := range mask {
		if ok {
			keep = append(keep, i)
		}
	}
	return d.FilterRows(keep, opts)
}

// FilterNulls drops every row containing a NaN feature value.
func (d *PitchData) FilterNulls(opts FilterOptions) (*PitchData, error) {
	mask := make([]bool, d.Len())
	for i, row := range d.Features {
		mask[i] = true
		for _, v := range row {
			if math.IsNaN(v) {
				mask[i] = false
				break
			}
		}
	}
	return d.FilterMask(mask, opts)
}

// FilterPitcher keeps only the rows thrown by the named pitcher.
func (d *PitchData) FilterPitcher(name string, opts FilterOptions) (*PitchData, error) {
	for id, n := range d.Pitchers {
		if n == name {
			return d.FilterPitcherID(id, opts)
		}
	}
	return nil, fmt.Errorf("dataset: unknown pitcher %q", name)
}

// FilterPitcherID keeps only the rows thrown by the pitcher with the given id.
func (d *PitchData) FilterPitcherID(id int, opts FilterOptions) (*PitchData, error) {
	mask := make([]bool, d.Len())
	for i, pid := range d.PitcherIDs {
		mask[i] = pid == id
	}
	return d.FilterMask(mask, opts)
}

// reassignIDs compresses the player id space to the players that survive a
// filter and remaps the id columns accordingly.
func (d *PitchData) reassignIDs() {
	d.Pitchers, d.PitcherIDs = compressPlayers(d.Pitchers, d.PitcherIDs)
	d.Batters, d.BatterIDs = compressPlayers(d.Batters, d.BatterIDs)
}

func compressPlayers(names []string, ids []int) ([]string, []int) {
	used := make(map[int]bool, len(ids))
	for _, id := range ids {
		used[id] = true
	}
	remap := make(map[int]int, len(used))
	kept := make([]string, 0, len(used))
	for id, name := range names {
		if used[id] {
			remap[id] = len(kept)
			kept = append(kept, name)
		}
	}
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = remap[id]
	}
	return kept, out
}

// Shuffle permutes the rows using the given source of randomness. All
// row-aligned blocks are permuted together.
func (d *PitchData) Shuffle(rng *rand.Rand) {
	rng.Shuffle(d.Len(), func(i, j int) {
		d.Features[i], d.Features[j] = d.Features[j], d.Features[i]
		d.Outcomes[i], d.Outcomes[j] = d.Outcomes[j], d.Outcomes[i]
		d.PitcherIDs[i], d.PitcherIDs[j] = d.PitcherIDs[j], d.PitcherIDs[i]
		d.BatterIDs[i], d.BatterIDs[j] = d.BatterIDs[j], d.BatterIDs[i]
		if d.Density != nil {
			d.Density[i], d.Density[j] = d.Density[j], d.Density[i]
		}
	})
	d.batchIndex = 0
}

// Split partitions the rows into train/validation/test sets by proportion.
// The split is positional; shuffle first for a random partition. The test set
// receives whatever remains after the train and validation fractions.
func (d *PitchData) Split(train, validation float64) (trainSet, valSet, testSet *PitchData, err error) {
	if train <= 0 || validation < 0 || train+validation > 1 {
		return nil, nil, nil, fmt.Errorf("dataset: invalid split fractions train=%.2f validation=%.2f", train, validation)
	}
	n := d.Len()
	trainEnd := int(float64(n) * train)
	valEnd := trainEnd + int(float64(n)*validation)

	trainSet, err = d.FilterRows(indexRange(0, trainEnd), FilterOptions{KeepIDs: true})
	if err != nil {
		return nil, nil, nil, err
	}
	valSet, err = d.FilterRows(indexRange(trainEnd, valEnd), FilterOptions{KeepIDs: true})
	if err != nil {
		return nil, nil, nil, err
	}
	testSet, err = d.FilterRows(indexRange(valEnd, n), FilterOptions{KeepIDs: true})
	if err != nil {
		return nil, nil, nil, err
	}
	return trainSet, valSet, testSet, nil
}

func indexRange(start, end int) []int {
	out := make([]int, end-start)
	for i := range out {
		out[i] = start + i
	}
	return out
}

// ColumnIndex returns the position of a named feature column.
func ColumnIndex(name string) (int, bool) {
	i, ok := columnIndex[name]
	return i, ok
}

// Column returns a copy of the named feature column.
func (d *PitchData) Column(name string) ([]float64, error) {
	idx, ok := columnIndex[name]
	if !ok {
		return nil, fmt.Errorf("dataset: unknown variable %q", name)
	}
	out := make([]float64, d.Len())
	for i, row := range d.Features {
		out[i] = row[idx]
	}
	return out, nil
}

// Columns returns the named feature columns as rows of points, one point per
// observation. This is the shape the density estimator consumes.
func (d *PitchData) Columns(names ...string) ([][]float64, error) {
	idxs := make([]int, len(names))
	for i, name := range names {
		idx, ok := columnIndex[name]
		if !ok {
			return nil, fmt.Errorf("dataset: unknown variable %q", name)
		}
		idxs[i] = idx
	}
	out := make([][]float64, d.Len())
	for i, row := range d.Features {
		point := make([]float64, len(idxs))
		for j, idx := range idxs {
			point[j] = row[idx]
		}
		out[i] = point
	}
	return out, nil
}

// AttachDensity joins per-pitcher density feature vectors onto the dataset as
// an extra column block, matching rows by pitcher name. Rows whose pitcher has
// no entry are dropped; ids are preserved so pitcher identities stay stable
// across the join.
func (d *PitchData) AttachDensity(features map[string][]float64) (*PitchData, error) {
	width := -1
	for _, v := range features {
		if width == -1 {
			width = len(v)
		} else if len(v) != width {
			return nil, fmt.Errorf("dataset: ragged density features (%d vs %d)", len(v), width)
		}
	}

	keep := make([]int, 0, d.Len())
	for i, pid := range d.PitcherIDs {
		if _, ok := features[d.Pitchers[pid]]; ok {
			keep = append(keep, i)
		}
	}
	result, err := d.FilterRows(keep, FilterOptions{KeepIDs: true})
	if err != nil {
		return nil, err
	}
	result.Density = make([][]float64, result.Len())
	for i, pid := range result.PitcherIDs {
		result.Density[i] = features[result.Pitchers[pid]]
	}
	return result, nil
}
