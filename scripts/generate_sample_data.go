package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"

	"pitchmodel/internal/dataset"
	"pitchmodel/internal/storage"
)

func main() {
	var (
		dataPath    = flag.String("data", "data", "Data directory path")
		datasetName = flag.String("dataset", "pitches", "Dataset name to write")
		numPitchers = flag.Int("pitchers", 40, "Number of pitchers to simulate")
		numBatters  = flag.Int("batters", 120, "Number of batters to simulate")
		perPitcher  = flag.Int("per-pitcher", 400, "Pitches per pitcher")
		seed        = flag.Int64("seed", 1, "Random seed")
	)
	flag.Parse()

	fmt.Printf("Generating sample pitch data...\n")
	fmt.Printf("  Pitchers: %d\n", *numPitchers)
	fmt.Printf("  Batters: %d\n", *numBatters)
	fmt.Printf("  Pitches per pitcher: %d\n", *perPitcher)
	fmt.Printf("  Data Path: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()

	data := generatePitchData(*numPitchers, *numBatters, *perPitcher, *seed)
	if err := data.Validate(); err != nil {
		log.Fatalf("Generated data is invalid: %v", err)
	}
	if err := store.SaveDataset(*datasetName, data); err != nil {
		log.Fatalf("Failed to save dataset: %v", err)
	}

	fmt.Printf("✓ Generated %d pitches as dataset %q\n", data.Len(), *datasetName)
}

// pitcherProfile holds the per-pitcher simulation parameters. Each pitcher
// gets their own velocity and movement centers so the fitted densities
// actually differ.
type pitcherProfile struct {
	speed     float64 // average start speed, mph
	velocityY float64 // average velocity toward the plate, ft/s
	accelX    float64 // average horizontal break acceleration
	accelZ    float64 // average vertical acceleration (gravity plus spin)
	bats      float64
	throws    float64
	age       float64
	tenure    float64
	height    float64
	weight    float64
}

func generatePitchData(numPitchers, numBatters, perPitcher int, seed int64) *dataset.PitchData {
	rng := rand.New(rand.NewSource(seed))

	profiles := make([]pitcherProfile, numPitchers)
	for i := range profiles {
		profiles[i] = pitcherProfile{
			speed:     88 + 6*rng.Float64(),
			velocityY: -125 - 15*rng.Float64(),
			accelX:    -12 + 24*rng.Float64(),
			accelZ:    -30 + 25*rng.Float64(),
			bats:      handedness(rng),
			throws:    handedness(rng),
			age:       22 + 14*rng.Float64(),
			tenure:    rng.Float64() * 12,
			height:    71 + rng.Float64()*8,
			weight:    170 + rng.Float64()*80,
		}
	}

	batterBio := make([]pitcherProfile, numBatters)
	for i := range batterBio {
		batterBio[i] = pitcherProfile{
			bats:   handedness(rng),
			throws: handedness(rng),
			age:    22 + 14*rng.Float64(),
			tenure: rng.Float64() * 12,
			height: 69 + rng.Float64()*8,
			weight: 160 + rng.Float64()*80,
		}
	}

	data := &dataset.PitchData{
		Pitchers: []string{"No Pitcher"},
		Batters:  []string{"No Batter"},
	}
	for i := 0; i < numPitchers; i++ {
		data.Pitchers = append(data.Pitchers, fmt.Sprintf("Pitcher %03d", i+1))
	}
	for i := 0; i < numBatters; i++ {
		data.Batters = append(data.Batters, fmt.Sprintf("Batter %03d", i+1))
	}

	for p := 0; p < numPitchers; p++ {
		prof := profiles[p]
		for n := 0; n < perPitcher; n++ {
			b := rng.Intn(numBatters)
			balls := rng.Intn(4)
			strikes := rng.Intn(3)

			row := make([]float64, dataset.NumFeatures)
			set := func(name string, v float64) {
				idx, ok := dataset.ColumnIndex(name)
				if !ok {
					log.Fatalf("Unknown column %q", name)
				}
				row[idx] = v
			}

			set("inning", float64(1+rng.Intn(9)))
			set("outs", float64(rng.Intn(3)))
			set("balls", float64(balls))
			set("strikes", float64(strikes))
			set("score_away_team", float64(rng.Intn(8)))
			set("score_home_team", float64(rng.Intn(8)))
			set("runner_on_first", chance(rng, 0.25))
			set("runner_on_second", chance(rng, 0.15))
			set("runner_on_third", chance(rng, 0.08))
			set("pitch_count_game", float64(1+rng.Intn(110)))
			set("pitch_count_at_bat", float64(1+rng.Intn(8)))

			set("pitcher_age", prof.age)
			set("pitcher_mlb_tenure", prof.tenure)
			set("pitcher_height", prof.height)
			set("pitcher_weight", prof.weight)
			set("pitcher_bats", prof.bats)
			set("pitcher_throws", prof.throws)
			bio := batterBio[b]
			set("batter_age", bio.age)
			set("batter_mlb_tenure", bio.tenure)
			set("batter_height", bio.height)
			set("batter_weight", bio.weight)
			set("batter_bats", bio.bats)
			set("batter_throws", bio.throws)

			speed := prof.speed + rng.NormFloat64()*1.5
			set("start_speed", speed)
			set("end_speed", speed-8+rng.NormFloat64())
			set("strike_zone_top", 3.3+rng.NormFloat64()*0.1)
			set("strike_zone_bottom", 1.5+rng.NormFloat64()*0.1)
			set("delta_x", rng.NormFloat64()*5)
			set("delta_z", rng.NormFloat64()*5)
			set("plate_x", rng.NormFloat64()*0.8)
			set("plate_z", 2.4+rng.NormFloat64()*0.7)
			set("start_x", rng.NormFloat64()*2)
			set("start_y", 50)
			set("start_z", 5.8+rng.NormFloat64()*0.3)
			set("velocity_x", rng.NormFloat64()*5)
			set("velocity_y", prof.velocityY+rng.NormFloat64()*4)
			set("velocity_z", -4+rng.NormFloat64()*3)
			set("accel_x", prof.accelX+rng.NormFloat64()*3)
			set("accel_y", 25+rng.NormFloat64()*3)
			set("accel_z", prof.accelZ+rng.NormFloat64()*3)
			set("break_y", 23.8+rng.NormFloat64()*0.2)
			set("break_angle", rng.NormFloat64()*25)
			set("break_length", 4+rng.NormFloat64()*2)
			set("spin_direction", rng.Float64()*360)
			set("spin_rate", 1800+rng.NormFloat64()*400)

			data.Features = append(data.Features, row)
			data.Outcomes = append(data.Outcomes, sampleOutcome(rng, balls, strikes))
			data.PitcherIDs = append(data.PitcherIDs, p+1)
			data.BatterIDs = append(data.BatterIDs, b+1)
		}
	}
	return data
}

func handedness(rng *rand.Rand) float64 {
	if rng.Float64() < 0.7 {
		return 1
	}
	return -1
}

func chance(rng *rand.Rand, p float64) float64 {
	if rng.Float64() < p {
		return 1
	}
	return 0
}

// sampleOutcome draws a pitch outcome with count-dependent probabilities:
// pitchers throw more balls when ahead and batters protect with two strikes.
func sampleOutcome(rng *rand.Rand, balls, strikes int) int {
	ballP := 0.30 + 0.03*float64(strikes) - 0.02*float64(balls)
	calledP := 0.18 - 0.04*float64(strikes)
	swingingP := 0.09 + 0.02*float64(strikes)
	foulP := 0.18 + 0.03*float64(strikes)

	r := rng.Float64()
	switch {
	case r < ballP:
		return dataset.OutcomeBall
	case r < ballP+calledP:
		return dataset.OutcomeCalledStrike
	case r < ballP+calledP+swingingP:
		return dataset.OutcomeSwingingStrike
	case r < ballP+calledP+swingingP+foulP:
		return dataset.OutcomeFoul
	default:
		return dataset.OutcomeInPlay
	}
}
