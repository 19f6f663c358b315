package gameday

import (
	"github.com/rs/zerolog/log"

	"pitchmodel/internal/dataset"
)

// PlayerInfo carries the biographical columns of a pitcher or batter. Age
// and MLBTenure are in years as of the season being assembled.
type PlayerInfo struct {
	Name      string
	Age       float64
	MLBTenure float64
	Height    float64
	Weight    float64
	Bats      string // "Right", "Left" or "Both"
	Throws    string
}

// HandednessValue maps handedness onto the numeric coding used in the
// feature matrix. The choice of positive for right matches the number line.
func HandednessValue(h string) float64 {
	switch h {
	case "Right":
		return 1
	case "Left":
		return -1
	default:
		return 0
	}
}

// Builder assembles a PitchData from parsed games. Player ids are assigned
// in order of first appearance; index 0 is reserved for an unknown player.
type Builder struct {
	players map[string]PlayerInfo

	features   [][]float64
	outcomes   []int
	pitcherIDs []int
	batterIDs  []int
	pitchers   []string
	batters    []string
	pitcherIdx map[string]int
	batterIdx  map[string]int

	// Per-game pitcher state, reset by AddGame.
	pitchCountGame map[string]int
	skipped        int
}

// NewBuilder creates a builder with the given player biography table.
// Players missing from the table get zero-valued bio columns.
func NewBuilder(players map[string]PlayerInfo) *Builder {
	return &Builder{
		players:    players,
		pitchers:   []string{"No Pitcher"},
		batters:    []string{"No Batter"},
		pitcherIdx: map[string]int{"No Pitcher": 0},
		batterIdx:  map[string]int{"No Batter": 0},
	}
}

// AddGame appends every modelable pitch of a game: intentional balls and
// pitches without PitchFx tracking are skipped.
func (b *Builder) AddGame(game *Game) {
	b.pitchCountGame = make(map[string]int)

	for _, atBat := range game.AtBats {
		balls, strikes := 0, 0
		pitchCountAtBat := 0
		for _, pitch := range atBat.Pitches {
			if pitch.Intentional || !pitch.HasPitchFx {
				b.skipped++
				b.advanceCount(&balls, &strikes, pitch.Outcome)
				continue
			}
			b.pitchCountGame[atBat.Pitcher]++
			pitchCountAtBat++
			b.addPitch(atBat, pitch, balls, strikes, pitchCountAtBat)
			b.advanceCount(&balls, &strikes, pitch.Outcome)
		}
	}
}

// advanceCount updates the balls/strikes count after a pitch.
func (b *Builder) advanceCount(balls, strikes *int, outcome int) {
	switch outcome {
	case dataset.OutcomeBall:
		if *balls < 3 {
			*balls++
		}
	case dataset.OutcomeCalledStrike, dataset.OutcomeSwingingStrike:
		if *strikes < 2 {
			*strikes++
		}
	case dataset.OutcomeFoul:
		// A foul never produces strike three.
		if *strikes < 2 {
			*strikes++
		}
	}
}

func (b *Builder) addPitch(atBat AtBat, pitch Pitch, balls, strikes, pitchCountAtBat int) {
	pitcherInfo := b.players[atBat.Pitcher]
	batterInfo := b.players[atBat.Batter]

	row := make([]float64, 0, dataset.NumFeatures)
	row = append(row,
		float64(atBat.Inning), float64(atBat.Outs),
		float64(balls), float64(strikes),
		float64(atBat.AwayScore), float64(atBat.HomeScore),
		boolValue(atBat.Runners[0]), boolValue(atBat.Runners[1]), boolValue(atBat.Runners[2]),
		float64(b.pitchCountGame[atBat.Pitcher]), float64(pitchCountAtBat),
		// Pickoff throws are not tracked in the inning files.
		0, 0,
		pitcherInfo.Age, pitcherInfo.MLBTenure, pitcherInfo.Height, pitcherInfo.Weight,
		HandednessValue(pitcherInfo.Bats), HandednessValue(pitcherInfo.Throws),
		batterInfo.Age, batterInfo.MLBTenure, batterInfo.Height, batterInfo.Weight,
		HandednessValue(batterInfo.Bats), HandednessValue(batterInfo.Throws),
	)
	row = append(row, pitch.Fx.Values()...)

	b.features = append(b.features, row)
	b.outcomes = append(b.outcomes, pitch.Outcome)
	b.pitcherIDs = append(b.pitcherIDs, b.playerID(atBat.Pitcher, &b.pitchers, b.pitcherIdx))
	b.batterIDs = append(b.batterIDs, b.playerID(atBat.Batter, &b.batters, b.batterIdx))
}

func (b *Builder) playerID(name string, names *[]string, index map[string]int) int {
	if id, ok := index[name]; ok {
		return id
	}
	id := len(*names)
	*names = append(*names, name)
	index[name] = id
	return id
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// Build returns the assembled dataset.
func (b *Builder) Build() *dataset.PitchData {
	data := &dataset.PitchData{
		Features:   b.features,
		Outcomes:   b.outcomes,
		PitcherIDs: b.pitcherIDs,
		BatterIDs:  b.batterIDs,
		Pitchers:   b.pitchers,
		Batters:    b.batters,
	}
	log.Info().
		Int("pitches", data.Len()).
		Int("skipped", b.skipped).
		Int("pitchers", len(b.pitchers)-1).
		Int("batters", len(b.batters)-1).
		Msg("assembled pitch dataset")
	return data
}
