package gameday

import (
	"testing"

	"pitchmodel/internal/dataset"
)

func trackedPitch(outcome int, des string) Pitch {
	return Pitch{
		Description: des,
		Outcome:     outcome,
		HasPitchFx:  true,
		Fx:          PitchFx{StartSpeed: 90},
	}
}

func TestBuilder(t *testing.T) {
	players := map[string]PlayerInfo{
		"Feldman": {Age: 26, Height: 78, Weight: 210, Bats: "Right", Throws: "Right"},
		"Dye":     {Age: 35, Height: 76, Weight: 245, Bats: "Right", Throws: "Right"},
	}
	b := NewBuilder(players)

	game := &Game{AtBats: []AtBat{
		{
			Inning: 1, Outs: 2, AwayScore: 0, HomeScore: 3,
			Runners: [3]bool{true, false, false},
			Pitcher: "Feldman", Batter: "Dye",
			Pitches: []Pitch{
				trackedPitch(dataset.OutcomeBall, "Ball"),
				trackedPitch(dataset.OutcomeCalledStrike, "Called Strike"),
				{Description: "Intent Ball", Outcome: dataset.OutcomeBall, Intentional: true, HasPitchFx: true},
				trackedPitch(dataset.OutcomeInPlay, "In play, out(s)"),
			},
		},
		{
			Inning: 2, Pitcher: "Feldman", Batter: "Kinsler",
			Pitches: []Pitch{
				trackedPitch(dataset.OutcomeFoul, "Foul"),
			},
		},
	}}
	b.AddGame(game)
	data := b.Build()

	if err := data.Validate(); err != nil {
		t.Fatalf("built dataset invalid: %v", err)
	}
	// The intentional ball is skipped.
	if data.Len() != 4 {
		t.Fatalf("got %d rows, want 4", data.Len())
	}

	inningIdx, _ := dataset.ColumnIndex("inning")
	ballsIdx, _ := dataset.ColumnIndex("balls")
	strikesIdx, _ := dataset.ColumnIndex("strikes")
	runnerIdx, _ := dataset.ColumnIndex("runner_on_first")
	gameCountIdx, _ := dataset.ColumnIndex("pitch_count_game")
	abCountIdx, _ := dataset.ColumnIndex("pitch_count_at_bat")
	heightIdx, _ := dataset.ColumnIndex("pitcher_height")
	batterBatsIdx, _ := dataset.ColumnIndex("batter_bats")
	speedIdx, _ := dataset.ColumnIndex("start_speed")

	first := data.Features[0]
	if first[inningIdx] != 1 || first[runnerIdx] != 1 {
		t.Error("wrong game state columns")
	}
	if first[ballsIdx] != 0 || first[strikesIdx] != 0 {
		t.Error("first pitch should start from an 0-0 count")
	}
	if first[heightIdx] != 78 || first[batterBatsIdx] != 1 {
		t.Error("wrong biographical columns")
	}
	if first[speedIdx] != 90 {
		t.Error("wrong fx columns")
	}

	// Second pitch of the at bat sees the 1-0 count.
	second := data.Features[1]
	if second[ballsIdx] != 1 || second[strikesIdx] != 0 {
		t.Errorf("count %v-%v, want 1-0", second[ballsIdx], second[strikesIdx])
	}

	// The skipped intentional ball still advances the count, so the in-play
	// pitch sees 2-1 and is the third tracked pitch of the game.
	third := data.Features[2]
	if third[ballsIdx] != 2 || third[strikesIdx] != 1 {
		t.Errorf("count %v-%v, want 2-1", third[ballsIdx], third[strikesIdx])
	}
	if third[gameCountIdx] != 3 || third[abCountIdx] != 3 {
		t.Errorf("pitch counts %v/%v, want 3/3", third[gameCountIdx], third[abCountIdx])
	}

	// New at bat resets the count and the at-bat pitch counter, while the
	// pitcher's game count keeps climbing.
	fourth := data.Features[3]
	if fourth[ballsIdx] != 0 || fourth[strikesIdx] != 0 {
		t.Error("count should reset for a new at bat")
	}
	if fourth[gameCountIdx] != 4 || fourth[abCountIdx] != 1 {
		t.Errorf("pitch counts %v/%v, want 4/1", fourth[gameCountIdx], fourth[abCountIdx])
	}

	// Index 0 is reserved; Kinsler has no bio entry but still gets an id.
	if data.Pitchers[0] != "No Pitcher" || data.Batters[0] != "No Batter" {
		t.Error("reserved player slots missing")
	}
	if len(data.Batters) != 3 {
		t.Errorf("batter list %v", data.Batters)
	}
	ageIdx, _ := dataset.ColumnIndex("batter_age")
	if fourth[ageIdx] != 0 {
		t.Error("unknown batter should have zero bio columns")
	}
}

func TestBuilderSkipsUntrackedPitches(t *testing.T) {
	b := NewBuilder(nil)
	b.AddGame(&Game{AtBats: []AtBat{{
		Pitcher: "Someone", Batter: "Else",
		Pitches: []Pitch{
			{Description: "Swinging Strike", Outcome: dataset.OutcomeSwingingStrike},
		},
	}}})
	data := b.Build()
	if data.Len() != 0 {
		t.Fatalf("untracked pitch was kept: %d rows", data.Len())
	}
}

func TestAdvanceCountCaps(t *testing.T) {
	b := NewBuilder(nil)
	balls, strikes := 3, 2
	b.advanceCount(&balls, &strikes, dataset.OutcomeBall)
	b.advanceCount(&balls, &strikes, dataset.OutcomeFoul)
	if balls != 3 || strikes != 2 {
		t.Errorf("count %d-%d, want capped at 3-2", balls, strikes)
	}
}
