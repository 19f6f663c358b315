package gameday

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"pitchmodel/internal/dataset"
)

// PitchFx holds the tracked physical measurements of one pitch, in the
// dataset's column order. Missing measurements are NaN.
type PitchFx struct {
	StartSpeed, EndSpeed            float64
	StrikeZoneTop, StrikeZoneBottom float64
	DeltaX, DeltaZ                  float64
	PlateX, PlateZ                  float64
	StartX, StartY, StartZ          float64
	VelocityX, VelocityY, VelocityZ float64
	AccelX, AccelY, AccelZ          float64
	BreakY, BreakAngle, BreakLength float64
	SpinDirection, SpinRate         float64
}

// Values returns the measurements as the 22-column block the dataset stores.
func (p PitchFx) Values() []float64 {
	return []float64{
		p.StartSpeed, p.EndSpeed, p.StrikeZoneTop, p.StrikeZoneBottom,
		p.DeltaX, p.DeltaZ, p.PlateX, p.PlateZ,
		p.StartX, p.StartY, p.StartZ,
		p.VelocityX, p.VelocityY, p.VelocityZ,
		p.AccelX, p.AccelY, p.AccelZ,
		p.BreakY, p.BreakAngle, p.BreakLength,
		p.SpinDirection, p.SpinRate,
	}
}

// Pitch is one pitch parsed from a GameDay inning file.
type Pitch struct {
	Description string
	Outcome     int
	Intentional bool
	HasPitchFx  bool
	Fx          PitchFx
}

// AtBat is one plate appearance. Outs and the scores reflect the game state
// the at bat started from; runner flags cover first through third base.
type AtBat struct {
	Inning    int
	Outs      int
	AwayScore int
	HomeScore int
	Runners   [3]bool
	Pitcher   string
	Batter    string
	Pitches   []Pitch
}

// Game is the pitch-level content of one inning_all.xml file.
type Game struct {
	AtBats []AtBat
}

type inningFile struct {
	XMLName xml.Name     `xml:"game"`
	Innings []inningElem `xml:"inning"`
}

type inningElem struct {
	Num    int      `xml:"num,attr"`
	Top    halfElem `xml:"top"`
	Bottom halfElem `xml:"bottom"`
}

type halfElem struct {
	AtBats []atBatElem `xml:"atbat"`
}

type atBatElem struct {
	Pitcher  string       `xml:"pitcher,attr"`
	Batter   string       `xml:"batter,attr"`
	Outs     int          `xml:"o,attr"`
	AwayRuns int          `xml:"away_team_runs,attr"`
	HomeRuns int          `xml:"home_team_runs,attr"`
	Pitches  []pitchElem  `xml:"pitch"`
	Runners  []runnerElem `xml:"runner"`
}

type runnerElem struct {
	Start string `xml:"start,attr"`
}

// PitchFx attributes are parsed as strings so absent measurements are
// distinguishable from zero readings.
type pitchElem struct {
	Des        string `xml:"des,attr"`
	StartSpeed string `xml:"start_speed,attr"`
	EndSpeed   string `xml:"end_speed,attr"`
	SzTop      string `xml:"sz_top,attr"`
	SzBot      string `xml:"sz_bot,attr"`
	PfxX       string `xml:"pfx_x,attr"`
	PfxZ       string `xml:"pfx_z,attr"`
	Px         string `xml:"px,attr"`
	Pz         string `xml:"pz,attr"`
	X0         string `xml:"x0,attr"`
	Y0         string `xml:"y0,attr"`
	Z0         string `xml:"z0,attr"`
	Vx0        string `xml:"vx0,attr"`
	Vy0        string `xml:"vy0,attr"`
	Vz0        string `xml:"vz0,attr"`
	Ax         string `xml:"ax,attr"`
	Ay         string `xml:"ay,attr"`
	Az         string `xml:"az,attr"`
	BreakY     string `xml:"break_y,attr"`
	BreakAngle string `xml:"break_angle,attr"`
	BreakLen   string `xml:"break_length,attr"`
	SpinDir    string `xml:"spin_dir,attr"`
	SpinRate   string `xml:"spin_rate,attr"`
}

// ParseGameFile parses a downloaded inning_all.xml.
func ParseGameFile(path string) (*Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gameday: read %s: %w", path, err)
	}
	return ParseGame(data)
}

// ParseGame parses the contents of an inning_all.xml file.
func ParseGame(data []byte) (*Game, error) {
	var file inningFile
	if err := xml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("gameday: parse inning file: %w", err)
	}

	game := &Game{}
	for _, inning := range file.Innings {
		for _, half := range []halfElem{inning.Top, inning.Bottom} {
			for _, ab := range half.AtBats {
				atBat := AtBat{
					Inning:    inning.Num,
					Outs:      ab.Outs,
					AwayScore: ab.AwayRuns,
					HomeScore: ab.HomeRuns,
					Pitcher:   ab.Pitcher,
					Batter:    ab.Batter,
				}
				for _, r := range ab.Runners {
					switch r.Start {
					case "1B":
						atBat.Runners[0] = true
					case "2B":
						atBat.Runners[1] = true
					case "3B":
						atBat.Runners[2] = true
					}
				}
				for _, p := range ab.Pitches {
					atBat.Pitches = append(atBat.Pitches, parsePitch(p))
				}
				game.AtBats = append(game.AtBats, atBat)
			}
		}
	}
	return game, nil
}

func parsePitch(p pitchElem) Pitch {
	pitch := Pitch{
		Description: p.Des,
		Outcome:     classifyOutcome(p.Des),
		Intentional: strings.Contains(p.Des, "Intent"),
	}
	// A pitch with no start_speed has no tracking data at all.
	if p.StartSpeed != "" {
		pitch.HasPitchFx = true
		pitch.Fx = PitchFx{
			StartSpeed:       fxValue(p.StartSpeed),
			EndSpeed:         fxValue(p.EndSpeed),
			StrikeZoneTop:    fxValue(p.SzTop),
			StrikeZoneBottom: fxValue(p.SzBot),
			DeltaX:           fxValue(p.PfxX),
			DeltaZ:           fxValue(p.PfxZ),
			PlateX:           fxValue(p.Px),
			PlateZ:           fxValue(p.Pz),
			StartX:           fxValue(p.X0),
			StartY:           fxValue(p.Y0),
			StartZ:           fxValue(p.Z0),
			VelocityX:        fxValue(p.Vx0),
			VelocityY:        fxValue(p.Vy0),
			VelocityZ:        fxValue(p.Vz0),
			AccelX:           fxValue(p.Ax),
			AccelY:           fxValue(p.Ay),
			AccelZ:           fxValue(p.Az),
			BreakY:           fxValue(p.BreakY),
			BreakAngle:       fxValue(p.BreakAngle),
			BreakLength:      fxValue(p.BreakLen),
			SpinDirection:    fxValue(p.SpinDir),
			SpinRate:         fxValue(p.SpinRate),
		}
	}
	return pitch
}

func fxValue(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// classifyOutcome maps a GameDay pitch description onto the dataset's
// outcome coding. Anything that is neither a ball, strike nor foul went
// into play.
func classifyOutcome(des string) int {
	switch {
	case strings.HasPrefix(des, "Ball"), strings.Contains(des, "Hit By Pitch"),
		strings.Contains(des, "Intent Ball"), strings.HasPrefix(des, "Pitchout"):
		return dataset.OutcomeBall
	case strings.HasPrefix(des, "Called Strike"):
		return dataset.OutcomeCalledStrike
	case strings.HasPrefix(des, "Swinging Strike"), strings.Contains(des, "Missed Bunt"),
		strings.HasPrefix(des, "Foul Tip"), strings.HasPrefix(des, "Swinging Pitchout"):
		return dataset.OutcomeSwingingStrike
	case strings.HasPrefix(des, "Foul"):
		return dataset.OutcomeFoul
	default:
		return dataset.OutcomeInPlay
	}
}
