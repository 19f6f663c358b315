// Package gameday acquires MLB GameDay PitchFx files and retrosheet player
// data and assembles them into the pipeline's pitch dataset.
package gameday

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	gamedayBase    = "http://gd2.mlb.com/components/game/mlb"
	retrosheetBase = "http://www.retrosheet.org"
)

// Downloader fetches GameDay and retrosheet source files over HTTP. Requests
// are separated by a randomised lognormal delay so a season's worth of games
// doesn't hammer the source servers.
type Downloader struct {
	rest      *resty.Client
	destRoot  string
	delayMean float64 // log-seconds
	delaySD   float64
	rng       *rand.Rand
}

// NewDownloader creates a downloader writing under destRoot.
func NewDownloader(destRoot string, timeout time.Duration, seed int64) *Downloader {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(30 * time.Second)
	}
	return &Downloader{
		rest:      r,
		destRoot:  destRoot,
		delayMean: -0.2,
		delaySD:   0.2,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// GameID identifies one game in the GameDay URL scheme.
type GameID struct {
	Year, Month, Day string
	AwayTeam         string // three-letter code, lower case
	HomeTeam         string
	GameNumber       int
}

// String returns the GameDay id folder name, e.g.
// gid_2009_05_02_chamlb_texmlb_1.
func (g GameID) String() string {
	number := "1"
	if g.GameNumber > 0 {
		number = fmt.Sprintf("%d", g.GameNumber)
	}
	return fmt.Sprintf("gid_%s_%s_%s_%smlb_%smlb_%s",
		g.Year, g.Month, g.Day, g.AwayTeam, g.HomeTeam, number)
}

// ParseGameID parses a GameDay id folder name back into its parts.
func ParseGameID(gid string) (GameID, error) {
	parts := strings.Split(gid, "_")
	if len(parts) != 7 || parts[0] != "gid" {
		return GameID{}, fmt.Errorf("gameday: malformed game id %q", gid)
	}
	away, home := parts[4], parts[5]
	if !strings.HasSuffix(away, "mlb") || !strings.HasSuffix(home, "mlb") {
		return GameID{}, fmt.Errorf("gameday: malformed game id %q", gid)
	}
	number, err := strconv.Atoi(parts[6])
	if err != nil {
		return GameID{}, fmt.Errorf("gameday: malformed game id %q: %w", gid, err)
	}
	return GameID{
		Year:       parts[1],
		Month:      parts[2],
		Day:        parts[3],
		AwayTeam:   strings.TrimSuffix(away, "mlb"),
		HomeTeam:   strings.TrimSuffix(home, "mlb"),
		GameNumber: number,
	}, nil
}

func (g GameID) url() string {
	return fmt.Sprintf("%s/year_%s/month_%s/day_%s/%s",
		gamedayBase, g.Year, g.Month, g.Day, g.String())
}

// Pitches downloads a game's inning_all.xml into the destination tree and
// returns the local path. Existing files are not re-fetched.
func (d *Downloader) Pitches(game GameID) (string, error) {
	dest := filepath.Join(d.destRoot, "gameday", game.String(), "inning_all.xml")
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("gameday: create destination: %w", err)
	}

	d.delay()
	url := game.url() + "/inning/inning_all.xml"
	resp, err := d.rest.R().SetOutput(dest).Get(url)
	if err != nil {
		return "", fmt.Errorf("gameday: fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("gameday: fetch %s: status %d", url, resp.StatusCode())
	}
	log.Debug().Str("game", game.String()).Msg("downloaded gameday pitches")
	return dest, nil
}

// RetrosheetSeason downloads a season's retrosheet event archive.
func (d *Downloader) RetrosheetSeason(year int) (string, error) {
	name := fmt.Sprintf("%deve.zip", year)
	dest := filepath.Join(d.destRoot, "retrosheet", name)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("gameday: create destination: %w", err)
	}

	d.delay()
	url := fmt.Sprintf("%s/events/%s", retrosheetBase, name)
	resp, err := d.rest.R().SetOutput(dest).Get(url)
	if err != nil {
		return "", fmt.Errorf("gameday: fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("gameday: fetch %s: status %d", url, resp.StatusCode())
	}
	log.Info().Int("year", year).Msg("downloaded retrosheet season")
	return dest, nil
}

// delay sleeps for a lognormal interval between requests.
func (d *Downloader) delay() {
	seconds := math.Exp(d.rng.NormFloat64()*d.delaySD + d.delayMean)
	time.Sleep(time.Duration(seconds * float64(time.Second)))
}
