package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"pitchmodel/internal/cfg"
	"pitchmodel/internal/gameday"
	"pitchmodel/internal/metrics"
	"pitchmodel/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		gamesFile   = flag.String("games", "", "File with one GameDay id per line (gid_YYYY_MM_DD_awaymlb_homemlb_N)")
		playersFile = flag.String("players", "", "JSON file of player biographical info keyed by name")
		datasetName = flag.String("dataset", "pitches", "Name to store the built dataset under")
		retrosheet  = flag.String("retrosheet", "", "Comma-separated seasons to fetch retrosheet event archives for")
		fetchOnly   = flag.Bool("fetch-only", false, "Download source files without building a dataset")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	setupLogging(*logLevel)

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if *gamesFile == "" && *retrosheet == "" {
		log.Fatal().Msg("nothing to do: pass -games and/or -retrosheet")
	}

	m := metrics.New()
	dl := gameday.NewDownloader(config.DataPath, config.HTTPTimeout, config.Seed)

	for _, year := range parseYears(*retrosheet) {
		if _, err := dl.RetrosheetSeason(year); err != nil {
			m.DownloadFailures.Inc()
			log.Error().Err(err).Int("year", year).Msg("retrosheet fetch failed")
			continue
		}
		m.DownloadsTotal.Inc()
	}

	if *gamesFile == "" {
		return
	}

	games, err := readGameIDs(*gamesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read games file")
	}
	log.Info().Int("games", len(games)).Msg("fetching gameday files")

	players, err := readPlayers(*playersFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read players file")
	}

	builder := gameday.NewBuilder(players)
	for _, gid := range games {
		path, err := dl.Pitches(gid)
		if err != nil {
			m.DownloadFailures.Inc()
			log.Error().Err(err).Str("game", gid.String()).Msg("fetch failed")
			continue
		}
		m.DownloadsTotal.Inc()

		if *fetchOnly {
			continue
		}
		game, err := gameday.ParseGameFile(path)
		if err != nil {
			log.Error().Err(err).Str("game", gid.String()).Msg("parse failed")
			continue
		}
		builder.AddGame(game)
	}

	if *fetchOnly {
		return
	}

	data := builder.Build()
	m.PitchesIngested.Add(float64(data.Len()))

	store, err := storage.New(config.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	if err := store.SaveDataset(*datasetName, data); err != nil {
		log.Fatal().Err(err).Msg("failed to save dataset")
	}
	log.Info().
		Str("dataset", *datasetName).
		Int("pitches", data.Len()).
		Msg("dataset stored")
}

func setupLogging(levelName string) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func readGameIDs(path string) ([]gameday.GameID, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var games []gameday.GameID
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		gid, err := gameday.ParseGameID(line)
		if err != nil {
			return nil, err
		}
		games = append(games, gid)
	}
	return games, scanner.Err()
}

func readPlayers(path string) (map[string]gameday.PlayerInfo, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	players := make(map[string]gameday.PlayerInfo)
	if err := json.Unmarshal(raw, &players); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return players, nil
}

func parseYears(s string) []int {
	var years []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var y int
		if _, err := fmt.Sscanf(part, "%d", &y); err != nil {
			log.Warn().Str("value", part).Msg("skipping unparseable year")
			continue
		}
		years = append(years, y)
	}
	return years
}
