// Package storage provides persistent storage for the pitch modeling
// pipeline. It uses BoltDB as the underlying storage engine to store
// assembled datasets, per-pitcher density renders and quantile profiles,
// training fit logs and the model version registry.
//
// Renders and profiles are keyed by pitcher name within a named set, so
// several render configurations can coexist in one database file.
package storage

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"pitchmodel/internal/dataset"
	"pitchmodel/internal/density"
	"pitchmodel/internal/outcome"
)

const (
	datasetsBucket   = "datasets"
	rendersBucket    = "renders"
	compressedBucket = "compressed_renders"
	quantilesBucket  = "quantiles"
	fitLogsBucket    = "fit_logs"
	versionsBucket   = "model_versions"
)

// ErrNotFound is returned when a requested key is absent.
var ErrNotFound = fmt.Errorf("not found")

// Store provides persistent storage for pipeline artifacts.
type Store struct {
	db *bbolt.DB
}

// New opens (creating if needed) the pipeline database under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "pitchmodel.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{
			datasetsBucket, rendersBucket, compressedBucket,
			quantilesBucket, fitLogsBucket, versionsBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) putJSON(bucket, key string, v any) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s/%s: %w", bucket, key, err)
		}
		return b.Put([]byte(key), data)
	})
}

func (s *Store) getJSON(bucket, key string, v any) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
		}
		return json.Unmarshal(data, v)
	})
}

func (s *Store) putGob(bucket, key string, v any) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(v); err != nil {
			return fmt.Errorf("encode %s/%s: %w", bucket, key, err)
		}
		return b.Put([]byte(key), buf.Bytes())
	})
}

func (s *Store) getGob(bucket, key string, v any) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
		}
		return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
	})
}

// SaveDataset stores a dataset snapshot under the given name. Datasets are
// gob encoded: feature rows carry NaN for PitchFx measurements absent from
// the source files, which encoding/json cannot represent.
func (s *Store) SaveDataset(name string, data *dataset.PitchData) error {
	return s.putGob(datasetsBucket, name, data)
}

// LoadDataset retrieves a dataset snapshot by name.
func (s *Store) LoadDataset(name string) (*dataset.PitchData, error) {
	var data dataset.PitchData
	if err := s.getGob(datasetsBucket, name, &data); err != nil {
		return nil, err
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	return &data, nil
}

// SaveRenders stores per-pitcher voxel renders under a set name, one record
// per pitcher, keyed "set/pitcher".
func (s *Store) SaveRenders(set string, renders map[string]*density.Grid) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(rendersBucket))
		for name, grid := range renders {
			data, err := json.Marshal(grid)
			if err != nil {
				return fmt.Errorf("marshal render %s: %w", name, err)
			}
			if err := b.Put([]byte(set+"/"+name), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadRenders retrieves every render in a set, keyed by pitcher name.
func (s *Store) LoadRenders(set string) (map[string]*density.Grid, error) {
	renders := make(map[string]*density.Grid)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(rendersBucket)).Cursor()
		prefix := []byte(set + "/")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var grid density.Grid
			if err := json.Unmarshal(v, &grid); err != nil {
				return fmt.Errorf("render %s: %w", k, err)
			}
			renders[string(k[len(prefix):])] = &grid
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(renders) == 0 {
		return nil, fmt.Errorf("render set %s: %w", set, ErrNotFound)
	}
	return renders, nil
}

// SaveCompressed stores a compressed render block under a set name.
func (s *Store) SaveCompressed(set string, c *density.Compressed) error {
	return s.putJSON(compressedBucket, set, c)
}

// LoadCompressed retrieves a compressed render block.
func (s *Store) LoadCompressed(set string) (*density.Compressed, error) {
	var c density.Compressed
	if err := s.getJSON(compressedBucket, set, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveQuantiles stores per-pitcher quantile profiles under a set name.
func (s *Store) SaveQuantiles(set string, profiles map[string][]float64) error {
	return s.putJSON(quantilesBucket, set, profiles)
}

// LoadQuantiles retrieves per-pitcher quantile profiles.
func (s *Store) LoadQuantiles(set string) (map[string][]float64, error) {
	var profiles map[string][]float64
	if err := s.getJSON(quantilesBucket, set, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// SaveFitLog stores the fit log of a named training run.
func (s *Store) SaveFitLog(run string, fitLog *outcome.FitLog) error {
	return s.putJSON(fitLogsBucket, run, fitLog)
}

// LoadFitLog retrieves the fit log of a named training run.
func (s *Store) LoadFitLog(run string) (*outcome.FitLog, error) {
	var fitLog outcome.FitLog
	if err := s.getJSON(fitLogsBucket, run, &fitLog); err != nil {
		return nil, err
	}
	return &fitLog, nil
}
