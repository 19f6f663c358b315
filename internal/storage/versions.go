package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

// ModelVersion records one trained checkpoint in the registry.
type ModelVersion struct {
	Version   string       `json:"version"`
	Variant   string       `json:"variant"`
	Path      string       `json:"path"`
	CreatedAt time.Time    `json:"created_at"`
	Metrics   ModelMetrics `json:"metrics"`
	IsActive  bool         `json:"is_active"`
}

// ModelMetrics summarizes a checkpoint's evaluation results.
type ModelMetrics struct {
	ValidationScore float64 `json:"validation_score"`
	TestScore       float64 `json:"test_score"`
	MeanLogLik      float64 `json:"mean_log_likelihood"`
	TrainingSteps   int     `json:"training_steps"`
	TrainingSamples int     `json:"training_samples"`
}

// AddVersion registers a checkpoint. The version string combines the
// creation timestamp with the variant so one run can register every variant.
func (s *Store) AddVersion(variant, path string, metrics ModelMetrics) (ModelVersion, error) {
	now := time.Now()
	version := ModelVersion{
		Version:   now.Format("20060102-150405") + "-" + variant,
		Variant:   variant,
		Path:      path,
		CreatedAt: now,
		Metrics:   metrics,
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(versionsBucket))
		data, err := json.Marshal(version)
		if err != nil {
			return fmt.Errorf("marshal version: %w", err)
		}
		return b.Put([]byte(version.Version), data)
	})
	return version, err
}

// ListVersions returns all registered versions, newest first.
func (s *Store) ListVersions() ([]ModelVersion, error) {
	var versions []ModelVersion
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(versionsBucket)).ForEach(func(_, v []byte) error {
			var mv ModelVersion
			if err := json.Unmarshal(v, &mv); err != nil {
				return err
			}
			versions = append(versions, mv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].CreatedAt.After(versions[j].CreatedAt)
	})
	return versions, nil
}

// ActivateVersion marks one version active and every other inactive.
func (s *Store) ActivateVersion(version string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(versionsBucket))

		// Collect first: the bucket must not be modified mid-iteration.
		all := make(map[string]ModelVersion)
		err := b.ForEach(func(k, v []byte) error {
			var mv ModelVersion
			if err := json.Unmarshal(v, &mv); err != nil {
				return err
			}
			all[string(k)] = mv
			return nil
		})
		if err != nil {
			return err
		}
		if _, ok := all[version]; !ok {
			return fmt.Errorf("version %s not found", version)
		}
		for k, mv := range all {
			mv.IsActive = k == version
			data, err := json.Marshal(mv)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(k), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// ActiveVersion returns the currently active version.
func (s *Store) ActiveVersion() (ModelVersion, error) {
	versions, err := s.ListVersions()
	if err != nil {
		return ModelVersion{}, err
	}
	for _, v := range versions {
		if v.IsActive {
			return v, nil
		}
	}
	return ModelVersion{}, fmt.Errorf("active version: %w", ErrNotFound)
}

// Rollback activates the version created immediately before the active one.
func (s *Store) Rollback() (ModelVersion, error) {
	versions, err := s.ListVersions()
	if err != nil {
		return ModelVersion{}, err
	}
	if len(versions) < 2 {
		return ModelVersion{}, fmt.Errorf("no previous version available for rollback")
	}
	currentIdx := -1
	for i, v := range versions {
		if v.IsActive {
			currentIdx = i
			break
		}
	}
	if currentIdx == -1 || currentIdx == len(versions)-1 {
		return ModelVersion{}, fmt.Errorf("no previous version available for rollback")
	}
	previous := versions[currentIdx+1]
	if err := s.ActivateVersion(previous.Version); err != nil {
		return ModelVersion{}, err
	}
	previous.IsActive = true
	return previous, nil
}
