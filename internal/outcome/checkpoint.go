package outcome

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// Save writes the model weights, config, scaler and fit log as JSON.
func (m *Model) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("outcome: create checkpoint dir: %w", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("outcome: marshal checkpoint: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("outcome: write checkpoint: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads a checkpoint written by Save. The loaded model can predict and
// score immediately and resume training.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("outcome: read checkpoint %s: %w", path, err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("outcome: parse checkpoint %s: %w", path, err)
	}
	if err := m.Config.validate(); err != nil {
		return nil, fmt.Errorf("outcome: checkpoint %s: %w", path, err)
	}
	m.rng = rand.New(rand.NewSource(m.Config.Seed))
	return &m, nil
}
