// Package state persists model snapshots written by the save command.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	SnapshotDirName = "models"
	SnapshotExt     = ".json"
)

// Snapshot is the saved form of a linear classifier.
type Snapshot struct {
	Name      string             `json:"name"`
	CreatedAt time.Time          `json:"created_at"`
	Epoch     int                `json:"epoch"`
	Classes   int                `json:"classes"`
	Features  int                `json:"features"`
	Weights   [][]float64        `json:"weights"`
	Bias      []float64          `json:"bias"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

func (s *Snapshot) Validate() error {
	if s.Classes <= 0 || s.Features <= 0 {
		return errors.Errorf("invalid shape %dx%d", s.Classes, s.Features)
	}
	if len(s.Weights) != s.Classes || len(s.Bias) != s.Classes {
		return errors.Errorf("expected %d weight rows and biases, got %d and %d", s.Classes, len(s.Weights), len(s.Bias))
	}
	for i, row := range s.Weights {
		if len(row) != s.Features {
			return errors.Errorf("weight row %d has %d values, expected %d", i, len(row), s.Features)
		}
	}
	return nil
}

// SnapshotPath resolves a user-supplied save name. Bare names land in
// dir/models; names with a directory are used as given. The extension is
// added when missing.
func SnapshotPath(dir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("empty snapshot name")
	}
	if filepath.Ext(name) == "" {
		name += SnapshotExt
	}
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		return filepath.Clean(name), nil
	}
	return filepath.Join(dir, SnapshotDirName, name), nil
}

func Load(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot")
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, errors.Wrap(err, "parse snapshot json")
	}
	if err := s.Validate(); err != nil {
		return nil, errors.Wrapf(err, "snapshot %s", path)
	}
	return &s, nil
}

// Save writes s under name and returns the path written.
func Save(dir, name string, s *Snapshot) (string, error) {
	if s == nil {
		return "", errors.New("nil snapshot")
	}
	if err := s.Validate(); err != nil {
		return "", err
	}
	path, err := SnapshotPath(dir, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(err, "mkdir snapshot dir")
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "marshal snapshot")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return "", errors.Wrap(err, "write snapshot")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", errors.Wrap(err, "rename snapshot")
	}
	return path, nil
}

// List returns the snapshot files under dir/models, sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dir, SnapshotDirName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "list snapshots")
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != SnapshotExt {
			continue
		}
		out = append(out, filepath.Join(dir, SnapshotDirName, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
