package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codyseavey/card-valuer/internal/metrics"
	"github.com/codyseavey/card-valuer/internal/models"
)

const checkpointFileName = "checkpoint.json"

var (
	ErrCheckpointNotFound  = errors.New("checkpoint not found")
	ErrCheckpointCorrupted = errors.New("checkpoint could not be decoded")
)

// CheckpointStore persists the run's result table so an interrupted run can
// resume without repeating finished cards
type CheckpointStore interface {
	Load() (*models.Checkpoint, error)
	Save(cp *models.Checkpoint) error
}

// FileCheckpointStore keeps the checkpoint as one JSON file
type FileCheckpointStore struct {
	path string
}

// NewFileCheckpointStore stores the checkpoint under dataDir
func NewFileCheckpointStore(dataDir string) *FileCheckpointStore {
	return &FileCheckpointStore{path: filepath.Join(dataDir, checkpointFileName)}
}

// Path returns the checkpoint file location
func (s *FileCheckpointStore) Path() string {
	return s.path
}

// Load reads the checkpoint. A missing file is ErrCheckpointNotFound.
func (s *FileCheckpointStore) Load() (*models.Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckpointCorrupted, err)
	}
	if cp.Results == nil {
		cp.Results = make(map[string]models.CardResult)
	}
	return &cp, nil
}

// Save replaces the checkpoint atomically. A crash mid-write leaves the
// previous checkpoint intact.
func (s *FileCheckpointStore) Save(cp *models.Checkpoint) error {
	if err := writeJSONAtomic(s.path, cp); err != nil {
		metrics.CheckpointWritesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	metrics.CheckpointWritesTotal.WithLabelValues("ok").Inc()
	return nil
}

// writeJSONAtomic writes v to a temp file in the target directory and renames
// it over path
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// readJSON decodes path into v. found is false when the file does not exist.
func readJSON(path string, v any) (found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}
