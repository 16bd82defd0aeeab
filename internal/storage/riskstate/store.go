// Package riskstate persists the daily risk counters so restarts keep the loss
// accumulated so far and a latched emergency stop.
package riskstate

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/asterbot/internal/domain"
)

const fileName = "risk_state.json"

// Store persists domain.RiskState as a JSON file.
type Store struct {
	path string
}

// NewStore creates a store under dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create risk state dir")
	}

	return &Store{path: filepath.Join(dir, fileName)}, nil
}

// Load reads risk state from disk. It returns nil with no error when nothing was saved yet.
func (s *Store) Load() (*domain.RiskState, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "read risk state")
	}

	if len(payload) == 0 {
		return nil, nil
	}

	var state domain.RiskState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode risk state")
	}

	return &state, nil
}

// Save writes risk state to disk atomically via temp file.
func (s *Store) Save(state domain.RiskState) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode risk state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write risk state temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist risk state")
	}

	return nil
}
