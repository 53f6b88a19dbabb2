package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/dhth/agx/internal/config"
	"github.com/dhth/agx/internal/storage"
)

const localConfigKey = "config.local"

// LocalConfig is the project-local document persisted at .agx/config.local.json.
type LocalConfig struct {
	ApprovedCommands []CmdPattern `json:"approved_commands"`
}

// Store persists approved command patterns for one project. File-change
// approvals are never persisted.
type Store struct {
	storage *storage.Storage
}

// NewStore creates a store for the project rooted at projectDir.
func NewStore(projectDir string) *Store {
	return &Store{storage: storage.New(config.LocalConfigDir(projectDir))}
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string {
	return s.storage.Path([]string{localConfigKey})
}

// Load returns the persisted patterns. A missing file yields no patterns;
// malformed content is an error.
func (s *Store) Load(ctx context.Context) ([]CmdPattern, error) {
	var cfg LocalConfig
	if err := s.storage.Get(ctx, []string{localConfigKey}, &cfg); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []CmdPattern{}, nil
		}
		return nil, fmt.Errorf("couldn't load local config: %w", err)
	}

	for i, p := range cfg.ApprovedCommands {
		if p.Binary == "" {
			return nil, fmt.Errorf("couldn't load local config: approved command %d has no binary", i)
		}
	}
	if cfg.ApprovedCommands == nil {
		cfg.ApprovedCommands = []CmdPattern{}
	}
	return cfg.ApprovedCommands, nil
}

// Save replaces the persisted patterns.
func (s *Store) Save(ctx context.Context, patterns []CmdPattern) error {
	if patterns == nil {
		patterns = []CmdPattern{}
	}
	if err := s.storage.Put(ctx, []string{localConfigKey}, LocalConfig{ApprovedCommands: patterns}); err != nil {
		return fmt.Errorf("couldn't update local config: %w", err)
	}
	return nil
}

// Exists reports whether the local config file is present.
func (s *Store) Exists(ctx context.Context) bool {
	return s.storage.Exists(ctx, []string{localConfigKey})
}

// Reset removes the local config file. It reports whether there was one.
func (s *Store) Reset(ctx context.Context) (bool, error) {
	if !s.Exists(ctx) {
		return false, nil
	}
	if err := s.storage.Delete(ctx, []string{localConfigKey}); err != nil {
		return false, fmt.Errorf("couldn't remove local config: %w", err)
	}
	return true, nil
}
