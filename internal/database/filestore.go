package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// fileStore implements Store as a single JSON document on disk. It keeps
// exactly one record per deployment regardless of chat id, matching the
// original single-user behavior. Last write wins; there is no locking
// against concurrent processes.
type fileStore struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex // serializes writes within this process
}

// NewFileStore creates a Store backed by a single JSON file at path.
func NewFileStore(path string, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &fileStore{
		path:   path,
		logger: logger.With("component", "profile_store", "driver", "file"),
	}
}

func (s *fileStore) GetProfile(ctx context.Context, chatID int64) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read profile file %q: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		s.logger.WarnContext(ctx, "Profile file is not valid JSON", "path", s.path, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProfileCorrupt, err)
	}

	// The slot is shared; tag the record with the requesting chat so the
	// rest of the pipeline is uniform across drivers.
	profile.ChatID = chatID
	return &profile, nil
}

func (s *fileStore) SaveProfile(ctx context.Context, profile *Profile) error {
	if profile == nil {
		return fmt.Errorf("cannot save nil profile")
	}
	if profile.PreferredLanguage == "" {
		return fmt.Errorf("profile must have a preferred language")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	profile.UpdatedAt = now
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	// Write to a temp file and rename so a crash mid-write never leaves a
	// truncated record behind.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write profile file %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace profile file %q: %w", s.path, err)
	}

	s.logger.DebugContext(ctx, "Profile saved", "path", s.path)
	return nil
}

func (s *fileStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("profile file %q not accessible: %w", s.path, err)
	}
	return nil
}

func (s *fileStore) RunMaintenance(ctx context.Context) error {
	return nil
}

func (s *fileStore) Close() error {
	return nil
}
