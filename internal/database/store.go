// Package database provides profile persistence for FinTalk. The Store
// interface has two drivers: a SQLite store keyed by chat id (the
// production path) and a single-slot JSON file store matching the original
// single-user deployment.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrProfileCorrupt indicates the persisted profile record could not be
// parsed. Callers recover by falling back to a default profile, surfacing
// the error as a warning rather than failing the operation.
var ErrProfileCorrupt = errors.New("persisted profile is corrupt")

// Store defines the interface for profile persistence. Methods accept
// context.Context for cancellation and timeouts. Write failures are always
// returned to the caller, never swallowed.
type Store interface {
	// GetProfile retrieves the profile for a chat. Returns nil, nil if no
	// record exists, and ErrProfileCorrupt if the record cannot be parsed.
	GetProfile(ctx context.Context, chatID int64) (*Profile, error)

	// SaveProfile overwrites the stored record for the profile's chat id
	// entirely; there is no partial update or merge.
	SaveProfile(ctx context.Context, profile *Profile) error

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error

	// RunMaintenance performs storage maintenance (VACUUM for SQLite,
	// no-op for the file driver).
	RunMaintenance(ctx context.Context) error

	Close() error
}

// sqlxStore implements Store on a SQLite database via sqlx, keyed by chat
// id so multiple chats get isolated profiles.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a SQLite-backed Store. It requires a connected sqlx.DB
// (see NewDB) and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "profile_store"),
	}
}

func (s *sqlxStore) GetProfile(ctx context.Context, chatID int64) (*Profile, error) {
	var profile Profile
	query := `SELECT * FROM profiles WHERE chat_id = ? LIMIT 1;`

	err := s.db.GetContext(ctx, &profile, query, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logger.ErrorContext(ctx, "Error fetching profile", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get profile for chat %d: %w", chatID, err)
	}
	return &profile, nil
}

func (s *sqlxStore) SaveProfile(ctx context.Context, profile *Profile) error {
	if profile == nil {
		return fmt.Errorf("cannot save nil profile")
	}
	if profile.ChatID == 0 {
		return fmt.Errorf("profile must have a non-zero chat_id")
	}
	if profile.PreferredLanguage == "" {
		return fmt.Errorf("profile must have a preferred language")
	}

	now := time.Now().UTC()
	profile.UpdatedAt = now
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}

	query := `
        INSERT INTO profiles (
            chat_id, full_name, age, occupation, employment_type, location,
            monthly_income, credit_score, monthly_expenses, monthly_emi,
            amount_outstanding, credit_dues, preferred_language,
            created_at, updated_at
        ) VALUES (
            :chat_id, :full_name, :age, :occupation, :employment_type, :location,
            :monthly_income, :credit_score, :monthly_expenses, :monthly_emi,
            :amount_outstanding, :credit_dues, :preferred_language,
            :created_at, :updated_at
        )
        ON CONFLICT(chat_id) DO UPDATE SET
            full_name = excluded.full_name,
            age = excluded.age,
            occupation = excluded.occupation,
            employment_type = excluded.employment_type,
            location = excluded.location,
            monthly_income = excluded.monthly_income,
            credit_score = excluded.credit_score,
            monthly_expenses = excluded.monthly_expenses,
            monthly_emi = excluded.monthly_emi,
            amount_outstanding = excluded.amount_outstanding,
            credit_dues = excluded.credit_dues,
            preferred_language = excluded.preferred_language,
            updated_at = excluded.updated_at;
    `

	if _, err := s.db.NamedExecContext(ctx, query, profile); err != nil {
		s.logger.ErrorContext(ctx, "Error saving profile", "chat_id", profile.ChatID, "error", err)
		return fmt.Errorf("failed to save profile for chat %d: %w", profile.ChatID, err)
	}

	s.logger.DebugContext(ctx, "Profile saved", "chat_id", profile.ChatID)
	return nil
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunMaintenance reclaims unused space. SQLite VACUUM cannot run inside a
// transaction, so it executes directly on the pool.
func (s *sqlxStore) RunMaintenance(ctx context.Context) error {
	start := time.Now()
	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		s.logger.ErrorContext(ctx, "VACUUM failed", "error", err)
		return fmt.Errorf("database maintenance failed: %w", err)
	}
	s.logger.InfoContext(ctx, "Database maintenance completed", "duration", time.Since(start))
	return nil
}

func (s *sqlxStore) Close() error {
	return s.db.Close()
}
