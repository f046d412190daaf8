// Package store defines the persistence gateway for the session engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/stackpot/session-engine/internal/model"
)

// ErrNotFound is returned when the requested record does not exist.
// Implementations wrap it with record-identifying context.
var ErrNotFound = errors.New("store: not found")

// Store is the durability gateway consumed by the lifecycle manager.
// In-memory session state is authoritative; writes here are retried by the
// caller if they fail, so implementations must be safe to re-issue.
type Store interface {
	// --- Current session slot (at most one per user) ---

	// SaveCurrent upserts the user's current live session.
	SaveCurrent(ctx context.Context, s *model.LiveSession) error

	// LoadCurrent retrieves the user's current session, or ErrNotFound.
	LoadCurrent(ctx context.Context, userID string) (*model.LiveSession, error)

	// ClearCurrent removes the user's current-session slot. Clearing an
	// empty slot is not an error.
	ClearCurrent(ctx context.Context, userID string) error

	// --- Parked multi-day sessions ---

	// PutParked upserts a parked-session entry under its key.
	PutParked(ctx context.Context, p *model.ParkedSession) error

	// ListParked returns all parked entries for a user.
	ListParked(ctx context.Context, userID string) ([]model.ParkedSession, error)

	// RemoveParked deletes a parked entry by key.
	RemoveParked(ctx context.Context, key string) error

	// --- Stake settlement records ---

	// SaveStake persists a settlement record.
	SaveStake(ctx context.Context, stake *model.Stake) error

	// ListStakes returns all stakes recorded for a session.
	ListStakes(ctx context.Context, sessionID string) ([]model.Stake, error)

	// UpdateStakeStatus flips the status of an existing stake.
	UpdateStakeStatus(ctx context.Context, stakeID string, status model.StakeStatus) error

	// --- Finished-session archive ---

	// SaveFinished upserts the archive record produced by ending a session.
	SaveFinished(ctx context.Context, f *model.FinishedSession) error
}
