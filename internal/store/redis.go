package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stackpot/session-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and refresh or invalidate the
// cache; reads check Redis first then fall back to the primary. The cache
// covers the hot paths: a user's current session (polled by presentation
// layers) and per-session stake lists.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh/invalidate cache) ---

func (s *CachedStore) SaveCurrent(ctx context.Context, sess *model.LiveSession) error {
	if err := s.primary.SaveCurrent(ctx, sess); err != nil {
		return err
	}
	s.cacheCurrent(ctx, sess)
	return nil
}

func (s *CachedStore) ClearCurrent(ctx context.Context, userID string) error {
	if err := s.primary.ClearCurrent(ctx, userID); err != nil {
		return err
	}
	s.rdb.Del(ctx, currentKey(userID))
	return nil
}

func (s *CachedStore) SaveStake(ctx context.Context, stake *model.Stake) error {
	if err := s.primary.SaveStake(ctx, stake); err != nil {
		return err
	}
	// Invalidate the session's stake list; next read re-populates.
	s.rdb.Del(ctx, stakesKey(stake.SessionID))
	return nil
}

func (s *CachedStore) UpdateStakeStatus(ctx context.Context, stakeID string, status model.StakeStatus) error {
	if err := s.primary.UpdateStakeStatus(ctx, stakeID, status); err != nil {
		return err
	}
	// The stake's session is unknown here; stake lists expire via TTL.
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) LoadCurrent(ctx context.Context, userID string) (*model.LiveSession, error) {
	data, err := s.rdb.Get(ctx, currentKey(userID)).Bytes()
	if err == nil {
		var sess model.LiveSession
		if json.Unmarshal(data, &sess) == nil {
			return &sess, nil
		}
	}

	sess, err := s.primary.LoadCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.cacheCurrent(ctx, sess)
	return sess, nil
}

func (s *CachedStore) ListStakes(ctx context.Context, sessionID string) ([]model.Stake, error) {
	data, err := s.rdb.Get(ctx, stakesKey(sessionID)).Bytes()
	if err == nil {
		var stakes []model.Stake
		if json.Unmarshal(data, &stakes) == nil {
			return stakes, nil
		}
	}

	stakes, err := s.primary.ListStakes(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(stakes); err == nil {
		s.rdb.Set(ctx, stakesKey(sessionID), data, s.ttl)
	}
	return stakes, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) PutParked(ctx context.Context, p *model.ParkedSession) error {
	return s.primary.PutParked(ctx, p)
}

func (s *CachedStore) ListParked(ctx context.Context, userID string) ([]model.ParkedSession, error) {
	return s.primary.ListParked(ctx, userID)
}

func (s *CachedStore) RemoveParked(ctx context.Context, key string) error {
	return s.primary.RemoveParked(ctx, key)
}

func (s *CachedStore) SaveFinished(ctx context.Context, f *model.FinishedSession) error {
	return s.primary.SaveFinished(ctx, f)
}

// --- Cache helpers ---

func (s *CachedStore) cacheCurrent(ctx context.Context, sess *model.LiveSession) {
	if data, err := json.Marshal(sess); err == nil {
		s.rdb.Set(ctx, currentKey(sess.UserID), data, s.ttl)
	}
}

func currentKey(userID string) string   { return fmt.Sprintf("current:%s", userID) }
func stakesKey(sessionID string) string { return fmt.Sprintf("stakes:%s", sessionID) }
