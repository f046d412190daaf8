package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/stackpot/session-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	current  map[string]*model.LiveSession   // userID → session
	parked   map[string]*model.ParkedSession // key → entry
	stakes   map[string]model.Stake          // stakeID → stake
	finished map[string]*model.FinishedSession
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		current:  make(map[string]*model.LiveSession),
		parked:   make(map[string]*model.ParkedSession),
		stakes:   make(map[string]model.Stake),
		finished: make(map[string]*model.FinishedSession),
	}
}

func (s *MemoryStore) SaveCurrent(_ context.Context, sess *model.LiveSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current[sess.UserID] = sess.Clone()
	return nil
}

func (s *MemoryStore) LoadCurrent(_ context.Context, userID string) (*model.LiveSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.current[userID]
	if !ok {
		return nil, fmt.Errorf("current session for user %s: %w", userID, ErrNotFound)
	}
	return sess.Clone(), nil
}

func (s *MemoryStore) ClearCurrent(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.current, userID)
	return nil
}

func (s *MemoryStore) PutParked(_ context.Context, p *model.ParkedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	cp.Session = p.Session.Clone()
	s.parked[p.Key] = &cp
	return nil
}

func (s *MemoryStore) ListParked(_ context.Context, userID string) ([]model.ParkedSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.ParkedSession
	for _, p := range s.parked {
		if p.UserID != userID {
			continue
		}
		cp := *p
		cp.Session = p.Session.Clone()
		result = append(result, cp)
	}
	return result, nil
}

func (s *MemoryStore) RemoveParked(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.parked, key)
	return nil
}

func (s *MemoryStore) SaveStake(_ context.Context, stake *model.Stake) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stakes[stake.ID] = *stake
	return nil
}

func (s *MemoryStore) ListStakes(_ context.Context, sessionID string) ([]model.Stake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Stake
	for _, st := range s.stakes {
		if st.SessionID == sessionID {
			result = append(result, st)
		}
	}
	return result, nil
}

func (s *MemoryStore) UpdateStakeStatus(_ context.Context, stakeID string, status model.StakeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stakes[stakeID]
	if !ok {
		return fmt.Errorf("stake %s: %w", stakeID, ErrNotFound)
	}
	st.Status = status
	s.stakes[stakeID] = st
	return nil
}

func (s *MemoryStore) SaveFinished(_ context.Context, f *model.FinishedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *f
	s.finished[f.ID] = &cp
	return nil
}

// GetFinished returns an archived session by ID. Test helper, not part of
// the Store interface.
func (s *MemoryStore) GetFinished(id string) (*model.FinishedSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.finished[id]
	if !ok {
		return nil, false
	}
	cp := *f
	return &cp, true
}
