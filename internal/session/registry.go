package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stackpot/session-engine/internal/model"
)

// Registry holds sessions parked awaiting a scheduled next-day resumption,
// keyed by "{sessionID}:{day}". It is independent of the single
// current-session slot: a user has zero or one current session but any
// number of parked ones awaiting different dates.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*model.ParkedSession
}

// NewRegistry creates an empty parked-session registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*model.ParkedSession)}
}

// ParkedKey builds the registry key for a session parked on a given day.
func ParkedKey(sessionID string, day int) string {
	return fmt.Sprintf("%s:%d", sessionID, day)
}

// Put stores an entry under its key, replacing any previous entry.
func (r *Registry) Put(p *model.ParkedSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *p
	cp.Session = p.Session.Clone()
	r.entries[p.Key] = &cp
}

// Get returns the entry for key, or false if absent.
func (r *Registry) Get(key string) (*model.ParkedSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	cp := *p
	cp.Session = p.Session.Clone()
	return &cp, true
}

// Remove deletes the entry for key. Removing an absent key is a no-op.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, key)
}

// List returns summaries of a user's parked sessions sorted by scheduled
// date ascending. Entries whose date has passed are flagged overdue but
// never auto-discarded — discard and restore stay explicit user actions.
func (r *Registry) List(userID string, now time.Time) []model.ParkedSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]model.ParkedSummary, 0)
	for _, p := range r.entries {
		if p.UserID != userID {
			continue
		}
		summaries = append(summaries, model.ParkedSummary{
			Key:           p.Key,
			DisplayName:   p.Session.DisplayName(),
			ScheduledDate: p.ScheduledDate,
			CurrentDay:    p.Session.CurrentDay,
			Overdue:       p.ScheduledDate.Before(now),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ScheduledDate.Before(summaries[j].ScheduledDate)
	})
	return summaries
}

// Len returns the number of parked entries across all users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}
