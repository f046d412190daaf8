package session_test

import (
	"testing"
	"time"

	"github.com/stackpot/session-engine/internal/model"
	"github.com/stackpot/session-engine/internal/session"
)

func parkedEntry(userID, sessionID string, day int, scheduled time.Time) *model.ParkedSession {
	date := scheduled
	return &model.ParkedSession{
		Key:    session.ParkedKey(sessionID, day),
		UserID: userID,
		Session: &model.LiveSession{
			ID:                   sessionID,
			UserID:               userID,
			Phase:                model.PhaseParkedNextDay,
			GameName:             "NLH",
			IsTournament:         true,
			TournamentName:       "Main Event",
			CurrentDay:           day,
			PausedForNextDay:     true,
			PausedForNextDayDate: &date,
		},
		ScheduledDate: scheduled,
	}
}

func TestRegistry_PutGetRemove(t *testing.T) {
	r := session.NewRegistry()
	now := time.Now()

	entry := parkedEntry("user1", "s1", 1, now.Add(24*time.Hour))
	r.Put(entry)

	got, ok := r.Get(entry.Key)
	if !ok {
		t.Fatal("expected entry present")
	}
	if got.Session.ID != "s1" {
		t.Errorf("unexpected session: %s", got.Session.ID)
	}

	// Returned entry is a copy; mutating it must not touch the registry.
	got.Session.CurrentDay = 99
	again, _ := r.Get(entry.Key)
	if again.Session.CurrentDay != 1 {
		t.Error("registry entry mutated through returned copy")
	}

	r.Remove(entry.Key)
	if _, ok := r.Get(entry.Key); ok {
		t.Error("expected entry removed")
	}
}

func TestRegistry_ListSortedByScheduledDate(t *testing.T) {
	r := session.NewRegistry()
	now := time.Now()

	r.Put(parkedEntry("user1", "late", 1, now.Add(72*time.Hour)))
	r.Put(parkedEntry("user1", "soon", 1, now.Add(12*time.Hour)))
	r.Put(parkedEntry("user1", "mid", 2, now.Add(48*time.Hour)))
	r.Put(parkedEntry("user2", "other", 1, now.Add(time.Hour)))

	list := r.List("user1", now)
	if len(list) != 3 {
		t.Fatalf("expected 3 entries for user1, got %d", len(list))
	}
	if list[0].Key != session.ParkedKey("soon", 1) ||
		list[1].Key != session.ParkedKey("mid", 2) ||
		list[2].Key != session.ParkedKey("late", 1) {
		t.Errorf("unexpected order: %v", []string{list[0].Key, list[1].Key, list[2].Key})
	}
}

func TestRegistry_OverdueFlaggedNotDiscarded(t *testing.T) {
	r := session.NewRegistry()
	now := time.Now()

	r.Put(parkedEntry("user1", "missed", 1, now.Add(-24*time.Hour)))
	r.Put(parkedEntry("user1", "upcoming", 1, now.Add(24*time.Hour)))

	list := r.List("user1", now)
	if len(list) != 2 {
		t.Fatalf("expected overdue entry retained, got %d entries", len(list))
	}
	if !list[0].Overdue {
		t.Error("expected past-dated entry flagged overdue")
	}
	if list[1].Overdue {
		t.Error("future entry must not be overdue")
	}
}

func TestRegistry_ListUsesTournamentDisplayName(t *testing.T) {
	r := session.NewRegistry()
	now := time.Now()

	r.Put(parkedEntry("user1", "s1", 1, now.Add(time.Hour)))

	list := r.List("user1", now)
	if list[0].DisplayName != "Main Event" {
		t.Errorf("expected tournament name as display name, got %s", list[0].DisplayName)
	}
}
