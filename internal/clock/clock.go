// Package clock implements pure elapsed-time accounting for live sessions.
//
// Elapsed time is a function of persisted timestamps, never of a ticking
// background process: while a session is active the live delta is computed
// from the LastActiveAt reference point, and folding a pause moves that
// delta into ElapsedSeconds. This keeps the accounting correct even if the
// process was suspended for the entire pause interval.
package clock

import (
	"time"

	"github.com/stackpot/session-engine/internal/model"
)

// Elapsed returns the cumulative active seconds for s as of now.
// While the phase is Active: ElapsedSeconds + (now - LastActiveAt).
// In every other phase the frozen ElapsedSeconds is returned as-is.
func Elapsed(s *model.LiveSession, now time.Time) int64 {
	if s.Phase != model.PhaseActive || s.LastActiveAt == nil {
		return s.ElapsedSeconds
	}
	return s.ElapsedSeconds + liveDelta(*s.LastActiveAt, now)
}

// Fold moves the live delta into ElapsedSeconds and clears the running
// reference point. Called on pause, park, and end. Folding a session that
// is not accumulating (no reference point) is a no-op, so repeated folds
// are safe.
func Fold(s *model.LiveSession, now time.Time) {
	if s.LastActiveAt == nil {
		return
	}
	s.ElapsedSeconds += liveDelta(*s.LastActiveAt, now)
	s.LastActiveAt = nil
}

// Activate resets the running reference point without touching
// ElapsedSeconds. Called on start, resume, and restore.
func Activate(s *model.LiveSession, now time.Time) {
	t := now
	s.LastActiveAt = &t
}

// liveDelta clamps at zero so a wall-clock step backwards can never make
// elapsed time decrease.
func liveDelta(since, now time.Time) int64 {
	d := int64(now.Sub(since) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}
