// Package session drives the live-session lifecycle: one current session
// per user moved through a finite state machine, a registry of multi-day
// sessions parked for a scheduled next day, and settlement of attached
// stakes when a session ends.
//
// In-memory state is authoritative the moment a transition commits. Writes
// to the persistence gateway are attempted inline; a failed write never
// rolls back the transition — it is logged, counted, and queued so the
// caller can retry the durability step independently.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stackpot/session-engine/internal/clock"
	"github.com/stackpot/session-engine/internal/metrics"
	"github.com/stackpot/session-engine/internal/model"
	"github.com/stackpot/session-engine/internal/settle"
	"github.com/stackpot/session-engine/internal/staking"
	"github.com/stackpot/session-engine/internal/store"
)

// EndResult is what ending a session produces: the archive record and the
// stake settlements created from the attached configurations.
type EndResult struct {
	Finished *model.FinishedSession `json:"finished_session"`
	Stakes   []model.Stake          `json:"stakes"`
}

// pendingWrites tracks gateway writes that failed and await retry.
type pendingWrites struct {
	session      *model.LiveSession
	clearCurrent bool
	parked       map[string]*model.ParkedSession
	removeParked map[string]bool
	stakes       map[string]*model.Stake
	finished     *model.FinishedSession
}

func newPendingWrites() *pendingWrites {
	return &pendingWrites{
		parked:       make(map[string]*model.ParkedSession),
		removeParked: make(map[string]bool),
		stakes:       make(map[string]*model.Stake),
	}
}

func (p *pendingWrites) empty() bool {
	return p.session == nil && !p.clearCurrent && p.finished == nil &&
		len(p.parked) == 0 && len(p.removeParked) == 0 && len(p.stakes) == 0
}

// Manager owns the per-user current-session slots and the parked-session
// registry, and serializes all lifecycle commands under one mutex. Commands
// are bounded local computation; durability is asynchronous-intent.
type Manager struct {
	store store.Store
	hub   *Hub // optional, broadcasts transitions
	now   func() time.Time

	mu       sync.Mutex
	current  map[string]*model.LiveSession // userID → current session
	registry *Registry
	loaded   map[string]bool       // users hydrated from the store
	lastEnd  map[string]*EndResult // retained so a retried end stays idempotent
	pending  map[string]*pendingWrites
}

// NewManager creates a lifecycle manager. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewManager(st store.Store, hub *Hub) *Manager {
	return &Manager{
		store:    st,
		hub:      hub,
		now:      time.Now,
		current:  make(map[string]*model.LiveSession),
		registry: NewRegistry(),
		loaded:   make(map[string]bool),
		lastEnd:  make(map[string]*EndResult),
		pending:  make(map[string]*pendingWrites),
	}
}

// SetNowFunc overrides the time source. Used by tests to control elapsed
// accounting.
func (m *Manager) SetNowFunc(now func() time.Time) {
	m.now = now
}

// ensureUser lazily hydrates a user's current and parked sessions from the
// store on first touch, so state survives process restarts.
func (m *Manager) ensureUser(ctx context.Context, userID string) error {
	if m.loaded[userID] {
		return nil
	}

	sess, err := m.store.LoadCurrent(ctx, userID)
	switch {
	case err == nil:
		if !sess.Phase.Terminal() {
			m.current[userID] = sess
		}
	case errors.Is(err, store.ErrNotFound):
		// nothing durable; fresh slot
	default:
		return fmt.Errorf("hydrate user %s: %w", userID, err)
	}

	parked, err := m.store.ListParked(ctx, userID)
	if err != nil {
		return fmt.Errorf("hydrate parked for user %s: %w", userID, err)
	}
	for i := range parked {
		m.registry.Put(&parked[i])
	}

	m.loaded[userID] = true
	m.updateGauges()
	return nil
}

// Start begins a new session for the user. Rejected if a session is
// already in the current slot.
func (m *Manager) Start(ctx context.Context, userID, gameName, stakesLabel string,
	buyIn decimal.Decimal, isTournament bool, tournamentName string) (*model.LiveSession, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	if cur, ok := m.current[userID]; ok {
		metrics.TransitionRejections.Inc()
		return nil, stateErr("start", cur.Phase)
	}

	now := m.now()
	sess := &model.LiveSession{
		ID:             uuid.New().String(),
		UserID:         userID,
		Phase:          model.PhaseActive,
		StartTime:      now,
		GameName:       gameName,
		StakesLabel:    stakesLabel,
		BuyIn:          buyIn,
		IsTournament:   isTournament,
		TournamentName: tournamentName,
		CurrentDay:     1,
	}
	clock.Activate(sess, now)

	m.current[userID] = sess
	delete(m.lastEnd, userID)
	m.updateGauges()
	metrics.CommandsTotal.WithLabelValues("start").Inc()

	m.persistCurrent(ctx, sess)
	m.publish("session_started", sess)

	slog.Info("session started",
		"session_id", sess.ID,
		"user", userID,
		"game", gameName,
		"buy_in", buyIn.String(),
		"tournament", isTournament,
	)
	return sess.Clone(), nil
}

// Pause freezes elapsed-time accumulation. Pausing an already-paused
// session is a no-op, not an error.
func (m *Manager) Pause(ctx context.Context, userID string) (*model.LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := m.slot(ctx, userID, "pause")
	if err != nil {
		return nil, err
	}

	switch cur.Phase {
	case model.PhasePaused:
		return cur.Clone(), nil
	case model.PhaseActive:
	default:
		metrics.TransitionRejections.Inc()
		return nil, stateErr("pause", cur.Phase)
	}

	now := m.now()
	clock.Fold(cur, now)
	cur.Phase = model.PhasePaused
	t := now
	cur.LastPausedAt = &t

	metrics.CommandsTotal.WithLabelValues("pause").Inc()
	m.persistCurrent(ctx, cur)
	m.publish("session_paused", cur)

	slog.Info("session paused", "session_id", cur.ID, "user", userID,
		"elapsed_seconds", cur.ElapsedSeconds)
	return cur.Clone(), nil
}

// Resume restarts elapsed-time accumulation. Resuming an already-active
// session is a no-op.
func (m *Manager) Resume(ctx context.Context, userID string) (*model.LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := m.slot(ctx, userID, "resume")
	if err != nil {
		return nil, err
	}

	switch cur.Phase {
	case model.PhaseActive:
		return cur.Clone(), nil
	case model.PhasePaused:
	default:
		metrics.TransitionRejections.Inc()
		return nil, stateErr("resume", cur.Phase)
	}

	clock.Activate(cur, m.now())
	cur.Phase = model.PhaseActive

	metrics.CommandsTotal.WithLabelValues("resume").Inc()
	m.persistCurrent(ctx, cur)
	m.publish("session_resumed", cur)
	return cur.Clone(), nil
}

// AddRebuy increases the session's cumulative buy-in. Allowed while the
// session is Active or Paused.
func (m *Manager) AddRebuy(ctx context.Context, userID string, amount decimal.Decimal) (*model.LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := m.slot(ctx, userID, "rebuy")
	if err != nil {
		return nil, err
	}
	if cur.Phase != model.PhaseActive && cur.Phase != model.PhasePaused {
		metrics.TransitionRejections.Inc()
		return nil, stateErr("rebuy", cur.Phase)
	}

	cur.BuyIn = cur.BuyIn.Add(amount)

	metrics.CommandsTotal.WithLabelValues("rebuy").Inc()
	m.persistCurrent(ctx, cur)

	slog.Info("rebuy added", "session_id", cur.ID, "user", userID,
		"amount", amount.String(), "total_buy_in", cur.BuyIn.String())
	return cur.Clone(), nil
}

// Park suspends a multi-day session until a scheduled next day. The session
// leaves the current slot and enters the registry under a generated key.
// Parking an already-parked session is rejected.
func (m *Manager) Park(ctx context.Context, userID string, scheduledDate time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := m.slot(ctx, userID, "park")
	if err != nil {
		return "", err
	}
	if cur.Phase != model.PhaseActive && cur.Phase != model.PhasePaused {
		metrics.TransitionRejections.Inc()
		return "", stateErr("park", cur.Phase)
	}

	now := m.now()
	clock.Fold(cur, now)
	cur.Phase = model.PhaseParkedNextDay
	cur.PausedForNextDay = true
	date := scheduledDate
	cur.PausedForNextDayDate = &date

	key := ParkedKey(cur.ID, cur.CurrentDay)
	entry := &model.ParkedSession{
		Key:           key,
		UserID:        userID,
		Session:       cur,
		ScheduledDate: scheduledDate,
	}
	m.registry.Put(entry)
	delete(m.current, userID)
	m.updateGauges()
	metrics.CommandsTotal.WithLabelValues("park").Inc()

	m.persistParked(ctx, entry)
	m.persistClearCurrent(ctx, userID)
	m.publish("session_parked", cur)

	slog.Info("session parked", "session_id", cur.ID, "user", userID,
		"key", key, "scheduled", scheduledDate)
	return key, nil
}

// Restore moves a parked session back into the current slot for its next
// day. The day counter increases by exactly one.
func (m *Manager) Restore(ctx context.Context, userID, key string) (*model.LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	p, ok := m.registry.Get(key)
	if !ok || p.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrParkedNotFound, key)
	}
	if cur, occupied := m.current[userID]; occupied {
		metrics.TransitionRejections.Inc()
		return nil, stateErr("restore", cur.Phase)
	}

	sess := p.Session
	sess.CurrentDay++
	sess.Phase = model.PhaseActive
	sess.PausedForNextDay = false
	sess.PausedForNextDayDate = nil
	clock.Activate(sess, m.now())

	m.registry.Remove(key)
	m.current[userID] = sess
	m.updateGauges()
	metrics.CommandsTotal.WithLabelValues("restore").Inc()

	m.persistCurrent(ctx, sess)
	m.persistRemoveParked(ctx, userID, key)
	m.publish("session_restored", sess)

	slog.Info("session restored", "session_id", sess.ID, "user", userID,
		"key", key, "day", sess.CurrentDay)
	return sess.Clone(), nil
}

// DiscardParked irreversibly removes a parked session from the registry.
func (m *Manager) DiscardParked(ctx context.Context, userID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureUser(ctx, userID); err != nil {
		return err
	}

	p, ok := m.registry.Get(key)
	if !ok || p.UserID != userID {
		return fmt.Errorf("%w: %s", ErrParkedNotFound, key)
	}

	p.Session.Phase = model.PhaseDiscarded
	m.registry.Remove(key)
	m.updateGauges()
	metrics.CommandsTotal.WithLabelValues("discard_parked").Inc()

	m.persistRemoveParked(ctx, userID, key)
	m.publish("session_discarded", p.Session)

	slog.Info("parked session discarded", "session_id", p.Session.ID,
		"user", userID, "key", key)
	return nil
}

// End completes the current session: elapsed time is folded and locked,
// attached stake configurations are settled into Stake records, and the
// session is archived. A retried end (after a failed durability step)
// returns the original result instead of recomputing settlements.
func (m *Manager) End(ctx context.Context, userID string, finalCashout decimal.Decimal,
	configs []staking.Configuration) (*EndResult, error) {

	// Validate before any mutation; no partial configuration proceeds.
	if err := staking.ValidateAll(configs); err != nil {
		metrics.ValidationRejections.Inc()
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	cur, ok := m.current[userID]
	if !ok {
		if res, ended := m.lastEnd[userID]; ended {
			m.retrySyncLocked(ctx, userID)
			return res, nil
		}
		return nil, ErrNoCurrentSession
	}
	if cur.Phase != model.PhaseActive && cur.Phase != model.PhasePaused {
		metrics.TransitionRejections.Inc()
		return nil, stateErr("end", cur.Phase)
	}

	now := m.now()
	clock.Fold(cur, now)
	cur.Phase = model.PhaseCompleted

	finished := &model.FinishedSession{
		ID:             cur.ID,
		UserID:         userID,
		GameName:       cur.GameName,
		StakesLabel:    cur.StakesLabel,
		BuyIn:          cur.BuyIn,
		Cashout:        finalCashout,
		ElapsedSeconds: cur.ElapsedSeconds,
		StartTime:      cur.StartTime,
		EndTime:        now,
		IsTournament:   cur.IsTournament,
		TournamentName: cur.TournamentName,
		Days:           cur.CurrentDay,
	}

	// Stake creation is idempotent by session ID: records already persisted
	// by a prior attempt are reused, never recomputed. The lookup must
	// succeed before any settlement runs — proceeding blind could mint a
	// second stake set.
	stakes, err := m.store.ListStakes(ctx, cur.ID)
	if err != nil {
		slog.Warn("stake lookup before settlement failed", "session_id", cur.ID, "err", err)
		return nil, fmt.Errorf("stake lookup for session %s: %w", cur.ID, err)
	}
	if len(stakes) == 0 {
		stakes, err = settle.Stakes(cur.ID, userID, cur.BuyIn, finalCashout, configs, now)
		if err != nil {
			return nil, err
		}
		for i := range stakes {
			m.persistStake(ctx, userID, &stakes[i])
		}
		metrics.StakesCreated.Add(float64(len(stakes)))
	}

	res := &EndResult{Finished: finished, Stakes: stakes}
	m.lastEnd[userID] = res
	delete(m.current, userID)
	m.updateGauges()
	metrics.CommandsTotal.WithLabelValues("end").Inc()

	m.persistFinished(ctx, userID, finished)
	m.persistClearCurrent(ctx, userID)
	m.publish("session_completed", cur)

	slog.Info("session ended",
		"session_id", cur.ID,
		"user", userID,
		"buy_in", cur.BuyIn.String(),
		"cashout", finalCashout.String(),
		"elapsed_seconds", cur.ElapsedSeconds,
		"stakes", len(stakes),
	)
	return res, nil
}

// Current returns the user's current session and its live elapsed seconds.
func (m *Manager) Current(ctx context.Context, userID string) (*model.LiveSession, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := m.slot(ctx, userID, "")
	if err != nil {
		return nil, 0, err
	}
	return cur.Clone(), clock.Elapsed(cur, m.now()), nil
}

// ListParked returns the user's parked sessions sorted by scheduled date.
func (m *Manager) ListParked(ctx context.Context, userID string) ([]model.ParkedSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	return m.registry.List(userID, m.now()), nil
}

// Stakes returns the settlement records for a session.
func (m *Manager) Stakes(ctx context.Context, sessionID string) ([]model.Stake, error) {
	return m.store.ListStakes(ctx, sessionID)
}

// SettleStake marks a stake settled. Settling twice is a no-op — the
// transfer is never applied again.
func (m *Manager) SettleStake(ctx context.Context, stakeID string) error {
	metrics.CommandsTotal.WithLabelValues("settle_stake").Inc()
	return m.store.UpdateStakeStatus(ctx, stakeID, model.StakeStatusSettled)
}

// ClearUser tears down a user's in-memory state on sign-out: the current
// slot, the retained end result, and any queued writes. Queued writes are
// flushed first; sign-out is refused while durable records (parked
// sessions, stakes, archives) still cannot be written, since dropping the
// queue would lose them. Parked sessions stay durable and rehydrate on
// next sign-in.
func (m *Manager) ClearUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.retrySyncLocked(ctx, userID); err != nil {
		// Queued slot writes are superseded by the ClearCurrent below;
		// anything else still pending must not be dropped.
		if p, ok := m.pending[userID]; ok &&
			(p.finished != nil || len(p.stakes) > 0 ||
				len(p.parked) > 0 || len(p.removeParked) > 0) {
			return fmt.Errorf("clear user %s: unsynced writes remain: %w", userID, err)
		}
	}

	delete(m.current, userID)
	delete(m.lastEnd, userID)
	delete(m.pending, userID)
	for _, s := range m.registry.List(userID, m.now()) {
		m.registry.Remove(s.Key)
	}
	delete(m.loaded, userID)
	m.updateGauges()
	metrics.CommandsTotal.WithLabelValues("clear_user").Inc()

	if err := m.store.ClearCurrent(ctx, userID); err != nil {
		return fmt.Errorf("clear current slot for user %s: %w", userID, err)
	}
	return nil
}

// HasPendingSync reports whether any durability writes for the user failed
// and await retry.
func (m *Manager) HasPendingSync(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[userID]
	return ok && !p.empty()
}

// RetrySync re-attempts the user's queued durability writes. Writes that
// fail again stay queued.
func (m *Manager) RetrySync(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.retrySyncLocked(ctx, userID)
}

func (m *Manager) retrySyncLocked(ctx context.Context, userID string) error {
	p, ok := m.pending[userID]
	if !ok || p.empty() {
		return nil
	}

	var firstErr error
	keep := func(err error) bool {
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return err != nil
	}

	if p.finished != nil && !keep(m.store.SaveFinished(ctx, p.finished)) {
		p.finished = nil
	}
	for id, st := range p.stakes {
		if !keep(m.store.SaveStake(ctx, st)) {
			delete(p.stakes, id)
		}
	}
	for key, entry := range p.parked {
		if !keep(m.store.PutParked(ctx, entry)) {
			delete(p.parked, key)
		}
	}
	for key := range p.removeParked {
		if !keep(m.store.RemoveParked(ctx, key)) {
			delete(p.removeParked, key)
		}
	}
	if p.session != nil && !keep(m.store.SaveCurrent(ctx, p.session)) {
		p.session = nil
	}
	if p.clearCurrent && !keep(m.store.ClearCurrent(ctx, userID)) {
		p.clearCurrent = false
	}

	if p.empty() {
		delete(m.pending, userID)
	}
	if firstErr != nil {
		return fmt.Errorf("retry sync for user %s: %w", userID, firstErr)
	}
	slog.Info("sync retried", "user", userID)
	return nil
}

// --- internals ---

// slot returns the user's current session. When the slot is empty because
// the user's last session just completed, commands get a StateError against
// the completed phase rather than a not-found; queries pass "" and always
// get ErrNoCurrentSession. Callers hold m.mu.
func (m *Manager) slot(ctx context.Context, userID, command string) (*model.LiveSession, error) {
	if err := m.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	cur, ok := m.current[userID]
	if !ok {
		if command != "" && m.lastEnd[userID] != nil {
			metrics.TransitionRejections.Inc()
			return nil, stateErr(command, model.PhaseCompleted)
		}
		return nil, fmt.Errorf("%w for user %s", ErrNoCurrentSession, userID)
	}
	return cur, nil
}

func (m *Manager) pend(userID string) *pendingWrites {
	p, ok := m.pending[userID]
	if !ok {
		p = newPendingWrites()
		m.pending[userID] = p
	}
	return p
}

func (m *Manager) persistCurrent(ctx context.Context, sess *model.LiveSession) {
	if err := m.store.SaveCurrent(ctx, sess); err != nil {
		slog.Warn("save current session failed, queued for retry",
			"session_id", sess.ID, "user", sess.UserID, "err", err)
		metrics.SyncFailures.Inc()
		m.pend(sess.UserID).session = sess.Clone()
		return
	}
	// A successful save supersedes any older queued save.
	if p, ok := m.pending[sess.UserID]; ok {
		p.session = nil
	}
}

func (m *Manager) persistClearCurrent(ctx context.Context, userID string) {
	if err := m.store.ClearCurrent(ctx, userID); err != nil {
		slog.Warn("clear current slot failed, queued for retry", "user", userID, "err", err)
		metrics.SyncFailures.Inc()
		m.pend(userID).clearCurrent = true
		return
	}
	if p, ok := m.pending[userID]; ok {
		p.clearCurrent = false
		p.session = nil
	}
}

func (m *Manager) persistParked(ctx context.Context, entry *model.ParkedSession) {
	if err := m.store.PutParked(ctx, entry); err != nil {
		slog.Warn("save parked session failed, queued for retry",
			"key", entry.Key, "user", entry.UserID, "err", err)
		metrics.SyncFailures.Inc()
		cp := *entry
		cp.Session = entry.Session.Clone()
		m.pend(entry.UserID).parked[entry.Key] = &cp
	}
}

func (m *Manager) persistRemoveParked(ctx context.Context, userID, key string) {
	if err := m.store.RemoveParked(ctx, key); err != nil {
		slog.Warn("remove parked session failed, queued for retry",
			"key", key, "user", userID, "err", err)
		metrics.SyncFailures.Inc()
		p := m.pend(userID)
		p.removeParked[key] = true
		delete(p.parked, key)
	}
}

func (m *Manager) persistStake(ctx context.Context, userID string, st *model.Stake) {
	if err := m.store.SaveStake(ctx, st); err != nil {
		slog.Warn("save stake failed, queued for retry",
			"stake_id", st.ID, "session_id", st.SessionID, "err", err)
		metrics.SyncFailures.Inc()
		cp := *st
		m.pend(userID).stakes[st.ID] = &cp
	}
}

func (m *Manager) persistFinished(ctx context.Context, userID string, f *model.FinishedSession) {
	if err := m.store.SaveFinished(ctx, f); err != nil {
		slog.Warn("archive finished session failed, queued for retry",
			"session_id", f.ID, "user", userID, "err", err)
		metrics.SyncFailures.Inc()
		cp := *f
		m.pend(userID).finished = &cp
	}
}

func (m *Manager) updateGauges() {
	metrics.ActiveSessions.Set(float64(len(m.current)))
	metrics.ParkedSessions.Set(float64(m.registry.Len()))
}

func (m *Manager) publish(eventType string, sess *model.LiveSession) {
	if m.hub == nil {
		return
	}
	m.hub.Broadcast(Event{
		Type:           eventType,
		UserID:         sess.UserID,
		SessionID:      sess.ID,
		Phase:          string(sess.Phase),
		ElapsedSeconds: sess.ElapsedSeconds,
		CurrentDay:     sess.CurrentDay,
	})
}
