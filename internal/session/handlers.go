package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/stackpot/session-engine/internal/clock"
	"github.com/stackpot/session-engine/internal/model"
	"github.com/stackpot/session-engine/internal/staking"
	"github.com/stackpot/session-engine/internal/store"
)

// --- Request/Response types ---

// StartRequest is the JSON body for POST /sessions/start.
type StartRequest struct {
	UserID         string          `json:"user_id"`
	GameName       string          `json:"game_name"`
	StakesLabel    string          `json:"stakes_label"`
	BuyIn          decimal.Decimal `json:"buy_in"`
	IsTournament   bool            `json:"is_tournament"`
	TournamentName string          `json:"tournament_name,omitempty"`
}

// UserRequest is the JSON body for commands that only need the user.
type UserRequest struct {
	UserID string `json:"user_id"`
}

// RebuyRequest is the JSON body for POST /sessions/rebuy.
type RebuyRequest struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// ParkRequest is the JSON body for POST /sessions/park.
type ParkRequest struct {
	UserID        string    `json:"user_id"`
	ScheduledDate time.Time `json:"scheduled_date"`
}

// KeyRequest is the JSON body for restore/discard of a parked session.
type KeyRequest struct {
	UserID string `json:"user_id"`
	Key    string `json:"key"`
}

// EndRequest is the JSON body for POST /sessions/end.
type EndRequest struct {
	UserID              string                  `json:"user_id"`
	FinalCashout        decimal.Decimal         `json:"final_cashout"`
	StakeConfigurations []staking.Configuration `json:"stake_configurations"`
}

// SessionResponse wraps a session snapshot with its live elapsed seconds
// and whether all durability writes for the user have landed.
type SessionResponse struct {
	Session        *model.LiveSession `json:"session"`
	ElapsedSeconds int64              `json:"elapsed_seconds"`
	Synced         bool               `json:"synced"`
}

// ParkResponse is returned from POST /sessions/park.
type ParkResponse struct {
	Key    string `json:"key"`
	Synced bool   `json:"synced"`
}

// EndResponse is returned from POST /sessions/end.
type EndResponse struct {
	FinishedSession *model.FinishedSession `json:"finished_session"`
	Stakes          []model.Stake          `json:"stakes"`
	Synced          bool                   `json:"synced"`
}

// --- HTTP Handlers ---

// HandleStart handles POST /api/v1/sessions/start.
func (m *Manager) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.GameName == "" {
		writeError(w, "game_name is required", http.StatusBadRequest)
		return
	}
	if req.BuyIn.IsNegative() {
		writeError(w, "buy_in must not be negative", http.StatusBadRequest)
		return
	}

	sess, err := m.Start(r.Context(), req.UserID, req.GameName, req.StakesLabel,
		req.BuyIn, req.IsTournament, req.TournamentName)
	if err != nil {
		writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, m.sessionResponse(sess))
}

// HandlePause handles POST /api/v1/sessions/pause.
func (m *Manager) HandlePause(w http.ResponseWriter, r *http.Request) {
	m.handleUserCommand(w, r, m.Pause)
}

// HandleResume handles POST /api/v1/sessions/resume.
func (m *Manager) HandleResume(w http.ResponseWriter, r *http.Request) {
	m.handleUserCommand(w, r, m.Resume)
}

// HandleRebuy handles POST /api/v1/sessions/rebuy.
func (m *Manager) HandleRebuy(w http.ResponseWriter, r *http.Request) {
	var req RebuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	sess, err := m.AddRebuy(r.Context(), req.UserID, req.Amount)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m.sessionResponse(sess))
}

// HandlePark handles POST /api/v1/sessions/park.
func (m *Manager) HandlePark(w http.ResponseWriter, r *http.Request) {
	var req ParkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.ScheduledDate.IsZero() {
		writeError(w, "scheduled_date is required", http.StatusBadRequest)
		return
	}

	key, err := m.Park(r.Context(), req.UserID, req.ScheduledDate)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ParkResponse{Key: key, Synced: !m.HasPendingSync(req.UserID)})
}

// HandleRestore handles POST /api/v1/sessions/restore.
func (m *Manager) HandleRestore(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Key == "" {
		writeError(w, "user_id and key are required", http.StatusBadRequest)
		return
	}

	sess, err := m.Restore(r.Context(), req.UserID, req.Key)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m.sessionResponse(sess))
}

// HandleDiscardParked handles POST /api/v1/sessions/discard-parked.
func (m *Manager) HandleDiscardParked(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Key == "" {
		writeError(w, "user_id and key are required", http.StatusBadRequest)
		return
	}

	if err := m.DiscardParked(r.Context(), req.UserID, req.Key); err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"discarded": true})
}

// HandleEnd handles POST /api/v1/sessions/end.
func (m *Manager) HandleEnd(w http.ResponseWriter, r *http.Request) {
	var req EndRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.FinalCashout.IsNegative() {
		writeError(w, "final_cashout must not be negative", http.StatusBadRequest)
		return
	}

	res, err := m.End(r.Context(), req.UserID, req.FinalCashout, req.StakeConfigurations)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EndResponse{
		FinishedSession: res.Finished,
		Stakes:          res.Stakes,
		Synced:          !m.HasPendingSync(req.UserID),
	})
}

// HandleCurrent handles GET /api/v1/sessions/current/{userID}.
func (m *Manager) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	sess, elapsed, err := m.Current(r.Context(), userID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{
		Session:        sess,
		ElapsedSeconds: elapsed,
		Synced:         !m.HasPendingSync(userID),
	})
}

// HandleListParked handles GET /api/v1/sessions/parked/{userID}.
func (m *Manager) HandleListParked(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	parked, err := m.ListParked(r.Context(), userID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	if parked == nil {
		parked = []model.ParkedSummary{}
	}
	writeJSON(w, http.StatusOK, parked)
}

// HandleStakes handles GET /api/v1/stakes/{sessionID}.
func (m *Manager) HandleStakes(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	stakes, err := m.Stakes(r.Context(), sessionID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	if stakes == nil {
		stakes = []model.Stake{}
	}
	writeJSON(w, http.StatusOK, stakes)
}

// HandleSettleStake handles POST /api/v1/stakes/{stakeID}/settle.
func (m *Manager) HandleSettleStake(w http.ResponseWriter, r *http.Request) {
	stakeID := chi.URLParam(r, "stakeID")

	if err := m.SettleStake(r.Context(), stakeID); err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.StakeStatusSettled)})
}

// HandleRetrySync handles POST /api/v1/sessions/sync.
func (m *Manager) HandleRetrySync(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	if err := m.RetrySync(r.Context(), req.UserID); err != nil {
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"synced": true})
}

// HandleSignOut handles DELETE /api/v1/sessions/current/{userID}.
func (m *Manager) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := m.ClearUser(r.Context(), userID); err != nil {
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ---

func (m *Manager) handleUserCommand(w http.ResponseWriter, r *http.Request,
	cmd func(ctx context.Context, userID string) (*model.LiveSession, error)) {

	var req UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	sess, err := cmd(r.Context(), req.UserID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m.sessionResponse(sess))
}

func (m *Manager) sessionResponse(sess *model.LiveSession) SessionResponse {
	return SessionResponse{
		Session:        sess,
		ElapsedSeconds: clock.Elapsed(sess, m.now()),
		Synced:         !m.HasPendingSync(sess.UserID),
	}
}

// writeCommandError maps the error taxonomy onto HTTP status codes:
// validation → 400, invalid transition → 409, unknown session/key → 404,
// anything else (gateway reads) → 502.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, staking.ErrValidation):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInvalidTransition):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrNoCurrentSession),
		errors.Is(err, ErrParkedNotFound),
		errors.Is(err, store.ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	default:
		writeError(w, err.Error(), http.StatusBadGateway)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
