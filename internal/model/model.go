// Package model defines the core domain types shared across the session engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Phase is the lifecycle state of a live session.
type Phase string

const (
	PhaseNotStarted    Phase = "not_started"
	PhaseActive        Phase = "active"
	PhasePaused        Phase = "paused"
	PhaseParkedNextDay Phase = "parked_next_day"
	PhaseCompleted     Phase = "completed"
	PhaseDiscarded     Phase = "discarded"
)

// Terminal reports whether no further transitions are permitted from p.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseDiscarded
}

// LiveSession is the single mutable in-progress session for one user.
// Elapsed time is always recomputable from ElapsedSeconds plus the
// LastActiveAt reference point — no background timer owns time progression.
type LiveSession struct {
	ID             string          `json:"id" db:"id"`
	UserID         string          `json:"user_id" db:"user_id"`
	Phase          Phase           `json:"phase" db:"phase"`
	StartTime      time.Time       `json:"start_time" db:"start_time"`
	ElapsedSeconds int64           `json:"elapsed_seconds" db:"elapsed_seconds"` // frozen while not Active
	LastActiveAt   *time.Time      `json:"last_active_at,omitempty" db:"last_active_at"`
	LastPausedAt   *time.Time      `json:"last_paused_at,omitempty" db:"last_paused_at"`
	GameName       string          `json:"game_name" db:"game_name"`
	StakesLabel    string          `json:"stakes_label" db:"stakes_label"`
	BuyIn          decimal.Decimal `json:"buy_in" db:"buy_in"` // cumulative, rebuys are additive

	IsTournament   bool   `json:"is_tournament" db:"is_tournament"`
	TournamentName string `json:"tournament_name,omitempty" db:"tournament_name"`
	CurrentDay     int    `json:"current_day" db:"current_day"` // >= 1

	// PausedForNextDayDate is non-nil iff PausedForNextDay is true.
	PausedForNextDay     bool       `json:"paused_for_next_day" db:"paused_for_next_day"`
	PausedForNextDayDate *time.Time `json:"paused_for_next_day_date,omitempty" db:"paused_for_next_day_date"`
}

// Clone returns a deep copy so callers can hand sessions across API
// boundaries without exposing the manager's mutable instance.
func (s *LiveSession) Clone() *LiveSession {
	cp := *s
	if s.LastActiveAt != nil {
		t := *s.LastActiveAt
		cp.LastActiveAt = &t
	}
	if s.LastPausedAt != nil {
		t := *s.LastPausedAt
		cp.LastPausedAt = &t
	}
	if s.PausedForNextDayDate != nil {
		t := *s.PausedForNextDayDate
		cp.PausedForNextDayDate = &t
	}
	return &cp
}

// DisplayName is the label shown for a session in parked listings.
func (s *LiveSession) DisplayName() string {
	if s.IsTournament && s.TournamentName != "" {
		return s.TournamentName
	}
	return s.GameName
}

// ParkedSession is a registry entry for a multi-day session awaiting its
// scheduled next-day resumption. Key format: "{sessionID}:{day}".
type ParkedSession struct {
	Key           string       `json:"key" db:"key"`
	UserID        string       `json:"user_id" db:"user_id"`
	Session       *LiveSession `json:"session"`
	ScheduledDate time.Time    `json:"scheduled_date" db:"scheduled_date"`
}

// ParkedSummary is the listing view of a parked session. Overdue entries
// (scheduled date in the past) are flagged, never auto-discarded.
type ParkedSummary struct {
	Key           string    `json:"key"`
	DisplayName   string    `json:"display_name"`
	ScheduledDate time.Time `json:"scheduled_date"`
	CurrentDay    int       `json:"current_day"`
	Overdue       bool      `json:"overdue"`
}

// StakeStatus tracks settlement of a stake record.
type StakeStatus string

const (
	StakeStatusPending StakeStatus = "pending"
	StakeStatusSettled StakeStatus = "settled"
)

// Stake is the persisted settlement record produced once per stake
// configuration when a session ends. Immutable except for Status.
type Stake struct {
	ID                 string `json:"id" db:"id"`
	SessionID          string `json:"session_id" db:"session_id"`
	StakerKind         string `json:"staker_kind" db:"staker_kind"`
	StakerRef          string `json:"staker_ref" db:"staker_ref"`
	StakedPlayerUserID string `json:"staked_player_user_id" db:"staked_player_user_id"`

	StakePercentage decimal.Decimal `json:"stake_percentage" db:"stake_percentage"`
	Markup          decimal.Decimal `json:"markup" db:"markup"`

	TotalPlayerBuyInForSession decimal.Decimal `json:"total_player_buy_in_for_session" db:"total_buy_in"`
	PlayerCashoutForSession    decimal.Decimal `json:"player_cashout_for_session" db:"player_cashout"`
	StakerCost                 decimal.Decimal `json:"staker_cost" db:"staker_cost"`
	// Positive: the staker is owed money by the player. Negative: the
	// staker's fronted cost exceeded their share of the cash-out.
	AmountTransferredAtSettlement decimal.Decimal `json:"amount_transferred_at_settlement" db:"amount_transferred"`

	Status    StakeStatus `json:"status" db:"status"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// FinishedSession is the archive record produced when a live session ends.
type FinishedSession struct {
	ID             string          `json:"id" db:"id"`
	UserID         string          `json:"user_id" db:"user_id"`
	GameName       string          `json:"game_name" db:"game_name"`
	StakesLabel    string          `json:"stakes_label" db:"stakes_label"`
	BuyIn          decimal.Decimal `json:"buy_in" db:"buy_in"`
	Cashout        decimal.Decimal `json:"cashout" db:"cashout"`
	ElapsedSeconds int64           `json:"elapsed_seconds" db:"elapsed_seconds"`
	StartTime      time.Time       `json:"start_time" db:"start_time"`
	EndTime        time.Time       `json:"end_time" db:"end_time"`
	IsTournament   bool            `json:"is_tournament" db:"is_tournament"`
	TournamentName string          `json:"tournament_name,omitempty" db:"tournament_name"`
	Days           int             `json:"days" db:"days"`
}
