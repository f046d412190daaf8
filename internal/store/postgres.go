package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stackpot/session-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const sessionColumns = `id, user_id, phase, start_time, elapsed_seconds,
	last_active_at, last_paused_at, game_name, stakes_label, buy_in::TEXT,
	is_tournament, tournament_name, current_day,
	paused_for_next_day, paused_for_next_day_date`

func scanSession(row pgx.Row) (*model.LiveSession, error) {
	var s model.LiveSession
	var buyIn string

	err := row.Scan(&s.ID, &s.UserID, &s.Phase, &s.StartTime, &s.ElapsedSeconds,
		&s.LastActiveAt, &s.LastPausedAt, &s.GameName, &s.StakesLabel, &buyIn,
		&s.IsTournament, &s.TournamentName, &s.CurrentDay,
		&s.PausedForNextDay, &s.PausedForNextDayDate)
	if err != nil {
		return nil, err
	}

	s.BuyIn, _ = decimal.NewFromString(buyIn)
	return &s, nil
}

func (s *PostgresStore) SaveCurrent(ctx context.Context, sess *model.LiveSession) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO live_sessions (id, user_id, phase, start_time, elapsed_seconds,
		     last_active_at, last_paused_at, game_name, stakes_label, buy_in,
		     is_tournament, tournament_name, current_day,
		     paused_for_next_day, paused_for_next_day_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::NUMERIC, $11, $12, $13, $14, $15)
		 ON CONFLICT (user_id) DO UPDATE SET
		     id = EXCLUDED.id,
		     phase = EXCLUDED.phase,
		     start_time = EXCLUDED.start_time,
		     elapsed_seconds = EXCLUDED.elapsed_seconds,
		     last_active_at = EXCLUDED.last_active_at,
		     last_paused_at = EXCLUDED.last_paused_at,
		     game_name = EXCLUDED.game_name,
		     stakes_label = EXCLUDED.stakes_label,
		     buy_in = EXCLUDED.buy_in,
		     is_tournament = EXCLUDED.is_tournament,
		     tournament_name = EXCLUDED.tournament_name,
		     current_day = EXCLUDED.current_day,
		     paused_for_next_day = EXCLUDED.paused_for_next_day,
		     paused_for_next_day_date = EXCLUDED.paused_for_next_day_date`,
		sess.ID, sess.UserID, sess.Phase, sess.StartTime, sess.ElapsedSeconds,
		sess.LastActiveAt, sess.LastPausedAt, sess.GameName, sess.StakesLabel,
		sess.BuyIn.String(), sess.IsTournament, sess.TournamentName, sess.CurrentDay,
		sess.PausedForNextDay, sess.PausedForNextDayDate,
	)
	return err
}

func (s *PostgresStore) LoadCurrent(ctx context.Context, userID string) (*model.LiveSession, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM live_sessions WHERE user_id = $1`, userID)

	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("current session for user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load current session for user %s: %w", userID, err)
	}
	return sess, nil
}

func (s *PostgresStore) ClearCurrent(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM live_sessions WHERE user_id = $1`, userID)
	return err
}

func (s *PostgresStore) PutParked(ctx context.Context, p *model.ParkedSession) error {
	sess := p.Session
	_, err := s.pool.Exec(ctx,
		`INSERT INTO parked_sessions (key, user_id, scheduled_date,
		     id, phase, start_time, elapsed_seconds,
		     last_active_at, last_paused_at, game_name, stakes_label, buy_in,
		     is_tournament, tournament_name, current_day,
		     paused_for_next_day, paused_for_next_day_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::NUMERIC, $13, $14, $15, $16, $17)
		 ON CONFLICT (key) DO UPDATE SET
		     scheduled_date = EXCLUDED.scheduled_date,
		     phase = EXCLUDED.phase,
		     elapsed_seconds = EXCLUDED.elapsed_seconds,
		     buy_in = EXCLUDED.buy_in,
		     current_day = EXCLUDED.current_day,
		     paused_for_next_day = EXCLUDED.paused_for_next_day,
		     paused_for_next_day_date = EXCLUDED.paused_for_next_day_date`,
		p.Key, p.UserID, p.ScheduledDate,
		sess.ID, sess.Phase, sess.StartTime, sess.ElapsedSeconds,
		sess.LastActiveAt, sess.LastPausedAt, sess.GameName, sess.StakesLabel,
		sess.BuyIn.String(), sess.IsTournament, sess.TournamentName, sess.CurrentDay,
		sess.PausedForNextDay, sess.PausedForNextDayDate,
	)
	return err
}

func (s *PostgresStore) ListParked(ctx context.Context, userID string) ([]model.ParkedSession, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, user_id, scheduled_date,
		        id, phase, start_time, elapsed_seconds,
		        last_active_at, last_paused_at, game_name, stakes_label, buy_in::TEXT,
		        is_tournament, tournament_name, current_day,
		        paused_for_next_day, paused_for_next_day_date
		 FROM parked_sessions WHERE user_id = $1 ORDER BY scheduled_date`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parked []model.ParkedSession
	for rows.Next() {
		var p model.ParkedSession
		var sess model.LiveSession
		var buyIn string

		if err := rows.Scan(&p.Key, &p.UserID, &p.ScheduledDate,
			&sess.ID, &sess.Phase, &sess.StartTime, &sess.ElapsedSeconds,
			&sess.LastActiveAt, &sess.LastPausedAt, &sess.GameName, &sess.StakesLabel, &buyIn,
			&sess.IsTournament, &sess.TournamentName, &sess.CurrentDay,
			&sess.PausedForNextDay, &sess.PausedForNextDayDate); err != nil {
			return nil, err
		}

		sess.UserID = p.UserID
		sess.BuyIn, _ = decimal.NewFromString(buyIn)
		p.Session = &sess
		parked = append(parked, p)
	}
	return parked, rows.Err()
}

func (s *PostgresStore) RemoveParked(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM parked_sessions WHERE key = $1`, key)
	return err
}

func (s *PostgresStore) SaveStake(ctx context.Context, st *model.Stake) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO stakes (id, session_id, staker_kind, staker_ref, staked_player_user_id,
		     stake_percentage, markup, total_buy_in, player_cashout,
		     staker_cost, amount_transferred, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC,
		         $10::NUMERIC, $11::NUMERIC, $12, $13)
		 ON CONFLICT (id) DO NOTHING`,
		st.ID, st.SessionID, st.StakerKind, st.StakerRef, st.StakedPlayerUserID,
		st.StakePercentage.String(), st.Markup.String(),
		st.TotalPlayerBuyInForSession.String(), st.PlayerCashoutForSession.String(),
		st.StakerCost.String(), st.AmountTransferredAtSettlement.String(),
		st.Status, st.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ListStakes(ctx context.Context, sessionID string) ([]model.Stake, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, staker_kind, staker_ref, staked_player_user_id,
		        stake_percentage::TEXT, markup::TEXT, total_buy_in::TEXT, player_cashout::TEXT,
		        staker_cost::TEXT, amount_transferred::TEXT, status, created_at
		 FROM stakes WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stakes []model.Stake
	for rows.Next() {
		var st model.Stake
		var pct, markup, buyIn, cashout, cost, amount string

		if err := rows.Scan(&st.ID, &st.SessionID, &st.StakerKind, &st.StakerRef,
			&st.StakedPlayerUserID, &pct, &markup, &buyIn, &cashout,
			&cost, &amount, &st.Status, &st.CreatedAt); err != nil {
			return nil, err
		}

		st.StakePercentage, _ = decimal.NewFromString(pct)
		st.Markup, _ = decimal.NewFromString(markup)
		st.TotalPlayerBuyInForSession, _ = decimal.NewFromString(buyIn)
		st.PlayerCashoutForSession, _ = decimal.NewFromString(cashout)
		st.StakerCost, _ = decimal.NewFromString(cost)
		st.AmountTransferredAtSettlement, _ = decimal.NewFromString(amount)

		stakes = append(stakes, st)
	}
	return stakes, rows.Err()
}

func (s *PostgresStore) UpdateStakeStatus(ctx context.Context, stakeID string, status model.StakeStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE stakes SET status = $2 WHERE id = $1`, stakeID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stake %s: %w", stakeID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) SaveFinished(ctx context.Context, f *model.FinishedSession) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO finished_sessions (id, user_id, game_name, stakes_label,
		     buy_in, cashout, elapsed_seconds, start_time, end_time,
		     is_tournament, tournament_name, days)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO NOTHING`,
		f.ID, f.UserID, f.GameName, f.StakesLabel,
		f.BuyIn.String(), f.Cashout.String(), f.ElapsedSeconds,
		f.StartTime, f.EndTime, f.IsTournament, f.TournamentName, f.Days,
	)
	return err
}
