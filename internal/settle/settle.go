// Package settle implements the settlement arithmetic that turns a finished
// session's buy-in and cash-out plus a stake configuration into a money-owed
// figure.
//
// The computation is a pure function of four scalars and cannot fail once
// its inputs have passed configuration validation. Markup applies to the
// staker's cost basis: their proportional share of the buy-in, inflated by
// the premium they charged for fronting it.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Results keep full decimal precision; rounding is a presentation concern.
package settle

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stackpot/session-engine/internal/model"
	"github.com/stackpot/session-engine/internal/staking"
)

var hundred = decimal.NewFromInt(100)

// stakeNamespace seeds deterministic stake IDs. A stake's identity is
// (session, configuration position), so recomputing the same settlement
// always yields the same IDs and duplicate inserts collapse.
var stakeNamespace = uuid.MustParse("5f2b1c1e-9b7a-4f40-a6a3-0d8f52c3a1b7")

// StakeID derives the stable ID for the stake at position idx of a
// session's settlement.
func StakeID(sessionID string, idx int) string {
	return uuid.NewSHA1(stakeNamespace, []byte(fmt.Sprintf("%s:%d", sessionID, idx))).String()
}

// Result holds the two computed legs of one settlement.
type Result struct {
	// StakerCost is what the staker effectively fronted:
	// buyIn * (percentageSold/100) * markup.
	StakerCost decimal.Decimal

	// AmountTransferred is the staker's share of the cash-out minus their
	// cost: cashout * (percentageSold/100) - stakerCost. Positive means
	// the staker is owed money by the player.
	AmountTransferred decimal.Decimal
}

// Compute applies the settlement formula to one arrangement.
func Compute(buyIn, cashout, percentageSold, markup decimal.Decimal) Result {
	share := percentageSold.Div(hundred)
	cost := buyIn.Mul(share).Mul(markup)
	return Result{
		StakerCost:        cost,
		AmountTransferred: cashout.Mul(share).Sub(cost),
	}
}

// Stakes turns the finished session's final numbers plus a batch of
// validated configurations into pending Stake records, one per
// configuration. The only possible error is a configuration that never
// passed validation (malformed staker identity).
func Stakes(sessionID, playerUserID string, buyIn, cashout decimal.Decimal,
	configs []staking.Configuration, now time.Time) ([]model.Stake, error) {

	stakes := make([]model.Stake, 0, len(configs))
	for i, cfg := range configs {
		identity, err := cfg.Staker.Resolve()
		if err != nil {
			return nil, err
		}

		res := Compute(buyIn, cashout, cfg.PercentageSold, cfg.Markup)
		stakes = append(stakes, model.Stake{
			ID:                            StakeID(sessionID, i),
			SessionID:                     sessionID,
			StakerKind:                    string(identity.Kind),
			StakerRef:                     identity.Ref,
			StakedPlayerUserID:            playerUserID,
			StakePercentage:               cfg.PercentageSold,
			Markup:                        cfg.Markup,
			TotalPlayerBuyInForSession:    buyIn,
			PlayerCashoutForSession:       cashout,
			StakerCost:                    res.StakerCost,
			AmountTransferredAtSettlement: res.AmountTransferred,
			Status:                        model.StakeStatusPending,
			CreatedAt:                     now,
		})
	}
	return stakes, nil
}
