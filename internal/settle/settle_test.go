package settle_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stackpot/session-engine/internal/model"
	"github.com/stackpot/session-engine/internal/settle"
	"github.com/stackpot/session-engine/internal/staking"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestCompute_EvenMoneyHalfStake(t *testing.T) {
	// buyIn=200, cashout=500, 50% at no markup:
	// stakerCost = 200 * 0.5 * 1.0 = 100
	// transferred = 500 * 0.5 - 100 = 150
	res := settle.Compute(d(200), d(500), d(50), d(1.0))

	if !res.StakerCost.Equal(d(100)) {
		t.Errorf("expected stakerCost=100, got %s", res.StakerCost)
	}
	if !res.AmountTransferred.Equal(d(150)) {
		t.Errorf("expected amountTransferred=150, got %s", res.AmountTransferred)
	}
}

func TestCompute_MarkupLosingSession(t *testing.T) {
	// buyIn=1000, cashout=800, 25% at 1.2 markup:
	// stakerCost = 1000 * 0.25 * 1.2 = 300
	// transferred = 800 * 0.25 - 300 = -100 (staker's cost exceeded share)
	res := settle.Compute(d(1000), d(800), d(25), d(1.2))

	if !res.StakerCost.Equal(d(300)) {
		t.Errorf("expected stakerCost=300, got %s", res.StakerCost)
	}
	if !res.AmountTransferred.Equal(d(-100)) {
		t.Errorf("expected amountTransferred=-100, got %s", res.AmountTransferred)
	}
}

func TestCompute_FullActionZeroCashout(t *testing.T) {
	// Bust: the staker is owed nothing; the whole marked-up cost is negative.
	res := settle.Compute(d(500), decimal.Zero, d(100), d(1.1))

	if !res.StakerCost.Equal(d(550)) {
		t.Errorf("expected stakerCost=550, got %s", res.StakerCost)
	}
	if !res.AmountTransferred.Equal(d(-550)) {
		t.Errorf("expected amountTransferred=-550, got %s", res.AmountTransferred)
	}
}

func TestStakes_BuildsPendingRecords(t *testing.T) {
	now := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	configs := []staking.Configuration{
		{Staker: staking.IdentityInput{AppUserID: "backer-1"}, PercentageSold: d(50), Markup: d(1.0)},
		{Staker: staking.IdentityInput{ManualStakerName: "Uncle Ray"}, PercentageSold: d(10), Markup: d(1.25)},
	}

	stakes, err := settle.Stakes("sess-1", "player-1", d(200), d(500), configs, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stakes) != 2 {
		t.Fatalf("expected 2 stakes, got %d", len(stakes))
	}

	first := stakes[0]
	if first.ID == "" {
		t.Error("expected generated stake ID")
	}
	if first.SessionID != "sess-1" || first.StakedPlayerUserID != "player-1" {
		t.Errorf("session/player mismatch: %+v", first)
	}
	if first.StakerKind != string(staking.KindAppUser) || first.StakerRef != "backer-1" {
		t.Errorf("unexpected staker identity: %s/%s", first.StakerKind, first.StakerRef)
	}
	if first.Status != model.StakeStatusPending {
		t.Errorf("expected pending status, got %s", first.Status)
	}
	if !first.TotalPlayerBuyInForSession.Equal(d(200)) || !first.PlayerCashoutForSession.Equal(d(500)) {
		t.Error("expected session totals copied onto the stake")
	}
	if !first.AmountTransferredAtSettlement.Equal(d(150)) {
		t.Errorf("expected 150 transferred, got %s", first.AmountTransferredAtSettlement)
	}

	second := stakes[1]
	if second.StakerKind != string(staking.KindFreeformName) || second.StakerRef != "Uncle Ray" {
		t.Errorf("unexpected staker identity: %s/%s", second.StakerKind, second.StakerRef)
	}
}

func TestStakes_DeterministicIDs(t *testing.T) {
	configs := []staking.Configuration{
		{Staker: staking.IdentityInput{AppUserID: "backer-1"}, PercentageSold: d(50), Markup: d(1.0)},
		{Staker: staking.IdentityInput{ManualProfileID: "p1"}, PercentageSold: d(10), Markup: d(1.25)},
	}

	// Recomputing the same settlement yields the same IDs, so a retried
	// insert collapses onto the existing records.
	first, err := settle.Stakes("sess-1", "player-1", d(200), d(500), configs, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := settle.Stakes("sess-1", "player-1", d(200), d(500), configs, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("stake %d: IDs differ across recomputation: %s vs %s",
				i, first[i].ID, second[i].ID)
		}
		if first[i].ID != settle.StakeID("sess-1", i) {
			t.Errorf("stake %d: ID not derived from session and position", i)
		}
	}
	if first[0].ID == first[1].ID {
		t.Error("stakes within one session must have distinct IDs")
	}

	other, _ := settle.Stakes("sess-2", "player-1", d(200), d(500), configs, time.Now())
	if other[0].ID == first[0].ID {
		t.Error("different sessions must not share stake IDs")
	}
}

func TestStakes_RejectsUnresolvableIdentity(t *testing.T) {
	configs := []staking.Configuration{
		{PercentageSold: d(50), Markup: d(1.0)}, // no identity variant
	}

	if _, err := settle.Stakes("sess-1", "player-1", d(200), d(500), configs, time.Now()); err == nil {
		t.Fatal("expected error for unresolvable identity")
	}
}
