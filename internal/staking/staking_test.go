package staking_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stackpot/session-engine/internal/staking"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func validConfig() staking.Configuration {
	return staking.Configuration{
		Staker:         staking.IdentityInput{AppUserID: "user-42"},
		PercentageSold: d(50),
		Markup:         d(1.2),
	}
}

// --- Identity union ---

func TestResolve_ExactlyOneVariant(t *testing.T) {
	cases := []struct {
		name string
		in   staking.IdentityInput
		kind staking.IdentityKind
		ref  string
	}{
		{"app user", staking.IdentityInput{AppUserID: "u1"}, staking.KindAppUser, "u1"},
		{"manual profile", staking.IdentityInput{ManualProfileID: "p1"}, staking.KindManualProfile, "p1"},
		{"freeform name", staking.IdentityInput{ManualStakerName: "Uncle Ray"}, staking.KindFreeformName, "Uncle Ray"},
	}

	for _, tc := range cases {
		id, err := tc.in.Resolve()
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if id.Kind != tc.kind || id.Ref != tc.ref {
			t.Errorf("%s: got %+v", tc.name, id)
		}
	}
}

func TestResolve_NoVariant(t *testing.T) {
	_, err := staking.IdentityInput{}.Resolve()
	if !errors.Is(err, staking.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolve_MultipleVariants(t *testing.T) {
	_, err := staking.IdentityInput{AppUserID: "u1", ManualStakerName: "Ray"}.Resolve()
	if !errors.Is(err, staking.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	var verr *staking.ValidationError
	if !errors.As(err, &verr) || verr.Field != "staker" {
		t.Errorf("expected field=staker, got %+v", verr)
	}
}

// --- Configuration boundaries ---

func TestValidate_PercentageBounds(t *testing.T) {
	cases := []struct {
		pct   decimal.Decimal
		valid bool
	}{
		{decimal.Zero, false},
		{d(-5), false},
		{d(0.0001), true},
		{d(100), true},
		{d(100.0001), false},
	}

	for _, tc := range cases {
		cfg := validConfig()
		cfg.PercentageSold = tc.pct
		err := cfg.Validate()
		if tc.valid && err != nil {
			t.Errorf("percentage %s: unexpected rejection: %v", tc.pct, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("percentage %s: expected rejection", tc.pct)
		}
	}
}

func TestValidate_MarkupBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Markup = d(0.99)
	if cfg.Validate() == nil {
		t.Error("markup 0.99 should be rejected")
	}

	cfg.Markup = d(1.0)
	if err := cfg.Validate(); err != nil {
		t.Errorf("markup 1.0 should be accepted, got %v", err)
	}

	cfg.Markup = d(1.5)
	if err := cfg.Validate(); err != nil {
		t.Errorf("markup 1.5 should be accepted, got %v", err)
	}
}

func TestValidate_IdentifiesField(t *testing.T) {
	cfg := validConfig()
	cfg.Markup = d(0.5)

	var verr *staking.ValidationError
	if err := cfg.Validate(); !errors.As(err, &verr) || verr.Field != "markup" {
		t.Fatalf("expected markup validation error, got %v", err)
	}
}

func TestValidateAll_ReportsOffendingIndex(t *testing.T) {
	configs := []staking.Configuration{
		validConfig(),
		{Staker: staking.IdentityInput{AppUserID: "u2"}, PercentageSold: d(200), Markup: d(1)},
	}

	err := staking.ValidateAll(configs)
	if !errors.Is(err, staking.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateAll_EmptyBatch(t *testing.T) {
	if err := staking.ValidateAll(nil); err != nil {
		t.Errorf("empty batch should validate, got %v", err)
	}
}
