// Package staking defines the staker identity tagged union and validation
// for stake configurations attached to a session before it ends.
//
// A configuration is transient input: it is held in the caller's working
// set during session setup and consumed at settlement time, never persisted
// on its own. All validation happens here, before settlement arithmetic is
// ever invoked, so the calculator itself cannot fail at runtime.
package staking

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrValidation is the root of all configuration validation failures.
// Concrete failures are *ValidationError values wrapping this sentinel,
// so callers can match the class with errors.Is and inspect the field
// with errors.As.
var ErrValidation = errors.New("staking: invalid configuration")

// ValidationError identifies the offending field of a rejected configuration.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("staking: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IdentityKind discriminates the staker identity union.
type IdentityKind string

const (
	// KindAppUser references a registered app user by ID.
	KindAppUser IdentityKind = "app_user"
	// KindManualProfile references a saved manual-staker profile by ID.
	KindManualProfile IdentityKind = "manual_profile"
	// KindFreeformName is a free-text staker name with no backing record.
	KindFreeformName IdentityKind = "freeform_name"
)

// StakerIdentity is a resolved tagged union: exactly one variant, carried
// as a kind plus its reference value. Construct via AppUser, ManualProfile,
// FreeformName, or IdentityInput.Resolve.
type StakerIdentity struct {
	Kind IdentityKind `json:"kind"`
	Ref  string       `json:"ref"`
}

// AppUser builds an identity referencing a registered app user.
func AppUser(userID string) StakerIdentity {
	return StakerIdentity{Kind: KindAppUser, Ref: userID}
}

// ManualProfile builds an identity referencing a saved manual-staker profile.
func ManualProfile(profileID string) StakerIdentity {
	return StakerIdentity{Kind: KindManualProfile, Ref: profileID}
}

// FreeformName builds an identity from a free-text staker name.
func FreeformName(name string) StakerIdentity {
	return StakerIdentity{Kind: KindFreeformName, Ref: name}
}

// IdentityInput is the wire shape for a staker identity: three optional
// fields of which exactly one must be set.
type IdentityInput struct {
	AppUserID        string `json:"app_user_id,omitempty"`
	ManualProfileID  string `json:"manual_profile_id,omitempty"`
	ManualStakerName string `json:"manual_staker_name,omitempty"`
}

// Resolve collapses the input into a StakerIdentity, rejecting inputs with
// zero or more than one populated variant.
func (in IdentityInput) Resolve() (StakerIdentity, error) {
	var id StakerIdentity
	set := 0
	if in.AppUserID != "" {
		id = AppUser(in.AppUserID)
		set++
	}
	if in.ManualProfileID != "" {
		id = ManualProfile(in.ManualProfileID)
		set++
	}
	if in.ManualStakerName != "" {
		id = FreeformName(in.ManualStakerName)
		set++
	}
	switch set {
	case 0:
		return StakerIdentity{}, &ValidationError{Field: "staker", Reason: "no identity variant set"}
	case 1:
		return id, nil
	default:
		return StakerIdentity{}, &ValidationError{Field: "staker", Reason: "more than one identity variant set"}
	}
}

// Configuration describes one staking arrangement: who staked, what share
// of the player's action they bought, and at what markup over cost.
type Configuration struct {
	ID             string          `json:"id,omitempty"`
	Staker         IdentityInput   `json:"staker"`
	PercentageSold decimal.Decimal `json:"percentage_sold"` // (0, 100]
	Markup         decimal.Decimal `json:"markup"`          // >= 1.0
}

var (
	hundred   = decimal.NewFromInt(100)
	minMarkup = decimal.NewFromInt(1)
)

// Validate checks the configuration against the staking invariants:
// exactly one identity variant, 0 < percentageSold <= 100, markup >= 1.0.
// The first violation is returned as a *ValidationError naming the field.
func (c Configuration) Validate() error {
	if _, err := c.Staker.Resolve(); err != nil {
		return err
	}
	if c.PercentageSold.LessThanOrEqual(decimal.Zero) {
		return &ValidationError{Field: "percentage_sold", Reason: "must be greater than 0"}
	}
	if c.PercentageSold.GreaterThan(hundred) {
		return &ValidationError{Field: "percentage_sold", Reason: "must not exceed 100"}
	}
	if c.Markup.LessThan(minMarkup) {
		return &ValidationError{Field: "markup", Reason: "must be at least 1.0"}
	}
	return nil
}

// ValidateAll validates every configuration in order, so no partial batch
// is ever handed to settlement.
func ValidateAll(configs []Configuration) error {
	for i, c := range configs {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("configuration %d: %w", i, err)
		}
	}
	return nil
}
