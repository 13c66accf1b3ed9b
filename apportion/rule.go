/*
rule.go - Owner/tenant cost-sharing rules

PURPOSE:
  A CostSharingRule encodes how a single expense's amount splits between the
  owner side and the tenant side of each unit. Four modes:

    owner_only   100% owner / 0% tenant       (structural costs)
    tenant_only  0% owner / 100% tenant       (usage costs)
    even_split   50% owner / 50% tenant
    custom       explicit (ownerPct, tenantPct), each in [0,100]

CUSTOM MODE POLICY:
  Percentages outside [0,100] are rejected at validation time. A pair that
  does not sum to 100 is accepted - the last entered values are authoritative.
  Balanced() lets callers surface a warning; SplitFractions divides by 100
  without renormalizing, so the imbalance propagates to computed amounts
  exactly as entered.
*/
package apportion

import (
	"github.com/shopspring/decimal"
)

type SplitMode string

const (
	SplitOwnerOnly  SplitMode = "owner_only"
	SplitTenantOnly SplitMode = "tenant_only"
	SplitEven       SplitMode = "even_split"
	SplitCustom     SplitMode = "custom"
)

// ValidSplitMode reports whether m is one of the four modes.
func ValidSplitMode(m SplitMode) bool {
	switch m {
	case SplitOwnerOnly, SplitTenantOnly, SplitEven, SplitCustom:
		return true
	}
	return false
}

// CostSharingRule is the owner/tenant split policy attached to an expense.
// OwnerPct and TenantPct are only meaningful in custom mode.
type CostSharingRule struct {
	Mode      SplitMode
	OwnerPct  int
	TenantPct int
}

// OwnerOnly, TenantOnly and EvenSplit are the fixed-mode rules.
func OwnerOnly() CostSharingRule  { return CostSharingRule{Mode: SplitOwnerOnly} }
func TenantOnly() CostSharingRule { return CostSharingRule{Mode: SplitTenantOnly} }
func EvenSplit() CostSharingRule  { return CostSharingRule{Mode: SplitEven} }

// Custom builds a custom split from explicit percentages.
func Custom(ownerPct, tenantPct int) CostSharingRule {
	return CostSharingRule{Mode: SplitCustom, OwnerPct: ownerPct, TenantPct: tenantPct}
}

// Validate rejects unknown modes and custom percentages outside [0,100].
// A custom pair not summing to 100 is NOT an error; see Balanced.
func (r CostSharingRule) Validate() error {
	if !ValidSplitMode(r.Mode) {
		return &ValidationError{Field: "rule", Message: "unknown cost sharing mode " + string(r.Mode)}
	}
	if r.Mode == SplitCustom {
		if r.OwnerPct < 0 || r.OwnerPct > 100 {
			return &ValidationError{Field: "owner_pct", Message: "owner percentage must be within 0..100"}
		}
		if r.TenantPct < 0 || r.TenantPct > 100 {
			return &ValidationError{Field: "tenant_pct", Message: "tenant percentage must be within 0..100"}
		}
	}
	return nil
}

// Balanced reports whether the rule's fractions sum to exactly 100%.
// Fixed modes always do; custom mode reflects the stored pair.
func (r CostSharingRule) Balanced() bool {
	if r.Mode != SplitCustom {
		return true
	}
	return r.OwnerPct+r.TenantPct == 100
}

var (
	fracZero = decimal.Zero
	fracOne  = decimal.NewFromInt(1)
	fracHalf = decimal.New(5, -1)
	hundred  = decimal.NewFromInt(100)
)

// SplitFractions returns the (owner, tenant) fractions in [0,1]. Custom mode
// divides the stored percentages by 100 without renormalizing.
func (r CostSharingRule) SplitFractions() (owner, tenant decimal.Decimal) {
	switch r.Mode {
	case SplitOwnerOnly:
		return fracOne, fracZero
	case SplitTenantOnly:
		return fracZero, fracOne
	case SplitEven:
		return fracHalf, fracHalf
	case SplitCustom:
		return decimal.NewFromInt(int64(r.OwnerPct)).Div(hundred),
			decimal.NewFromInt(int64(r.TenantPct)).Div(hundred)
	}
	return fracZero, fracZero
}
