/*
Package generic provides the domain-agnostic core of the payout engine.

PURPOSE:
  This package contains the building blocks every payout and commission
  calculation is made of: exact money arithmetic, timezone-independent
  calendar dates, calendar-month windows, the error taxonomy, struct
  validation and the best-effort audit side channel. It knows nothing about
  plans, segments or agents.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal values, rounded once per stored field
  - Percentages: plan and commission rates are expressed in percent (5 = 5%)
  - Identifiers: opaque string ids generated with uuid

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Round once: intermediates keep full precision, only outputs are rounded
  3. Rounding rule: half away from zero, two places (decimal.Round)

USAGE:
  interest := generic.PercentOf(principal, plan.ReturnPercentage)
  event.InterestAmount = generic.RoundMoney(interest)

SEE ALSO:
  - time.go: TimePoint calendar dates and month arithmetic
  - errors.go: Validation / NotFound / Persistence errors
  - audit.go: Audit entries and the async sink
*/
package generic

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - decimal amounts, two places
// =============================================================================

// MoneyPlaces is the number of decimal places of every persisted money field.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds half away from zero to MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// PercentOf returns amount × rate / 100 without rounding.
func PercentOf(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}

func NewMoneyFromInt(value int64) decimal.Decimal {
	return decimal.NewFromInt(value)
}

// MustParseDecimal parses a decimal literal and panics on malformed input.
// Use it for constants only; stored or user values go through
// decimal.NewFromString and return the error.
func MustParseDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// SumMoney adds amounts without intermediate rounding.
func SumMoney(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// NewID returns a random identifier for generated rows.
func NewID() string {
	return uuid.NewString()
}

// IDFunc generates identifiers. Components take one so tests can pin ids.
type IDFunc func() string

// OrDefault returns f, or NewID when f is nil.
func (f IDFunc) OrDefault() IDFunc {
	if f == nil {
		return NewID
	}
	return f
}

type PlanID string
type SubscriptionID string
type InvestmentID string
type EventID string
type AgentID string
type GiftPlanID string

// =============================================================================
// APPROVAL STATUS - Lifecycle shared by subscriptions, investments and agents
// =============================================================================

type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
	StatusSettled  ApprovalStatus = "settled" // subscriptions only
)

func (s ApprovalStatus) IsApproved() bool { return s == StatusApproved }
