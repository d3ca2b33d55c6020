/*
segment.go - Segment payout calculator

PURPOSE:
  Pure function family: (principal, plan, anchor date) -> ordered payout
  events. One formula per (segment, payment type) pair, selected through an
  explicit table so each formula is independently testable.

DISPATCH TABLE:
  Segment          | Buyback                         | Monthly
  -----------------|---------------------------------|-------------------------------------------
  INFRASTRUCTURE   | discounted principal at maturity| discounted principal split evenly
  PRE-IPO          | total-rate lump sum             | monthly-rate interest, no principal
  DIRECT, TRAVEL   | total-rate lump sum             | monthly-rate interest, principal at end
  INVESTMENT       | (no buyback) total-rate installments                                         |
  anything else    | annual rate prorated D/12       | annual rate / 12, principal at end

DATES:
  The first payout date comes from FirstPayoutDate(anchor). The k-th monthly
  event falls k-1 whole months after it; a buyback falls D months after it.

ROUNDING:
  Every output field is rounded once, half away from zero, to two places.
  Intermediates keep full decimal precision.

LABELING:
  INFRASTRUCTURE Monthly labels the even split as interest_amount on every
  month, including the final month that also carries is_principal and
  principal_amount = adjusted. INVESTMENT carries principal_amount = principal
  on the final installment on top of its regular split. For these two
  formulas amount != interest_amount + principal_amount on the final event;
  stored schedules depend on the labeling, so it is kept as is.
*/
package payout

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// terms is the normalized input every formula works from.
type terms struct {
	principal decimal.Decimal
	rate      decimal.Decimal // return percentage as stored on the plan
	discount  decimal.Decimal // discount percentage
	duration  int
	first     generic.TimePoint
}

// formula computes a schedule for one (segment, payment type) pair.
type formula func(t terms) []PayoutEvent

var formulas = map[Segment]map[PaymentType]formula{
	SegmentInfrastructure: {
		PaymentBuyback: discountedBuyback,
		PaymentMonthly: discountedInstallments,
	},
	SegmentPreIPO: {
		PaymentBuyback: totalReturnBuyback,
		PaymentMonthly: monthlyInterestOnly,
	},
	SegmentDirect: {
		PaymentBuyback: totalReturnBuyback,
		PaymentMonthly: monthlyInterestWithPrincipal,
	},
	SegmentTravel: {
		PaymentBuyback: totalReturnBuyback,
		PaymentMonthly: monthlyInterestWithPrincipal,
	},
	SegmentInvestment: {
		PaymentBuyback: totalReturnInstallments,
		PaymentMonthly: totalReturnInstallments,
	},
}

var fallbackFormulas = map[PaymentType]formula{
	PaymentBuyback: annualReturnBuyback,
	PaymentMonthly: annualInterestWithPrincipal,
}

func formulaFor(segment Segment, paymentType PaymentType) formula {
	if bySegment, ok := formulas[segment]; ok {
		if f, ok := bySegment[paymentType]; ok {
			return f
		}
	}
	return fallbackFormulas[paymentType]
}

// Calculate produces the payout events for principal under plan, anchored on
// the given date. It has no side effects and no clock dependency: identical
// inputs always yield identical events. IDs and owners are left empty for
// the caller to fill.
func Calculate(principal decimal.Decimal, plan Plan, anchor generic.TimePoint) ([]PayoutEvent, error) {
	plan.PaymentType = plan.PaymentType.Normalize()
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if principal.IsNegative() {
		return nil, generic.Invalid("principal", "must not be negative")
	}
	if anchor.IsZero() {
		return nil, generic.Invalid("anchor_date", "required")
	}

	t := terms{
		principal: principal,
		rate:      plan.ReturnPercentage,
		discount:  plan.DiscountPercentage,
		duration:  plan.DurationMonths,
		first:     FirstPayoutDate(anchor),
	}
	return formulaFor(plan.Segment, plan.PaymentType)(t), nil
}

// =============================================================================
// EVENT BUILDERS
// =============================================================================

func (t terms) buyback(amount, interest, principal decimal.Decimal) PayoutEvent {
	return PayoutEvent{
		Amount:          generic.RoundMoney(amount),
		InterestAmount:  generic.RoundMoney(interest),
		PrincipalAmount: generic.RoundMoney(principal),
		PaymentDate:     t.first.AddMonths(t.duration),
		StartDate:       t.first,
		Sequence:        1,
		IsPrincipal:     true,
		PaymentType:     PaymentBuyback,
		Method:          MethodNone,
	}
}

func (t terms) monthly(month int, amount, interest, principal decimal.Decimal, isPrincipal bool) PayoutEvent {
	return PayoutEvent{
		Amount:          generic.RoundMoney(amount),
		InterestAmount:  generic.RoundMoney(interest),
		PrincipalAmount: generic.RoundMoney(principal),
		PaymentDate:     t.first.AddMonths(month - 1),
		StartDate:       t.first,
		Sequence:        month,
		IsPrincipal:     isPrincipal,
		PaymentType:     PaymentMonthly,
		Method:          MethodNone,
	}
}

func (t terms) months() decimal.Decimal { return decimal.NewFromInt(int64(t.duration)) }

// adjusted is the principal after the segment discount.
func (t terms) adjusted() decimal.Decimal {
	return t.principal.Sub(generic.PercentOf(t.principal, t.discount))
}

// =============================================================================
// FORMULAS
// =============================================================================

// discountedBuyback: one principal-only event of the discounted principal.
func discountedBuyback(t terms) []PayoutEvent {
	adjusted := t.adjusted()
	return []PayoutEvent{t.buyback(adjusted, decimal.Zero, adjusted)}
}

// discountedInstallments: the discounted principal split evenly across the
// duration, labeled as interest every month; the last month is flagged as
// the principal event and carries principal_amount = adjusted.
func discountedInstallments(t terms) []PayoutEvent {
	adjusted := t.adjusted()
	split := adjusted.Div(t.months())

	events := make([]PayoutEvent, 0, t.duration)
	for m := 1; m <= t.duration; m++ {
		last := m == t.duration
		principal := decimal.Zero
		if last {
			principal = adjusted
		}
		events = append(events, t.monthly(m, split, split, principal, last))
	}
	return events
}

// totalReturnBuyback: return_percentage is the total rate for the term.
func totalReturnBuyback(t terms) []PayoutEvent {
	interest := generic.PercentOf(t.principal, t.rate)
	return []PayoutEvent{t.buyback(t.principal.Add(interest), interest, t.principal)}
}

// monthlyInterestOnly: return_percentage is a monthly rate and the principal
// is never returned.
func monthlyInterestOnly(t terms) []PayoutEvent {
	interest := generic.PercentOf(t.principal, t.rate)

	events := make([]PayoutEvent, 0, t.duration)
	for m := 1; m <= t.duration; m++ {
		events = append(events, t.monthly(m, interest, interest, decimal.Zero, false))
	}
	return events
}

// monthlyInterestWithPrincipal: return_percentage is a monthly rate; the
// final month also returns the principal.
func monthlyInterestWithPrincipal(t terms) []PayoutEvent {
	return interestThenPrincipal(t, generic.PercentOf(t.principal, t.rate))
}

// annualInterestWithPrincipal: return_percentage is an annual rate paid in
// twelfths; the final month also returns the principal.
func annualInterestWithPrincipal(t terms) []PayoutEvent {
	return interestThenPrincipal(t, generic.PercentOf(t.principal, t.rate).Div(decimal.NewFromInt(12)))
}

func interestThenPrincipal(t terms, interest decimal.Decimal) []PayoutEvent {
	events := make([]PayoutEvent, 0, t.duration)
	for m := 1; m <= t.duration; m++ {
		if m == t.duration {
			events = append(events, t.monthly(m, interest.Add(t.principal), interest, t.principal, true))
			continue
		}
		events = append(events, t.monthly(m, interest, interest, decimal.Zero, false))
	}
	return events
}

// annualReturnBuyback: return_percentage is annual, prorated by duration/12.
func annualReturnBuyback(t terms) []PayoutEvent {
	ret := generic.PercentOf(t.principal, t.rate).Mul(t.months()).Div(decimal.NewFromInt(12))
	return []PayoutEvent{t.buyback(t.principal.Add(ret), ret, t.principal)}
}

// totalReturnInstallments: principal plus total return divided into equal
// installments. Each installment's interest is the installment minus an even
// share of principal; the final one is flagged and carries the principal.
func totalReturnInstallments(t terms) []PayoutEvent {
	total := t.principal.Add(generic.PercentOf(t.principal, t.rate))
	installment := total.Div(t.months())
	interest := installment.Sub(t.principal.Div(t.months()))

	events := make([]PayoutEvent, 0, t.duration)
	for m := 1; m <= t.duration; m++ {
		last := m == t.duration
		principal := decimal.Zero
		if last {
			principal = t.principal
		}
		events = append(events, t.monthly(m, installment, interest, principal, last))
	}
	return events
}
