package payout_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func plan(segment payout.Segment, paymentType payout.PaymentType, rate, discount string, months int) payout.Plan {
	return payout.Plan{
		ID:                 "plan-1",
		Name:               string(segment),
		Segment:            segment,
		PaymentType:        paymentType,
		ReturnPercentage:   generic.MustParseDecimal(rate),
		DiscountPercentage: generic.MustParseDecimal(discount),
		DurationMonths:     months,
		Active:             true,
	}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(generic.MoneyPlaces), msgAndArgs...)
}

func principalEvents(events []payout.PayoutEvent) []payout.PayoutEvent {
	var out []payout.PayoutEvent
	for _, e := range events {
		if e.IsPrincipal {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// DIRECT / TRAVEL
// =============================================================================

func TestCalculate_DirectMonthly_PrincipalOnFinalMonth(t *testing.T) {
	// GIVEN: 100000 at 3% per month for 12 months, anchored on Jan 10
	// WHEN: Calculating the schedule
	// THEN: 11 events of 3000.00 and a final event of 103000.00

	events, err := payout.Calculate(
		generic.NewMoneyFromInt(100000),
		plan(payout.SegmentDirect, payout.PaymentMonthly, "3", "0", 12),
		generic.MustParseDate("2025-01-10"),
	)
	require.NoError(t, err)
	require.Len(t, events, 12)

	for i, e := range events[:11] {
		assertMoney(t, "3000.00", e.Amount, "month %d", i+1)
		assertMoney(t, "3000.00", e.InterestAmount)
		assertMoney(t, "0.00", e.PrincipalAmount)
		assert.False(t, e.IsPrincipal)
		assert.Equal(t, i+1, e.Sequence)
	}

	last := events[11]
	assertMoney(t, "103000.00", last.Amount)
	assertMoney(t, "3000.00", last.InterestAmount)
	assertMoney(t, "100000.00", last.PrincipalAmount)
	assert.True(t, last.IsPrincipal)
	assert.Equal(t, 12, last.Sequence)

	assert.Equal(t, "2025-02-15", events[0].PaymentDate.String())
	assert.Equal(t, "2025-03-15", events[1].PaymentDate.String())
	assert.Equal(t, "2026-01-15", last.PaymentDate.String())
	for _, e := range events {
		assert.Equal(t, "2025-02-15", e.StartDate.String())
		assert.Equal(t, payout.PaymentMonthly, e.PaymentType)
		assert.Equal(t, payout.MethodNone, e.Method)
		assert.False(t, e.Paid)
	}
}

func TestCalculate_TravelMonthly_MatchesDirect(t *testing.T) {
	anchor := generic.MustParseDate("2025-05-20")
	direct, err := payout.Calculate(generic.NewMoneyFromInt(80000), plan(payout.SegmentDirect, payout.PaymentMonthly, "1.5", "0", 6), anchor)
	require.NoError(t, err)
	travel, err := payout.Calculate(generic.NewMoneyFromInt(80000), plan(payout.SegmentTravel, payout.PaymentMonthly, "1.5", "0", 6), anchor)
	require.NoError(t, err)

	assert.Equal(t, direct, travel)
}

func TestCalculate_DirectBuyback_TotalRateAtMaturity(t *testing.T) {
	// GIVEN: 50000 at a 20% total rate for 24 months, anchored on Mar 20
	// WHEN: Calculating a buyback schedule
	// THEN: One event, 24 months after the first payout date

	events, err := payout.Calculate(
		generic.NewMoneyFromInt(50000),
		plan(payout.SegmentDirect, payout.PaymentBuyback, "20", "0", 24),
		generic.MustParseDate("2025-03-20"),
	)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assertMoney(t, "60000.00", e.Amount)
	assertMoney(t, "10000.00", e.InterestAmount)
	assertMoney(t, "50000.00", e.PrincipalAmount)
	assert.True(t, e.IsPrincipal)
	assert.Equal(t, 1, e.Sequence)
	assert.Equal(t, payout.PaymentBuyback, e.PaymentType)
	assert.Equal(t, "2025-04-30", e.StartDate.String())
	assert.Equal(t, "2027-04-30", e.PaymentDate.String())
}

// =============================================================================
// PRE-IPO
// =============================================================================

func TestCalculate_PreIPOMonthly_NeverReturnsPrincipal(t *testing.T) {
	events, err := payout.Calculate(
		generic.NewMoneyFromInt(100000),
		plan(payout.SegmentPreIPO, payout.PaymentMonthly, "2", "0", 3),
		generic.MustParseDate("2025-06-01"),
	)
	require.NoError(t, err)
	require.Len(t, events, 3)

	for _, e := range events {
		assertMoney(t, "2000.00", e.Amount)
		assertMoney(t, "2000.00", e.InterestAmount)
		assertMoney(t, "0.00", e.PrincipalAmount)
		assert.False(t, e.IsPrincipal)
	}
	assert.Empty(t, principalEvents(events))
}

func TestCalculate_PreIPOBuyback_SameAsDirect(t *testing.T) {
	anchor := generic.MustParseDate("2025-03-20")
	preIPO, err := payout.Calculate(generic.NewMoneyFromInt(50000), plan(payout.SegmentPreIPO, payout.PaymentBuyback, "20", "0", 24), anchor)
	require.NoError(t, err)
	direct, err := payout.Calculate(generic.NewMoneyFromInt(50000), plan(payout.SegmentDirect, payout.PaymentBuyback, "20", "0", 24), anchor)
	require.NoError(t, err)

	assert.Equal(t, direct, preIPO)
}

// =============================================================================
// INFRASTRUCTURE
// =============================================================================

func TestCalculate_InfrastructureBuyback_DiscountedPrincipalOnly(t *testing.T) {
	// GIVEN: 100000 with a 5% discount over 12 months, anchored on Jan 31
	// WHEN: Calculating a buyback schedule
	// THEN: One principal-only event of 95000.00, month-add clamps to Feb 28

	events, err := payout.Calculate(
		generic.NewMoneyFromInt(100000),
		plan(payout.SegmentInfrastructure, payout.PaymentBuyback, "0", "5", 12),
		generic.MustParseDate("2025-01-31"),
	)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assertMoney(t, "95000.00", e.Amount)
	assertMoney(t, "0.00", e.InterestAmount)
	assertMoney(t, "95000.00", e.PrincipalAmount)
	assert.True(t, e.IsPrincipal)
	assert.Equal(t, "2025-02-28", e.StartDate.String())
	assert.Equal(t, "2026-02-28", e.PaymentDate.String())
}

func TestCalculate_InfrastructureMonthly_EvenSplitLabeledAsInterest(t *testing.T) {
	// GIVEN: 100000 with a 10% discount over 12 months
	// WHEN: Calculating a monthly schedule
	// THEN: Every month carries 7500.00 labeled as interest, the last one is
	//       also the principal event with principal_amount = 90000.00

	events, err := payout.Calculate(
		generic.NewMoneyFromInt(100000),
		plan(payout.SegmentInfrastructure, payout.PaymentMonthly, "0", "10", 12),
		generic.MustParseDate("2025-01-05"),
	)
	require.NoError(t, err)
	require.Len(t, events, 12)

	for _, e := range events {
		assertMoney(t, "7500.00", e.Amount)
		assertMoney(t, "7500.00", e.InterestAmount)
	}

	principal := principalEvents(events)
	require.Len(t, principal, 1)
	assert.Equal(t, 12, principal[0].Sequence)
	assertMoney(t, "90000.00", principal[0].PrincipalAmount)
}

func TestCalculate_InfrastructureMonthly_InterestSumsToAdjusted(t *testing.T) {
	cases := []struct {
		principal int64
		discount  string
		months    int
	}{
		{100000, "7", 7},
		{123457, "3.5", 11},
		{999999, "0", 13},
		{50000, "12.25", 36},
		{1, "0", 3},
	}

	for _, c := range cases {
		p := plan(payout.SegmentInfrastructure, payout.PaymentMonthly, "0", c.discount, c.months)
		principal := generic.NewMoneyFromInt(c.principal)

		events, err := payout.Calculate(principal, p, generic.MustParseDate("2025-04-18"))
		require.NoError(t, err)
		require.Len(t, events, c.months)

		adjusted := principal.Sub(generic.PercentOf(principal, p.DiscountPercentage))
		_, interest, _ := payout.Totals(events)
		tolerance := decimal.NewFromFloat(0.01).Mul(decimal.NewFromInt(int64(c.months)))
		assert.True(t, interest.Sub(adjusted).Abs().LessThanOrEqual(tolerance),
			"interest sum %s too far from adjusted %s", interest, adjusted)

		principalRows := principalEvents(events)
		require.Len(t, principalRows, 1)
		assertMoney(t, generic.RoundMoney(adjusted).StringFixed(2), principalRows[0].PrincipalAmount)
	}
}

// =============================================================================
// INVESTMENT
// =============================================================================

func TestCalculate_InvestmentSegment_TotalReturnInstallments(t *testing.T) {
	// GIVEN: 120000 at a 10% total rate over 12 months
	// WHEN: Calculating the schedule
	// THEN: 12 installments of 11000.00 with 1000.00 interest each and the
	//       original principal on the final installment

	for _, pt := range []payout.PaymentType{payout.PaymentMonthly, payout.PaymentBuyback} {
		events, err := payout.Calculate(
			generic.NewMoneyFromInt(120000),
			plan(payout.SegmentInvestment, pt, "10", "0", 12),
			generic.MustParseDate("2025-02-01"),
		)
		require.NoError(t, err)
		require.Len(t, events, 12)

		for _, e := range events {
			assertMoney(t, "11000.00", e.Amount)
			assertMoney(t, "1000.00", e.InterestAmount)
		}
		principal := principalEvents(events)
		require.Len(t, principal, 1)
		assert.Equal(t, 12, principal[0].Sequence)
		assertMoney(t, "120000.00", principal[0].PrincipalAmount)
	}
}

// =============================================================================
// FALLBACK (REAL ESTATE and future segments)
// =============================================================================

func TestCalculate_RealEstate_AnnualRate(t *testing.T) {
	anchor := generic.MustParseDate("2025-09-02")

	monthly, err := payout.Calculate(generic.NewMoneyFromInt(120000), plan(payout.SegmentRealEstate, payout.PaymentMonthly, "12", "0", 6), anchor)
	require.NoError(t, err)
	require.Len(t, monthly, 6)
	for _, e := range monthly[:5] {
		assertMoney(t, "1200.00", e.Amount)
	}
	assertMoney(t, "121200.00", monthly[5].Amount)
	assertMoney(t, "120000.00", monthly[5].PrincipalAmount)

	buyback, err := payout.Calculate(generic.NewMoneyFromInt(100000), plan(payout.SegmentRealEstate, payout.PaymentBuyback, "12", "0", 6), anchor)
	require.NoError(t, err)
	require.Len(t, buyback, 1)
	assertMoney(t, "106000.00", buyback[0].Amount)
	assertMoney(t, "6000.00", buyback[0].InterestAmount)
	assert.Equal(t, "2026-04-15", buyback[0].PaymentDate.String())
}

func TestCalculate_EmptyPaymentTypeIsMonthly(t *testing.T) {
	events, err := payout.Calculate(generic.NewMoneyFromInt(10000), plan(payout.SegmentDirect, "", "1", "0", 4), generic.MustParseDate("2025-01-01"))
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

func TestCalculate_PaymentTypeIsCaseInsensitive(t *testing.T) {
	// GIVEN: A DIRECT plan whose payment type arrives lower-cased
	// WHEN: Calculating the schedule
	// THEN: It is treated as a Buyback, not rejected

	events, err := payout.Calculate(
		generic.NewMoneyFromInt(100000),
		plan(payout.SegmentDirect, "buyback", "24", "0", 12),
		generic.MustParseDate("2025-01-10"),
	)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, payout.PaymentBuyback, events[0].PaymentType)
	assertMoney(t, "124000.00", events[0].Amount)
}

// =============================================================================
// DATES
// =============================================================================

func TestCalculate_MonthlyDatesDoNotDriftAfterFebruary(t *testing.T) {
	// GIVEN: A monthly schedule whose first payout falls on the 30th
	// WHEN: The schedule crosses February
	// THEN: Each date is offset from the first payout, so March goes back to the 30th

	events, err := payout.Calculate(
		generic.NewMoneyFromInt(10000),
		plan(payout.SegmentDirect, payout.PaymentMonthly, "1", "0", 4),
		generic.MustParseDate("2024-12-20"),
	)
	require.NoError(t, err)
	require.Len(t, events, 4)

	want := []string{"2025-01-30", "2025-02-28", "2025-03-30", "2025-04-30"}
	for i, e := range events {
		assert.Equal(t, want[i], e.PaymentDate.String(), "payout month %d", e.Sequence)
		assert.Equal(t, "2025-01-30", e.StartDate.String())
	}
}

// =============================================================================
// ROUNDING & DETERMINISM
// =============================================================================

func TestCalculate_RoundsHalfAwayFromZero(t *testing.T) {
	// 1000.50 × 1% = 10.005 -> 10.01
	events, err := payout.Calculate(generic.MustParseDecimal("1000.50"), plan(payout.SegmentPreIPO, payout.PaymentMonthly, "1", "0", 1), generic.MustParseDate("2025-01-01"))
	require.NoError(t, err)
	assertMoney(t, "10.01", events[0].Amount)
}

func TestCalculate_IsDeterministic(t *testing.T) {
	p := plan(payout.SegmentInfrastructure, payout.PaymentMonthly, "0", "3.3", 17)
	anchor := generic.MustParseDate("2024-01-20")

	first, err := payout.Calculate(generic.NewMoneyFromInt(777777), p, anchor)
	require.NoError(t, err)
	second, err := payout.Calculate(generic.NewMoneyFromInt(777777), p, anchor)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCalculate_AmountsNeverNegative(t *testing.T) {
	for _, seg := range []payout.Segment{payout.SegmentPreIPO, payout.SegmentRealEstate, payout.SegmentDirect, payout.SegmentInfrastructure, payout.SegmentTravel, payout.SegmentInvestment} {
		for _, pt := range []payout.PaymentType{payout.PaymentMonthly, payout.PaymentBuyback} {
			events, err := payout.Calculate(generic.NewMoneyFromInt(25000), plan(seg, pt, "4", "2", 5), generic.MustParseDate("2025-08-16"))
			require.NoError(t, err)
			require.NotEmpty(t, events)
			for _, e := range events {
				assert.False(t, e.Amount.IsNegative(), "%s/%s", seg, pt)
				assert.False(t, e.InterestAmount.IsNegative(), "%s/%s", seg, pt)
			}
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestCalculate_RejectsInvalidTerms(t *testing.T) {
	anchor := generic.MustParseDate("2025-01-01")
	principal := generic.NewMoneyFromInt(1000)

	tests := []struct {
		name  string
		plan  payout.Plan
		field string
	}{
		{"zero duration", plan(payout.SegmentDirect, payout.PaymentMonthly, "1", "0", 0), "duration_months"},
		{"unknown segment", plan("CRYPTO", payout.PaymentMonthly, "1", "0", 3), "segment"},
		{"negative rate", plan(payout.SegmentDirect, payout.PaymentMonthly, "-1", "0", 3), "return_percentage"},
		{"discount over 100", plan(payout.SegmentInfrastructure, payout.PaymentMonthly, "0", "101", 3), "discount_percentage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := payout.Calculate(principal, tt.plan, anchor)
			require.Error(t, err)
			assert.ErrorIs(t, err, generic.ErrValidation)

			var vErr *generic.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	_, err := payout.Calculate(principal, plan(payout.SegmentDirect, payout.PaymentMonthly, "1", "0", 3), generic.TimePoint{})
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestParseSegment(t *testing.T) {
	seg, err := payout.ParseSegment("real-estate")
	require.NoError(t, err)
	assert.Equal(t, payout.SegmentRealEstate, seg)

	seg, err = payout.ParseSegment(" pre-ipo ")
	require.NoError(t, err)
	assert.Equal(t, payout.SegmentPreIPO, seg)

	_, err = payout.ParseSegment("GOLD")
	assert.ErrorIs(t, err, generic.ErrValidation)
}
