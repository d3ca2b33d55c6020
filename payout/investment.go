package payout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// INVESTMENT PAYOUT GENERATOR
// =============================================================================

// InvestmentEvents computes the fixed-cycle schedule of a company investment:
// duration_months equal interest-only events, the m-th dated investment_date
// + m months. return_percentage is a monthly rate. No event ever returns
// principal, unlike the subscription formulas.
func InvestmentEvents(inv CompanyInvestment) ([]PayoutEvent, error) {
	if inv.DurationMonths <= 0 {
		return nil, generic.Invalid("duration_months", "required")
	}
	if inv.ReturnPercentage == nil {
		return nil, generic.Invalid("return_percentage", "required")
	}
	if inv.ReturnPercentage.IsNegative() {
		return nil, generic.Invalid("return_percentage", "must not be negative")
	}
	if inv.Principal.IsNegative() {
		return nil, generic.Invalid("investment_amount", "must not be negative")
	}
	if inv.InvestmentDate.IsZero() {
		return nil, generic.Invalid("investment_date", "required")
	}

	interest := generic.RoundMoney(generic.PercentOf(inv.Principal, *inv.ReturnPercentage))
	start := inv.InvestmentDate.AddMonths(1)

	events := make([]PayoutEvent, 0, inv.DurationMonths)
	for m := 1; m <= inv.DurationMonths; m++ {
		events = append(events, PayoutEvent{
			InvestmentID:    inv.ID,
			Amount:          interest,
			InterestAmount:  interest,
			PrincipalAmount: decimal.Zero,
			PaymentDate:     inv.InvestmentDate.AddMonths(m),
			StartDate:       start,
			Sequence:        m,
			PaymentType:     PaymentMonthly,
			Method:          MethodNone,
		})
	}
	return events, nil
}

// DeriveReturnTerms fills whichever of return_percentage / expected_return is
// missing from the other, treating the percentage as annual over the term:
//
//	return_percentage = expected / principal × 100 × 12 / duration
//	expected_return   = principal × rate / 100 × duration / 12
func DeriveReturnTerms(inv CompanyInvestment) CompanyInvestment {
	if inv.DurationMonths <= 0 || !inv.Principal.IsPositive() {
		return inv
	}
	months := decimal.NewFromInt(int64(inv.DurationMonths))
	twelve := decimal.NewFromInt(12)

	switch {
	case inv.ExpectedReturn != nil && inv.ReturnPercentage == nil:
		rate := inv.ExpectedReturn.Div(inv.Principal).Mul(decimal.NewFromInt(100)).Mul(twelve).Div(months)
		inv.ReturnPercentage = &rate
	case inv.ReturnPercentage != nil && inv.ExpectedReturn == nil:
		expected := generic.PercentOf(inv.Principal, *inv.ReturnPercentage).Mul(months).Div(twelve)
		inv.ExpectedReturn = &expected
	}
	return inv
}

// InvestmentGenerator persists the schedule of an approved company investment.
// Like ScheduleGenerator it is not idempotent; engine.ApproveInvestment calls
// it once on the pending -> approved transition.
type InvestmentGenerator struct {
	Events EventWriter
	Audit  generic.AuditRecorder
	Logger logrus.FieldLogger
	NewID  generic.IDFunc
	Now    func() time.Time
}

func NewInvestmentGenerator(events EventWriter, audit generic.AuditRecorder, logger logrus.FieldLogger) *InvestmentGenerator {
	return &InvestmentGenerator{Events: events, Audit: audit, Logger: logger}
}

func (g *InvestmentGenerator) Generate(ctx context.Context, inv CompanyInvestment) ([]PayoutEvent, error) {
	if inv.ID == "" {
		return nil, generic.Invalid("investment_id", "required")
	}
	events, err := InvestmentEvents(inv)
	if err != nil {
		return nil, err
	}

	newID := g.NewID.OrDefault()
	now := time.Now().UTC()
	if g.Now != nil {
		now = g.Now().UTC()
	}
	for i := range events {
		events[i].ID = generic.EventID(newID())
		events[i].CreatedAt = now
	}

	if err := g.Events.InsertEvents(ctx, events); err != nil {
		return nil, generic.Persist("insert investment payouts", err)
	}

	logger := g.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"investment_id":    inv.ID,
		"months":           inv.DurationMonths,
		"monthly_interest": events[0].InterestAmount.StringFixed(generic.MoneyPlaces),
	}).Info("investment payouts generated")

	if g.Audit != nil {
		g.Audit.Record(generic.AuditEntry{
			ActorID:  "system",
			Table:    "investment_payments",
			RecordID: string(inv.ID),
			Action:   generic.AuditInvestmentPayouts,
			After: map[string]any{
				"monthly_interest": events[0].InterestAmount.StringFixed(generic.MoneyPlaces),
				"months":           inv.DurationMonths,
			},
		})
	}
	return events, nil
}
