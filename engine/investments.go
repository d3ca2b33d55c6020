package engine

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

// InvestmentApproval is what approving a company investment produced.
type InvestmentApproval struct {
	Investment payout.CompanyInvestment `json:"investment"`
	Payouts    []payout.PayoutEvent     `json:"payouts"`
}

// CreateInvestment records a pending company investment, deriving whichever
// of return_percentage and expected_return was left out.
func (e *Engine) CreateInvestment(ctx context.Context, inv payout.CompanyInvestment) (payout.CompanyInvestment, error) {
	if inv.ID == "" {
		inv.ID = generic.InvestmentID(e.newID())
	}
	now := e.clock()
	inv.Status = generic.StatusPending
	inv.ApprovedAt = nil
	inv.CreatedAt, inv.UpdatedAt = now, now
	inv = payout.DeriveReturnTerms(inv)
	if err := inv.Validate(); err != nil {
		return payout.CompanyInvestment{}, err
	}

	err := e.inTx(ctx, func(s Store, audit generic.AuditRecorder) error {
		if err := s.SaveInvestment(ctx, inv); err != nil {
			return generic.Persist("save investment", err)
		}
		audit.Record(generic.AuditEntry{
			ActorID:  inv.SubmittedBy,
			Table:    "company_investments",
			RecordID: string(inv.ID),
			Action:   generic.AuditCreate,
			After:    map[string]any{"investment_name": inv.Name, "investment_amount": inv.Principal.StringFixed(generic.MoneyPlaces)},
		})
		return nil
	})
	if err != nil {
		return payout.CompanyInvestment{}, err
	}
	return inv, nil
}

// ApproveInvestment moves a pending investment to approved and generates its
// monthly payouts in the same transaction. Missing duration or return terms
// fail the approval with a ValidationError and nothing is written.
func (e *Engine) ApproveInvestment(ctx context.Context, id generic.InvestmentID, reviewer, comments string) (*InvestmentApproval, error) {
	var result InvestmentApproval
	now := e.clock()

	err := e.inTx(ctx, func(s Store, audit generic.AuditRecorder) error {
		inv, err := s.GetInvestment(ctx, id)
		if err != nil {
			return generic.Persist("get investment", err)
		}
		if inv == nil {
			return generic.NotFound("investment", string(id))
		}
		if inv.Status != generic.StatusPending {
			return statusTransition("investment", string(id), inv.Status, generic.StatusApproved)
		}

		inv.Status = generic.StatusApproved
		inv.ApprovedAt = &now
		inv.ReviewedBy = reviewer
		inv.ReviewComments = comments
		inv.UpdatedAt = now
		if err := s.SaveInvestment(ctx, *inv); err != nil {
			return generic.Persist("save investment", err)
		}
		audit.Record(generic.AuditEntry{
			ActorID:  reviewer,
			Table:    "company_investments",
			RecordID: string(id),
			Action:   generic.AuditApprove,
			Before:   map[string]any{"approval_status": generic.StatusPending},
			After:    map[string]any{"approval_status": generic.StatusApproved, "review_comments": comments},
		})

		gen := &payout.InvestmentGenerator{Events: s, Audit: audit, Logger: e.logger, NewID: e.newID, Now: e.now}
		if result.Payouts, err = gen.Generate(ctx, *inv); err != nil {
			return err
		}
		result.Investment = *inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"investment_id": id,
		"payouts":       len(result.Payouts),
	}).Info("investment approved")
	return &result, nil
}

func (e *Engine) RejectInvestment(ctx context.Context, id generic.InvestmentID, reviewer, comments string) (*payout.CompanyInvestment, error) {
	var out payout.CompanyInvestment
	now := e.clock()

	err := e.inTx(ctx, func(s Store, audit generic.AuditRecorder) error {
		inv, err := s.GetInvestment(ctx, id)
		if err != nil {
			return generic.Persist("get investment", err)
		}
		if inv == nil {
			return generic.NotFound("investment", string(id))
		}
		if inv.Status != generic.StatusPending {
			return statusTransition("investment", string(id), inv.Status, generic.StatusRejected)
		}
		inv.Status = generic.StatusRejected
		inv.ReviewedBy = reviewer
		inv.ReviewComments = comments
		inv.UpdatedAt = now
		if err := s.SaveInvestment(ctx, *inv); err != nil {
			return generic.Persist("save investment", err)
		}
		audit.Record(generic.AuditEntry{
			ActorID:  reviewer,
			Table:    "company_investments",
			RecordID: string(id),
			Action:   generic.AuditReject,
			Before:   map[string]any{"approval_status": generic.StatusPending},
			After:    map[string]any{"approval_status": generic.StatusRejected, "review_comments": comments},
		})
		out = *inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// InvestmentPayouts returns the payout events of a company investment.
func (e *Engine) InvestmentPayouts(ctx context.Context, id generic.InvestmentID) ([]payout.PayoutEvent, error) {
	inv, err := e.store.GetInvestment(ctx, id)
	if err != nil {
		return nil, generic.Persist("get investment", err)
	}
	if inv == nil {
		return nil, generic.NotFound("investment", string(id))
	}
	return e.store.EventsForInvestment(ctx, id)
}
