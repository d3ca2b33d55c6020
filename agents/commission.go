package agents

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// COMMISSION CASCADE
// =============================================================================

// Tier is one agent's share in a cascade.
type Tier struct {
	Agent        Agent
	Differential decimal.Decimal // percentage points over the tier below
	Amount       decimal.Decimal // rounded principal × differential / 100
}

// Split walks an approved chain bottom-up and returns the tiers that are owed
// something. The running rate is reset to each agent's own rate after it is
// evaluated, so an ancestor is only paid what it adds over the tier directly
// below it; an ancestor at or below that rate earns nothing.
func Split(chain []Agent, principal decimal.Decimal) []Tier {
	var tiers []Tier
	prev := decimal.Zero
	for _, agent := range chain {
		cur := agent.CommissionPercentage
		if cur.GreaterThan(prev) {
			diff := cur.Sub(prev)
			tiers = append(tiers, Tier{
				Agent:        agent,
				Differential: diff,
				Amount:       generic.RoundMoney(generic.PercentOf(principal, diff)),
			})
		}
		prev = cur
	}
	return tiers
}

// CommissionCascade turns a subscription approval into one AgentPayment per
// tier of the direct agent's approved chain.
type CommissionCascade struct {
	Agents   AgentReader
	Payments PaymentWriter
	Audit    generic.AuditRecorder
	Logger   logrus.FieldLogger
	NewID    generic.IDFunc
	Now      func() time.Time
}

func NewCommissionCascade(agents AgentReader, payments PaymentWriter, audit generic.AuditRecorder, logger logrus.FieldLogger) *CommissionCascade {
	return &CommissionCascade{Agents: agents, Payments: payments, Audit: audit, Logger: logger}
}

// Distribute computes and persists the payments for a subscription. Payments
// are dated on the approval day. An unapproved direct agent yields nothing.
func (c *CommissionCascade) Distribute(ctx context.Context, subscriptionID generic.SubscriptionID, directAgentID generic.AgentID, principal decimal.Decimal, approvalDate generic.TimePoint) ([]AgentPayment, error) {
	if principal.IsNegative() {
		return nil, generic.Invalid("investment_amount", "must not be negative")
	}
	logger := c.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	chain, err := ApprovedChain(ctx, c.Agents, directAgentID, logger)
	if err != nil {
		return nil, err
	}
	tiers := Split(chain, principal)
	if len(tiers) == 0 {
		logger.WithFields(logrus.Fields{
			"subscription_id": subscriptionID,
			"agent_id":        directAgentID,
		}).Debug("no commission payable")
		return nil, nil
	}

	newID := c.NewID.OrDefault()
	now := time.Now().UTC()
	if c.Now != nil {
		now = c.Now().UTC()
	}

	payments := make([]AgentPayment, 0, len(tiers))
	total := decimal.Zero
	for _, tier := range tiers {
		payments = append(payments, AgentPayment{
			ID:                     newID(),
			AgentID:                tier.Agent.ID,
			SubscriptionID:         subscriptionID,
			Amount:                 tier.Amount,
			CommissionPercentage:   tier.Agent.CommissionPercentage,
			DifferentialPercentage: tier.Differential,
			PaymentDate:            approvalDate,
			CreatedAt:              now,
		})
		total = total.Add(tier.Amount)
	}

	if err := c.Payments.InsertAgentPayments(ctx, payments); err != nil {
		return nil, generic.Persist("insert agent payments", err)
	}

	logger.WithFields(logrus.Fields{
		"subscription_id": subscriptionID,
		"agent_id":        directAgentID,
		"tiers":           len(payments),
		"total":           total.StringFixed(generic.MoneyPlaces),
	}).Info("agent commission distributed")

	if c.Audit != nil {
		c.Audit.Record(generic.AuditEntry{
			Table:    "agent_payments",
			RecordID: string(subscriptionID),
			Action:   generic.AuditGeneratePayments,
			After:    map[string]any{"count": len(payments), "total": total.StringFixed(generic.MoneyPlaces)},
		})
	}
	return payments, nil
}
