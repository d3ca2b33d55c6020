package engine

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/payout-engine/agents"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

// =============================================================================
// PLANS
// =============================================================================

func (e *Engine) CreatePlan(ctx context.Context, plan payout.Plan) (payout.Plan, error) {
	if plan.ID == "" {
		plan.ID = generic.PlanID(e.newID())
	}
	plan.PaymentType = plan.PaymentType.Normalize()
	now := e.clock()
	plan.CreatedAt, plan.UpdatedAt = now, now
	if err := plan.Validate(); err != nil {
		return payout.Plan{}, err
	}

	err := e.inTx(ctx, func(s Store, audit generic.AuditRecorder) error {
		if err := s.SavePlan(ctx, plan); err != nil {
			return generic.Persist("save plan", err)
		}
		audit.Record(generic.AuditEntry{
			ActorID:  plan.CreatedBy,
			Table:    "plans",
			RecordID: string(plan.ID),
			Action:   generic.AuditCreate,
			After:    map[string]any{"segment": plan.Segment, "payment_type": plan.PaymentType, "duration_months": plan.DurationMonths},
		})
		return nil
	})
	return plan, err
}

// Preview computes a schedule for the given plan without persisting it.
func (e *Engine) Preview(ctx context.Context, planID generic.PlanID, principal decimal.Decimal, anchor generic.TimePoint) ([]payout.PayoutEvent, error) {
	plan, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, generic.Persist("get plan", err)
	}
	if plan == nil {
		return nil, generic.NotFound("plan", string(planID))
	}
	return payout.Calculate(principal, *plan, anchor)
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// ApprovalResult is everything one subscription approval produced.
type ApprovalResult struct {
	Subscription payout.Subscription   `json:"subscription"`
	Schedule     []payout.PayoutEvent  `json:"schedule"`
	Payments     []agents.AgentPayment `json:"agent_payments,omitempty"`
	Rewards      []agents.AgentReward  `json:"agent_rewards,omitempty"`
}

// CreateSubscription records a pending subscription. The plan, and the agent
// when one is given, must exist.
func (e *Engine) CreateSubscription(ctx context.Context, sub payout.Subscription) (payout.Subscription, error) {
	if sub.ID == "" {
		sub.ID = generic.SubscriptionID(e.newID())
	}
	now := e.clock()
	sub.Status = generic.StatusPending
	sub.ApprovedAt = nil
	sub.CreatedAt, sub.UpdatedAt = now, now
	if err := sub.Validate(); err != nil {
		return payout.Subscription{}, err
	}

	err := e.inTx(ctx, func(s Store, audit generic.AuditRecorder) error {
		plan, err := s.GetPlan(ctx, sub.PlanID)
		if err != nil {
			return generic.Persist("get plan", err)
		}
		if plan == nil {
			return generic.NotFound("plan", string(sub.PlanID))
		}
		if sub.AgentID != "" {
			agent, err := s.GetAgent(ctx, sub.AgentID)
			if err != nil {
				return generic.Persist("get agent", err)
			}
			if agent == nil {
				return generic.NotFound("agent", string(sub.AgentID))
			}
		}
		if err := s.SaveSubscription(ctx, sub); err != nil {
			return generic.Persist("save subscription", err)
		}
		audit.Record(generic.AuditEntry{
			ActorID:  sub.SubmittedBy,
			Table:    "subscriptions",
			RecordID: string(sub.ID),
			Action:   generic.AuditCreate,
			After:    map[string]any{"plan_id": sub.PlanID, "investment_amount": sub.Principal.StringFixed(generic.MoneyPlaces)},
		})
		return nil
	})
	if err != nil {
		return payout.Subscription{}, err
	}
	return sub, nil
}

// ApproveSubscription moves a pending subscription to approved and, in the
// same transaction, generates its payout schedule and, when it was sold by an
// agent, the commission cascade and reward evaluation. Only the pending ->
// approved transition triggers generation, so a schedule is produced at most
// once per subscription.
func (e *Engine) ApproveSubscription(ctx context.Context, id generic.SubscriptionID, reviewer, comments string) (*ApprovalResult, error) {
	var result ApprovalResult
	now := e.clock()

	err := e.inTx(ctx, func(s Store, audit generic.AuditRecorder) error {
		sub, err := s.GetSubscription(ctx, id)
		if err != nil {
			return generic.Persist("get subscription", err)
		}
		if sub == nil {
			return generic.NotFound("subscription", string(id))
		}
		if sub.Status != generic.StatusPending {
			return statusTransition("subscription", string(id), sub.Status, generic.StatusApproved)
		}
		plan, err := s.GetPlan(ctx, sub.PlanID)
		if err != nil {
			return generic.Persist("get plan", err)
		}
		if plan == nil {
			return generic.NotFound("plan", string(sub.PlanID))
		}

		before := sub.Status
		sub.Status = generic.StatusApproved
		sub.ApprovedAt = &now
		sub.ReviewedBy = reviewer
		sub.ReviewComments = comments
		sub.UpdatedAt = now
		if err := s.SaveSubscription(ctx, *sub); err != nil {
			return generic.Persist("save subscription", err)
		}
		audit.Record(generic.AuditEntry{
			ActorID:  reviewer,
			Table:    "subscriptions",
			RecordID: string(id),
			Action:   generic.AuditApprove,
			Before:   map[string]any{"approval_status": before},
			After:    map[string]any{"approval_status": sub.Status, "review_comments": comments},
		})

		schedule := &payout.ScheduleGenerator{Events: s, Audit: audit, Logger: e.logger, NewID: e.newID, Now: e.now}
		events, err := schedule.Generate(ctx, sub.ID, sub.Principal, sub.AnchorDate(), *plan)
		if err != nil {
			return err
		}
		result.Schedule = events

		if sub.AgentID != "" {
			approvalDay := generic.DateOf(now)
			cascade := &agents.CommissionCascade{Agents: s, Payments: s, Audit: audit, Logger: e.logger, NewID: e.newID, Now: e.now}
			if result.Payments, err = cascade.Distribute(ctx, sub.ID, sub.AgentID, sub.Principal, approvalDay); err != nil {
				return err
			}
			rewards := &agents.RewardEngine{
				Agents:        s,
				GiftPlans:     s,
				Subscriptions: s,
				Rewards:       s,
				Audit:         audit,
				Logger:        e.logger,
				NewID:         e.newID,
				Now:           e.now,
				Dedupe:        e.dedupe,
			}
			if result.Rewards, err = rewards.Evaluate(ctx, sub.AgentID, approvalDay); err != nil {
				return err
			}
		}
		result.Subscription = *sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"subscription_id": id,
		"events":          len(result.Schedule),
		"payments":        len(result.Payments),
		"rewards":         len(result.Rewards),
	}).Info("subscription approved")
	return &result, nil
}

// RejectSubscription moves a pending subscription to rejected.
func (e *Engine) RejectSubscription(ctx context.Context, id generic.SubscriptionID, reviewer, comments string) (*payout.Subscription, error) {
	var out payout.Subscription
	now := e.clock()

	err := e.inTx(ctx, func(s Store, audit generic.AuditRecorder) error {
		sub, err := s.GetSubscription(ctx, id)
		if err != nil {
			return generic.Persist("get subscription", err)
		}
		if sub == nil {
			return generic.NotFound("subscription", string(id))
		}
		if sub.Status != generic.StatusPending {
			return statusTransition("subscription", string(id), sub.Status, generic.StatusRejected)
		}
		sub.Status = generic.StatusRejected
		sub.ReviewedBy = reviewer
		sub.ReviewComments = comments
		sub.UpdatedAt = now
		if err := s.SaveSubscription(ctx, *sub); err != nil {
			return generic.Persist("save subscription", err)
		}
		audit.Record(generic.AuditEntry{
			ActorID:  reviewer,
			Table:    "subscriptions",
			RecordID: string(id),
			Action:   generic.AuditReject,
			Before:   map[string]any{"approval_status": generic.StatusPending},
			After:    map[string]any{"approval_status": generic.StatusRejected, "review_comments": comments},
		})
		out = *sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SettleSubscription closes an approved subscription: every unpaid payout
// event is forced to paid with method None, then the subscription becomes
// settled. Settling twice returns ErrAlreadySettled.
func (e *Engine) SettleSubscription(ctx context.Context, id generic.SubscriptionID, actor string) (*payout.Subscription, error) {
	var out payout.Subscription
	now := e.clock()

	err := e.inTx(ctx, func(s Store, audit generic.AuditRecorder) error {
		sub, err := s.GetSubscription(ctx, id)
		if err != nil {
			return generic.Persist("get subscription", err)
		}
		if sub == nil {
			return generic.NotFound("subscription", string(id))
		}
		switch sub.Status {
		case generic.StatusSettled:
			return generic.ErrAlreadySettled
		case generic.StatusApproved:
		default:
			return statusTransition("subscription", string(id), sub.Status, generic.StatusSettled)
		}

		marked, err := s.MarkSubscriptionEventsPaid(ctx, id, now, payout.MethodNone)
		if err != nil {
			return generic.Persist("mark schedule paid", err)
		}
		sub.Status = generic.StatusSettled
		sub.UpdatedAt = now
		if err := s.SaveSubscription(ctx, *sub); err != nil {
			return generic.Persist("save subscription", err)
		}
		audit.Record(generic.AuditEntry{
			ActorID:  actor,
			Table:    "subscriptions",
			RecordID: string(id),
			Action:   generic.AuditSettle,
			Before:   map[string]any{"approval_status": generic.StatusApproved},
			After:    map[string]any{"approval_status": generic.StatusSettled, "payments_marked": marked},
		})
		out = *sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Schedule returns the payout events of a subscription.
func (e *Engine) Schedule(ctx context.Context, id generic.SubscriptionID) ([]payout.PayoutEvent, error) {
	sub, err := e.store.GetSubscription(ctx, id)
	if err != nil {
		return nil, generic.Persist("get subscription", err)
	}
	if sub == nil {
		return nil, generic.NotFound("subscription", string(id))
	}
	return e.store.EventsForSubscription(ctx, id)
}
