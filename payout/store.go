package payout

import (
	"context"
	"time"

	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// STORE CONTRACTS
// =============================================================================
// Lookups return (nil, nil) when the record does not exist; callers turn that
// into a NotFoundError with the context they have.

// PlanReader looks plans up by id.
type PlanReader interface {
	GetPlan(ctx context.Context, id generic.PlanID) (*Plan, error)
}

type PlanStore interface {
	PlanReader
	SavePlan(ctx context.Context, plan Plan) error
	ListPlans(ctx context.Context) ([]Plan, error)
}

type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, sub Subscription) error
	GetSubscription(ctx context.Context, id generic.SubscriptionID) (*Subscription, error)

	// ListApprovedSubscriptions returns subscriptions in the approved state
	// sold directly by agentID whose approval day falls inside period.
	ListApprovedSubscriptions(ctx context.Context, agentID generic.AgentID, period generic.Period) ([]Subscription, error)

	// DeleteRejectedSubscriptions removes rejected subscriptions last
	// updated before the cutoff and returns how many were removed.
	DeleteRejectedSubscriptions(ctx context.Context, before time.Time) (int, error)
}

type InvestmentStore interface {
	SaveInvestment(ctx context.Context, inv CompanyInvestment) error
	GetInvestment(ctx context.Context, id generic.InvestmentID) (*CompanyInvestment, error)
	DeleteRejectedInvestments(ctx context.Context, before time.Time) (int, error)
}

// EventWriter is the single write a generator performs.
type EventWriter interface {
	// InsertEvents persists all events atomically: either every row becomes
	// visible or none does.
	InsertEvents(ctx context.Context, events []PayoutEvent) error
}

type EventStore interface {
	EventWriter
	GetEvent(ctx context.Context, id generic.EventID) (*PayoutEvent, error)

	// MarkEventPaid persists the paid-state columns of an event.
	MarkEventPaid(ctx context.Context, event PayoutEvent) error

	// MarkSubscriptionEventsPaid flips every unpaid event of a subscription to
	// paid with the given time and method, returning the number changed.
	MarkSubscriptionEventsPaid(ctx context.Context, id generic.SubscriptionID, at time.Time, method PaymentMethod) (int, error)

	// EventsForSubscription / EventsForInvestment are ordered by payout month.
	EventsForSubscription(ctx context.Context, id generic.SubscriptionID) ([]PayoutEvent, error)
	EventsForInvestment(ctx context.Context, id generic.InvestmentID) ([]PayoutEvent, error)

	// DueEvents returns unpaid events whose payment date is the given day.
	DueEvents(ctx context.Context, day generic.TimePoint) ([]PayoutEvent, error)
}
