package engine

import (
	"context"

	"github.com/warp/payout-engine/agents"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

// Store is everything the approval workflow reads and writes.
type Store interface {
	payout.PlanStore
	payout.SubscriptionStore
	payout.InvestmentStore
	payout.EventStore
	agents.AgentStore
	agents.PaymentStore
	agents.GiftPlanStore
	agents.RewardStore
}

// TxStore runs fn against a transactional view of the store. Every write
// made through the view commits together or not at all.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// AuditStore is a Store that also keeps the audit trail.
type AuditStore interface {
	Store
	generic.AuditLog
	generic.AuditQuerier
}
