package agents

import (
	"context"

	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

// AgentReader returns (nil, nil) for an unknown agent.
type AgentReader interface {
	GetAgent(ctx context.Context, id generic.AgentID) (*Agent, error)
}

type AgentStore interface {
	AgentReader
	SaveAgent(ctx context.Context, agent Agent) error
}

type PaymentWriter interface {
	// InsertAgentPayments persists all payments atomically.
	InsertAgentPayments(ctx context.Context, payments []AgentPayment) error
}

type PaymentStore interface {
	PaymentWriter
	PaymentsForAgent(ctx context.Context, id generic.AgentID) ([]AgentPayment, error)
}

type GiftPlanReader interface {
	ActiveGiftPlans(ctx context.Context) ([]GiftPlan, error)
}

type GiftPlanStore interface {
	GiftPlanReader
	SaveGiftPlan(ctx context.Context, plan GiftPlan) error
}

// SubscriptionLister is the subscription query the reward engine aggregates.
type SubscriptionLister interface {
	ListApprovedSubscriptions(ctx context.Context, agentID generic.AgentID, period generic.Period) ([]payout.Subscription, error)
}

type RewardWriter interface {
	InsertRewards(ctx context.Context, rewards []AgentReward) error
	HasReward(ctx context.Context, agentID generic.AgentID, giftPlanID generic.GiftPlanID, month string) (bool, error)
}

type RewardStore interface {
	RewardWriter
	RewardsForAgent(ctx context.Context, id generic.AgentID) ([]AgentReward, error)
}
