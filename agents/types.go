/*
Package agents distributes commission up the agent hierarchy and evaluates
agents against monthly reward programs.

KEY CONCEPTS:
  - Agent: a seller with a commission rate and an optional parent agent
  - Approved chain: the direct agent followed by approved ancestors, cut at
    the first missing or unapproved parent
  - Differential commission: each tier is paid only the rate it adds over
    the tier below it
  - Gift plan: a reward program with investor-count and amount targets,
    evaluated per calendar month

SEE ALSO:
  - chain.go: Ancestor walk with cycle guard
  - commission.go: Commission cascade
  - rewards.go: Reward engine
*/
package agents

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// AGENT
// =============================================================================

type AgentType string

const (
	AgentMain AgentType = "Main"
	AgentSub  AgentType = "Sub"
)

type Agent struct {
	ID                   generic.AgentID        `json:"id" validate:"required"`
	Name                 string                 `json:"name" validate:"required"`
	Email                string                 `json:"email,omitempty" validate:"omitempty,email"`
	Type                 AgentType              `json:"agent_type" validate:"omitempty,oneof=Main Sub"`
	ParentID             generic.AgentID        `json:"parent_agent_id,omitempty"`
	CommissionPercentage decimal.Decimal        `json:"commission_percentage"`
	Status               generic.ApprovalStatus `json:"approval_status" validate:"required,oneof=pending approved rejected"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

func (a Agent) Validate() error {
	if err := generic.ValidateStruct(a); err != nil {
		return err
	}
	if a.CommissionPercentage.IsNegative() || a.CommissionPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return generic.Invalid("commission_percentage", "must be between 0 and 100")
	}
	if a.ParentID != "" && a.ParentID == a.ID {
		return generic.Invalid("parent_agent_id", "must not reference the agent itself")
	}
	return nil
}

// AgentPayment is one tier's differential share of a subscription's
// commission. Amount is never cumulative across tiers.
type AgentPayment struct {
	ID                     string                 `json:"id"`
	AgentID                generic.AgentID        `json:"agent_id"`
	SubscriptionID         generic.SubscriptionID `json:"subscription_id"`
	Amount                 decimal.Decimal        `json:"amount"`
	CommissionPercentage   decimal.Decimal        `json:"commission_percentage"`
	DifferentialPercentage decimal.Decimal        `json:"differential_percentage"`
	PaymentDate            generic.TimePoint      `json:"payment_date"`
	Paid                   bool                   `json:"is_paid"`
	CreatedAt              time.Time              `json:"created_at"`
}

// =============================================================================
// GIFT PLAN & REWARD
// =============================================================================

type RewardType string

const (
	RewardBonus    RewardType = "BONUS"
	RewardPhysical RewardType = "PHYSICAL"
)

type GiftPlan struct {
	ID              generic.GiftPlanID `json:"id" validate:"required"`
	Name            string             `json:"plan_name" validate:"required"`
	TargetInvestors int                `json:"target_investors" validate:"gte=0"`
	TargetAmount    decimal.Decimal    `json:"target_amount"`
	RewardType      RewardType         `json:"reward_type" validate:"omitempty,oneof=BONUS PHYSICAL"`
	RewardValue     decimal.Decimal    `json:"reward_value"`
	Description     string             `json:"reward_description,omitempty"`
	DurationMonths  int                `json:"duration_months" validate:"gte=0"`
	Active          bool               `json:"is_active"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func (g GiftPlan) Validate() error {
	if err := generic.ValidateStruct(g); err != nil {
		return err
	}
	if g.TargetAmount.IsNegative() {
		return generic.Invalid("target_amount", "must not be negative")
	}
	if g.TargetInvestors == 0 && !g.TargetAmount.IsPositive() {
		return generic.Invalid("target_investors", "a target is required")
	}
	if g.RewardValue.IsNegative() {
		return generic.Invalid("reward_value", "must not be negative")
	}
	return nil
}

// Eligible reports whether the achieved figures meet either target.
func (g GiftPlan) Eligible(investors int, amount decimal.Decimal) bool {
	return investors >= g.TargetInvestors || amount.GreaterThanOrEqual(g.TargetAmount)
}

// AgentReward records eligibility for one (agent, gift plan, month) triple.
type AgentReward struct {
	ID                string             `json:"id"`
	AgentID           generic.AgentID    `json:"agent_id"`
	GiftPlanID        generic.GiftPlanID `json:"gift_plan_id"`
	PerformanceMonth  string             `json:"performance_month"` // "2006-01"
	AchievedInvestors int                `json:"achieved_investors"`
	AchievedAmount    decimal.Decimal    `json:"achieved_amount"`
	Rewarded          bool               `json:"is_rewarded"`
	CreatedAt         time.Time          `json:"created_at"`
}
