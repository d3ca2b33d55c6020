package agents

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// REWARD ENGINE
// =============================================================================

// RewardEngine evaluates the approved chain of an agent against every active
// gift plan for one calendar month.
//
// Each evaluation starts from scratch. With Dedupe off, evaluating the same
// month twice records the same (agent, gift plan, month) triple twice; with
// Dedupe on, triples that already have a record are skipped.
type RewardEngine struct {
	Agents        AgentReader
	GiftPlans     GiftPlanReader
	Subscriptions SubscriptionLister
	Rewards       RewardWriter
	Audit         generic.AuditRecorder
	Logger        logrus.FieldLogger
	NewID         generic.IDFunc
	Now           func() time.Time
	Dedupe        bool
}

// Achievement is what one agent sold directly within a month.
type Achievement struct {
	AgentID   generic.AgentID
	Investors int
	Amount    decimal.Decimal
}

// Evaluate records reward eligibility for agentID and its approved ancestors
// in the calendar month containing day.
func (e *RewardEngine) Evaluate(ctx context.Context, agentID generic.AgentID, day generic.TimePoint) ([]AgentReward, error) {
	if day.IsZero() {
		return nil, generic.Invalid("approval_date", "required")
	}
	logger := e.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	plans, err := e.GiftPlans.ActiveGiftPlans(ctx)
	if err != nil {
		return nil, generic.Persist("list gift plans", err)
	}
	if len(plans) == 0 {
		return nil, nil
	}

	chain, err := ApprovedChain(ctx, e.Agents, agentID, logger)
	if err != nil {
		return nil, err
	}

	month := generic.MonthOf(day)
	newID := e.NewID.OrDefault()
	now := time.Now().UTC()
	if e.Now != nil {
		now = e.Now().UTC()
	}

	var rewards []AgentReward
	for _, agent := range chain {
		achieved, err := e.achievement(ctx, agent.ID, month)
		if err != nil {
			return nil, err
		}
		for _, plan := range plans {
			if !plan.Active || !plan.Eligible(achieved.Investors, achieved.Amount) {
				continue
			}
			if e.Dedupe {
				exists, err := e.Rewards.HasReward(ctx, agent.ID, plan.ID, month.Key())
				if err != nil {
					return nil, generic.Persist("lookup reward", err)
				}
				if exists {
					continue
				}
			}
			rewards = append(rewards, AgentReward{
				ID:                newID(),
				AgentID:           agent.ID,
				GiftPlanID:        plan.ID,
				PerformanceMonth:  month.Key(),
				AchievedInvestors: achieved.Investors,
				AchievedAmount:    generic.RoundMoney(achieved.Amount),
				CreatedAt:         now,
			})
		}
	}
	if len(rewards) == 0 {
		return nil, nil
	}

	if err := e.Rewards.InsertRewards(ctx, rewards); err != nil {
		return nil, generic.Persist("insert agent rewards", err)
	}

	logger.WithFields(logrus.Fields{
		"agent_id": agentID,
		"month":    month.Key(),
		"count":    len(rewards),
	}).Info("agent rewards recorded")

	if e.Audit != nil {
		e.Audit.Record(generic.AuditEntry{
			Table:    "agent_rewards",
			RecordID: string(agentID),
			Action:   generic.AuditGenerateRewards,
			After:    map[string]any{"count": len(rewards), "month": month.Key()},
		})
	}
	return rewards, nil
}

// achievement aggregates an agent's direct approved subscriptions in period.
func (e *RewardEngine) achievement(ctx context.Context, agentID generic.AgentID, period generic.Period) (Achievement, error) {
	subs, err := e.Subscriptions.ListApprovedSubscriptions(ctx, agentID, period)
	if err != nil {
		return Achievement{}, generic.Persist("list subscriptions", err)
	}
	principals := make([]decimal.Decimal, 0, len(subs))
	for _, s := range subs {
		principals = append(principals, s.Principal)
	}
	return Achievement{AgentID: agentID, Investors: len(subs), Amount: generic.SumMoney(principals...)}, nil
}
