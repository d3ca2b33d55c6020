package engine

import (
	"context"

	"github.com/warp/payout-engine/agents"
	"github.com/warp/payout-engine/generic"
)

// CreateAgent records a pending agent. A parent, when given, must exist.
func (e *Engine) CreateAgent(ctx context.Context, agent agents.Agent) (agents.Agent, error) {
	if agent.ID == "" {
		agent.ID = generic.AgentID(e.newID())
	}
	if agent.Status == "" {
		agent.Status = generic.StatusPending
	}
	now := e.clock()
	agent.CreatedAt, agent.UpdatedAt = now, now
	if err := agent.Validate(); err != nil {
		return agents.Agent{}, err
	}

	err := e.inTx(ctx, func(s Store, audit generic.AuditRecorder) error {
		if agent.ParentID != "" {
			parent, err := s.GetAgent(ctx, agent.ParentID)
			if err != nil {
				return generic.Persist("get agent", err)
			}
			if parent == nil {
				return generic.NotFound("agent", string(agent.ParentID))
			}
		}
		if err := s.SaveAgent(ctx, agent); err != nil {
			return generic.Persist("save agent", err)
		}
		audit.Record(generic.AuditEntry{
			Table:    "agents",
			RecordID: string(agent.ID),
			Action:   generic.AuditCreate,
			After:    map[string]any{"commission_percentage": agent.CommissionPercentage.String(), "parent_agent_id": agent.ParentID},
		})
		return nil
	})
	if err != nil {
		return agents.Agent{}, err
	}
	return agent, nil
}

// ApproveAgent lets a pending agent take part in commission cascades.
func (e *Engine) ApproveAgent(ctx context.Context, id generic.AgentID, reviewer string) (*agents.Agent, error) {
	var out agents.Agent
	err := e.inTx(ctx, func(s Store, audit generic.AuditRecorder) error {
		agent, err := s.GetAgent(ctx, id)
		if err != nil {
			return generic.Persist("get agent", err)
		}
		if agent == nil {
			return generic.NotFound("agent", string(id))
		}
		if agent.Status != generic.StatusPending {
			return statusTransition("agent", string(id), agent.Status, generic.StatusApproved)
		}
		agent.Status = generic.StatusApproved
		agent.UpdatedAt = e.clock()
		if err := s.SaveAgent(ctx, *agent); err != nil {
			return generic.Persist("save agent", err)
		}
		audit.Record(generic.AuditEntry{
			ActorID:  reviewer,
			Table:    "agents",
			RecordID: string(id),
			Action:   generic.AuditApprove,
			Before:   map[string]any{"approval_status": generic.StatusPending},
			After:    map[string]any{"approval_status": generic.StatusApproved},
		})
		out = *agent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *Engine) CreateGiftPlan(ctx context.Context, plan agents.GiftPlan) (agents.GiftPlan, error) {
	if plan.ID == "" {
		plan.ID = generic.GiftPlanID(e.newID())
	}
	now := e.clock()
	plan.CreatedAt, plan.UpdatedAt = now, now
	if err := plan.Validate(); err != nil {
		return agents.GiftPlan{}, err
	}
	err := e.inTx(ctx, func(s Store, audit generic.AuditRecorder) error {
		if err := s.SaveGiftPlan(ctx, plan); err != nil {
			return generic.Persist("save gift plan", err)
		}
		audit.Record(generic.AuditEntry{
			Table:    "gift_plans",
			RecordID: string(plan.ID),
			Action:   generic.AuditCreate,
			After:    map[string]any{"target_investors": plan.TargetInvestors, "target_amount": plan.TargetAmount.String()},
		})
		return nil
	})
	if err != nil {
		return agents.GiftPlan{}, err
	}
	return plan, nil
}

func (e *Engine) AgentPayments(ctx context.Context, id generic.AgentID) ([]agents.AgentPayment, error) {
	return e.store.PaymentsForAgent(ctx, id)
}

func (e *Engine) AgentRewards(ctx context.Context, id generic.AgentID) ([]agents.AgentReward, error) {
	return e.store.RewardsForAgent(ctx, id)
}
