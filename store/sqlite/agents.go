package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/warp/payout-engine/agents"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// AGENT STORE
// =============================================================================

func (c *conn) SaveAgent(ctx context.Context, a agents.Agent) error {
	query := `
		INSERT INTO agents (id, name, email, agent_type, parent_agent_id, commission_percentage,
		                    approval_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			agent_type = excluded.agent_type,
			parent_agent_id = excluded.parent_agent_id,
			commission_percentage = excluded.commission_percentage,
			approval_status = excluded.approval_status,
			updated_at = excluded.updated_at
	`
	_, err := c.q.ExecContext(ctx, query,
		a.ID, a.Name, nullString(a.Email), nullString(string(a.Type)), nullString(string(a.ParentID)),
		a.CommissionPercentage.String(), a.Status, formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save agent: %w", err)
	}
	return nil
}

func (c *conn) GetAgent(ctx context.Context, id generic.AgentID) (*agents.Agent, error) {
	var (
		a                         agents.Agent
		email, agentType, parent  sql.NullString
		rate, createdAt, updated  string
	)
	err := c.q.QueryRowContext(ctx, `
		SELECT id, name, email, agent_type, parent_agent_id, commission_percentage,
		       approval_status, created_at, updated_at
		FROM agents WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &email, &agentType, &parent, &rate, &a.Status, &createdAt, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	a.Email = email.String
	a.Type = agents.AgentType(agentType.String)
	a.ParentID = generic.AgentID(parent.String)
	var dec decimalColumns
	a.CommissionPercentage = dec.parse("commission_percentage", rate)
	if dec.err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", dec.err)
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updated)
	return &a, nil
}

// =============================================================================
// AGENT PAYMENTS
// =============================================================================

func (c *conn) InsertAgentPayments(ctx context.Context, payments []agents.AgentPayment) error {
	if len(payments) == 0 {
		return nil
	}
	query := `
		INSERT INTO agent_payments (id, agent_id, subscription_id, amount, commission_percentage,
		                            differential_percentage, payment_date, is_paid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return c.batch(ctx, func(q querier) error {
		for _, p := range payments {
			_, err := q.ExecContext(ctx, query,
				p.ID, p.AgentID, p.SubscriptionID, p.Amount.String(), p.CommissionPercentage.String(),
				p.DifferentialPercentage.String(), p.PaymentDate.String(), p.Paid, formatTime(p.CreatedAt),
			)
			if err != nil {
				return fmt.Errorf("failed to insert agent payment: %w", err)
			}
		}
		return nil
	})
}

func (c *conn) PaymentsForAgent(ctx context.Context, id generic.AgentID) ([]agents.AgentPayment, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, agent_id, subscription_id, amount, commission_percentage, differential_percentage,
		       payment_date, is_paid, created_at
		FROM agent_payments WHERE agent_id = ? ORDER BY payment_date, created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent payments: %w", err)
	}
	defer rows.Close()

	var out []agents.AgentPayment
	for rows.Next() {
		var (
			p                          agents.AgentPayment
			amount, rate, diff         string
			paymentDate, createdAt     string
		)
		if err := rows.Scan(&p.ID, &p.AgentID, &p.SubscriptionID, &amount, &rate, &diff,
			&paymentDate, &p.Paid, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent payment: %w", err)
		}
		var dec decimalColumns
		p.Amount = dec.parse("amount", amount)
		p.CommissionPercentage = dec.parse("commission_percentage", rate)
		p.DifferentialPercentage = dec.parse("differential_percentage", diff)
		if dec.err != nil {
			return nil, fmt.Errorf("failed to scan agent payment: %w", dec.err)
		}
		p.PaymentDate = parseDate(sql.NullString{String: paymentDate, Valid: true})
		p.CreatedAt = parseTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// GIFT PLANS
// =============================================================================

func (c *conn) SaveGiftPlan(ctx context.Context, g agents.GiftPlan) error {
	query := `
		INSERT INTO gift_plans (id, plan_name, target_investors, target_amount, reward_type, reward_value,
		                        reward_description, duration_months, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			plan_name = excluded.plan_name,
			target_investors = excluded.target_investors,
			target_amount = excluded.target_amount,
			reward_type = excluded.reward_type,
			reward_value = excluded.reward_value,
			reward_description = excluded.reward_description,
			duration_months = excluded.duration_months,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`
	_, err := c.q.ExecContext(ctx, query,
		g.ID, g.Name, g.TargetInvestors, g.TargetAmount.String(), nullString(string(g.RewardType)),
		g.RewardValue.String(), nullString(g.Description), g.DurationMonths, g.Active,
		formatTime(g.CreatedAt), formatTime(g.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save gift plan: %w", err)
	}
	return nil
}

func (c *conn) ActiveGiftPlans(ctx context.Context) ([]agents.GiftPlan, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, plan_name, target_investors, target_amount, reward_type, reward_value,
		       reward_description, duration_months, is_active, created_at, updated_at
		FROM gift_plans WHERE is_active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query gift plans: %w", err)
	}
	defer rows.Close()

	var out []agents.GiftPlan
	for rows.Next() {
		var (
			g                              agents.GiftPlan
			targetAmount, rewardValue      string
			rewardType, description        sql.NullString
			createdAt, updated             string
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.TargetInvestors, &targetAmount, &rewardType, &rewardValue,
			&description, &g.DurationMonths, &g.Active, &createdAt, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan gift plan: %w", err)
		}
		var dec decimalColumns
		g.TargetAmount = dec.parse("target_amount", targetAmount)
		g.RewardValue = dec.parse("reward_value", rewardValue)
		if dec.err != nil {
			return nil, fmt.Errorf("failed to scan gift plan: %w", dec.err)
		}
		g.RewardType = agents.RewardType(rewardType.String)
		g.Description = description.String
		g.CreatedAt = parseTime(createdAt)
		g.UpdatedAt = parseTime(updated)
		out = append(out, g)
	}
	return out, rows.Err()
}

// =============================================================================
// AGENT REWARDS
// =============================================================================

func (c *conn) InsertRewards(ctx context.Context, rewards []agents.AgentReward) error {
	if len(rewards) == 0 {
		return nil
	}
	query := `
		INSERT INTO agent_rewards (id, agent_id, gift_plan_id, performance_month, achieved_investors,
		                           achieved_amount, is_rewarded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	return c.batch(ctx, func(q querier) error {
		for _, r := range rewards {
			_, err := q.ExecContext(ctx, query,
				r.ID, r.AgentID, r.GiftPlanID, r.PerformanceMonth, r.AchievedInvestors,
				r.AchievedAmount.String(), r.Rewarded, formatTime(r.CreatedAt),
			)
			if err != nil {
				return fmt.Errorf("failed to insert agent reward: %w", err)
			}
		}
		return nil
	})
}

func (c *conn) HasReward(ctx context.Context, agentID generic.AgentID, giftPlanID generic.GiftPlanID, month string) (bool, error) {
	var count int
	err := c.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM agent_rewards
		WHERE agent_id = ? AND gift_plan_id = ? AND performance_month = ?`,
		agentID, giftPlanID, month,
	).Scan(&count)
	return count > 0, err
}

func (c *conn) RewardsForAgent(ctx context.Context, id generic.AgentID) ([]agents.AgentReward, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, agent_id, gift_plan_id, performance_month, achieved_investors, achieved_amount,
		       is_rewarded, created_at
		FROM agent_rewards WHERE agent_id = ? ORDER BY performance_month, created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent rewards: %w", err)
	}
	defer rows.Close()

	var out []agents.AgentReward
	for rows.Next() {
		var (
			r                 agents.AgentReward
			amount, createdAt string
		)
		if err := rows.Scan(&r.ID, &r.AgentID, &r.GiftPlanID, &r.PerformanceMonth, &r.AchievedInvestors,
			&amount, &r.Rewarded, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent reward: %w", err)
		}
		var dec decimalColumns
		r.AchievedAmount = dec.parse("achieved_amount", amount)
		if dec.err != nil {
			return nil, fmt.Errorf("failed to scan agent reward: %w", dec.err)
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func (c *conn) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	before, _ := json.Marshal(entry.Before)
	after, _ := json.Marshal(entry.After)
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO audit_trail (id, timestamp, actor_id, table_name, record_id, action, old_values, new_values)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, formatTime(entry.Timestamp), nullString(entry.ActorID), entry.Table,
		nullString(entry.RecordID), entry.Action, string(before), string(after),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (c *conn) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	query := `SELECT id, timestamp, actor_id, table_name, record_id, action, old_values, new_values
		FROM audit_trail WHERE 1 = 1`
	var args []any
	if filter.Table != "" {
		query += ` AND table_name = ?`
		args = append(args, filter.Table)
	}
	if filter.RecordID != "" {
		query += ` AND record_id = ?`
		args = append(args, filter.RecordID)
	}
	if len(filter.Actions) > 0 {
		query += ` AND action IN (` + placeholders(len(filter.Actions)) + `)`
		for _, a := range filter.Actions {
			args = append(args, a)
		}
	}
	if filter.From != nil {
		query += ` AND timestamp >= ?`
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		query += ` AND timestamp <= ?`
		args = append(args, formatTime(*filter.To))
	}
	query += ` ORDER BY timestamp, id`

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	var out []generic.AuditEntry
	for rows.Next() {
		var (
			e                          generic.AuditEntry
			timestamp                  string
			actorID, recordID          sql.NullString
			before, after              sql.NullString
		)
		if err := rows.Scan(&e.ID, &timestamp, &actorID, &e.Table, &recordID, &e.Action, &before, &after); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Timestamp = parseTime(timestamp)
		e.ActorID = actorID.String
		e.RecordID = recordID.String
		if before.Valid && before.String != "null" {
			json.Unmarshal([]byte(before.String), &e.Before)
		}
		if after.Valid && after.String != "null" {
			json.Unmarshal([]byte(after.String), &e.After)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
