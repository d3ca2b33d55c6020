package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

// =============================================================================
// PLAN STORE
// =============================================================================

func (c *conn) SavePlan(ctx context.Context, p payout.Plan) error {
	query := `
		INSERT INTO plans (id, name, segment, payment_type, return_percentage, discount_percentage,
		                   duration_months, is_active, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			segment = excluded.segment,
			payment_type = excluded.payment_type,
			return_percentage = excluded.return_percentage,
			discount_percentage = excluded.discount_percentage,
			duration_months = excluded.duration_months,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`
	_, err := c.q.ExecContext(ctx, query,
		p.ID, p.Name, p.Segment, p.PaymentType,
		p.ReturnPercentage.String(), p.DiscountPercentage.String(),
		p.DurationMonths, p.Active, nullString(p.CreatedBy),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

const planColumns = `id, name, segment, payment_type, return_percentage, discount_percentage,
	duration_months, is_active, created_by, created_at, updated_at`

func (c *conn) GetPlan(ctx context.Context, id generic.PlanID) (*payout.Plan, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *conn) ListPlans(ctx context.Context) ([]payout.Plan, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT `+planColumns+` FROM plans ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []payout.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(s scanner) (payout.Plan, error) {
	var (
		p                  payout.Plan
		rate, discount     string
		createdBy          sql.NullString
		createdAt, updated string
	)
	err := s.Scan(&p.ID, &p.Name, &p.Segment, &p.PaymentType, &rate, &discount,
		&p.DurationMonths, &p.Active, &createdBy, &createdAt, &updated)
	if err == sql.ErrNoRows {
		return p, err
	}
	if err != nil {
		return p, fmt.Errorf("failed to scan plan: %w", err)
	}
	var dec decimalColumns
	p.ReturnPercentage = dec.parse("return_percentage", rate)
	p.DiscountPercentage = dec.parse("discount_percentage", discount)
	if dec.err != nil {
		return p, fmt.Errorf("failed to scan plan: %w", dec.err)
	}
	p.CreatedBy = createdBy.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

// =============================================================================
// SUBSCRIPTION STORE
// =============================================================================

func (c *conn) SaveSubscription(ctx context.Context, sub payout.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, plan_id, agent_id, investor_name, investor_email, investment_amount,
		                           investment_date, approval_status, submitted_by, reviewed_by, review_comments,
		                           approved_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			approval_status = excluded.approval_status,
			reviewed_by = excluded.reviewed_by,
			review_comments = excluded.review_comments,
			approved_at = excluded.approved_at,
			updated_at = excluded.updated_at
	`
	_, err := c.q.ExecContext(ctx, query,
		sub.ID, sub.PlanID, nullString(string(sub.AgentID)), sub.InvestorName, nullString(sub.InvestorEmail),
		sub.Principal.String(), formatDate(sub.InvestmentDate), sub.Status,
		nullString(sub.SubmittedBy), nullString(sub.ReviewedBy), nullString(sub.ReviewComments),
		formatTimePtr(sub.ApprovedAt), formatTime(sub.CreatedAt), formatTime(sub.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

const subscriptionColumns = `id, plan_id, agent_id, investor_name, investor_email, investment_amount,
	investment_date, approval_status, submitted_by, reviewed_by, review_comments,
	approved_at, created_at, updated_at`

func (c *conn) GetSubscription(ctx context.Context, id generic.SubscriptionID) (*payout.Subscription, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListApprovedSubscriptions compares approved_at against [start, end+1day).
func (c *conn) ListApprovedSubscriptions(ctx context.Context, agentID generic.AgentID, period generic.Period) ([]payout.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE agent_id = ? AND approval_status = ?
		  AND approved_at >= ? AND approved_at < ?
		ORDER BY approved_at`

	rows, err := c.q.QueryContext(ctx, query, agentID, generic.StatusApproved,
		formatTime(period.Start.Time), formatTime(period.End.AddDays(1).Time))
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []payout.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (c *conn) DeleteRejectedSubscriptions(ctx context.Context, before time.Time) (int, error) {
	res, err := c.q.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE approval_status = ? AND updated_at < ?`,
		generic.StatusRejected, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete subscriptions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanSubscription(s scanner) (payout.Subscription, error) {
	var (
		sub                                  payout.Subscription
		agentID, email, investmentDate       sql.NullString
		submittedBy, reviewedBy, comments    sql.NullString
		approvedAt                           sql.NullString
		principal, createdAt, updatedAt      string
	)
	err := s.Scan(&sub.ID, &sub.PlanID, &agentID, &sub.InvestorName, &email, &principal,
		&investmentDate, &sub.Status, &submittedBy, &reviewedBy, &comments,
		&approvedAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return sub, err
	}
	if err != nil {
		return sub, fmt.Errorf("failed to scan subscription: %w", err)
	}
	sub.AgentID = generic.AgentID(agentID.String)
	sub.InvestorEmail = email.String
	var dec decimalColumns
	sub.Principal = dec.parse("investment_amount", principal)
	if dec.err != nil {
		return sub, fmt.Errorf("failed to scan subscription: %w", dec.err)
	}
	sub.InvestmentDate = parseDate(investmentDate)
	sub.SubmittedBy = submittedBy.String
	sub.ReviewedBy = reviewedBy.String
	sub.ReviewComments = comments.String
	sub.ApprovedAt = parseTimePtr(approvedAt)
	sub.CreatedAt = parseTime(createdAt)
	sub.UpdatedAt = parseTime(updatedAt)
	return sub, nil
}

// =============================================================================
// INVESTMENT STORE
// =============================================================================

func (c *conn) SaveInvestment(ctx context.Context, inv payout.CompanyInvestment) error {
	query := `
		INSERT INTO company_investments (id, investment_name, description, investment_amount, expected_return,
		                                 return_percentage, investment_date, duration_months, approval_status,
		                                 submitted_by, reviewed_by, review_comments, approved_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			approval_status = excluded.approval_status,
			reviewed_by = excluded.reviewed_by,
			review_comments = excluded.review_comments,
			approved_at = excluded.approved_at,
			updated_at = excluded.updated_at
	`
	_, err := c.q.ExecContext(ctx, query,
		inv.ID, inv.Name, nullString(inv.Description), inv.Principal.String(),
		decimalPtr(inv.ExpectedReturn), decimalPtr(inv.ReturnPercentage),
		inv.InvestmentDate.String(), inv.DurationMonths, inv.Status,
		nullString(inv.SubmittedBy), nullString(inv.ReviewedBy), nullString(inv.ReviewComments),
		formatTimePtr(inv.ApprovedAt), formatTime(inv.CreatedAt), formatTime(inv.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save investment: %w", err)
	}
	return nil
}

func (c *conn) GetInvestment(ctx context.Context, id generic.InvestmentID) (*payout.CompanyInvestment, error) {
	var (
		inv                               payout.CompanyInvestment
		description, expected, rate       sql.NullString
		investmentDate                    sql.NullString
		submittedBy, reviewedBy, comments sql.NullString
		approvedAt                        sql.NullString
		principal, createdAt, updatedAt   string
	)
	err := c.q.QueryRowContext(ctx, `
		SELECT id, investment_name, description, investment_amount, expected_return, return_percentage,
		       investment_date, duration_months, approval_status, submitted_by, reviewed_by,
		       review_comments, approved_at, created_at, updated_at
		FROM company_investments WHERE id = ?`, id,
	).Scan(&inv.ID, &inv.Name, &description, &principal, &expected, &rate,
		&investmentDate, &inv.DurationMonths, &inv.Status, &submittedBy, &reviewedBy,
		&comments, &approvedAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get investment: %w", err)
	}
	inv.Description = description.String
	var dec decimalColumns
	inv.Principal = dec.parse("investment_amount", principal)
	inv.ExpectedReturn = dec.parsePtr("expected_return", expected)
	inv.ReturnPercentage = dec.parsePtr("return_percentage", rate)
	if dec.err != nil {
		return nil, fmt.Errorf("failed to get investment: %w", dec.err)
	}
	inv.InvestmentDate = parseDate(investmentDate)
	inv.SubmittedBy = submittedBy.String
	inv.ReviewedBy = reviewedBy.String
	inv.ReviewComments = comments.String
	inv.ApprovedAt = parseTimePtr(approvedAt)
	inv.CreatedAt = parseTime(createdAt)
	inv.UpdatedAt = parseTime(updatedAt)
	return &inv, nil
}

func (c *conn) DeleteRejectedInvestments(ctx context.Context, before time.Time) (int, error) {
	res, err := c.q.ExecContext(ctx,
		`DELETE FROM company_investments WHERE approval_status = ? AND updated_at < ?`,
		generic.StatusRejected, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete investments: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// =============================================================================
// PAYOUT EVENT STORE
// =============================================================================

// InsertEvents writes the batch in one transaction.
func (c *conn) InsertEvents(ctx context.Context, events []payout.PayoutEvent) error {
	if len(events) == 0 {
		return nil
	}
	return c.batch(ctx, func(q querier) error {
		for _, e := range events {
			if err := insertEvent(ctx, q, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertEvent(ctx context.Context, q querier, e payout.PayoutEvent) error {
	query := `
		INSERT INTO payment_schedules
		(id, subscription_id, investment_id, amount, interest_amount, principal_amount, payment_date,
		 start_date, payout_month, is_principal, payment_type, is_paid, paid_at, payment_method,
		 transaction_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		e.ID, nullString(string(e.SubscriptionID)), nullString(string(e.InvestmentID)),
		e.Amount.String(), e.InterestAmount.String(), e.PrincipalAmount.String(),
		e.PaymentDate.String(), formatDate(e.StartDate), e.Sequence, e.IsPrincipal,
		e.PaymentType, e.Paid, formatTimePtr(e.PaidAt), e.Method,
		nullString(e.TransactionID), formatTime(e.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("duplicate payout event %s: %w", e.ID, err)
		}
		return fmt.Errorf("failed to insert payout event: %w", err)
	}
	return nil
}

const eventColumns = `id, subscription_id, investment_id, amount, interest_amount, principal_amount,
	payment_date, start_date, payout_month, is_principal, payment_type, is_paid, paid_at,
	payment_method, transaction_id, created_at`

func (c *conn) GetEvent(ctx context.Context, id generic.EventID) (*payout.PayoutEvent, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM payment_schedules WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// MarkEventPaid only touches the paid-state columns.
func (c *conn) MarkEventPaid(ctx context.Context, e payout.PayoutEvent) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE payment_schedules
		SET is_paid = ?, paid_at = ?, payment_method = ?, transaction_id = ?
		WHERE id = ?`,
		e.Paid, formatTimePtr(e.PaidAt), e.Method, nullString(e.TransactionID), e.ID)
	if err != nil {
		return fmt.Errorf("failed to mark payout paid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.NotFound("payout event", string(e.ID))
	}
	return nil
}

func (c *conn) MarkSubscriptionEventsPaid(ctx context.Context, id generic.SubscriptionID, at time.Time, method payout.PaymentMethod) (int, error) {
	res, err := c.q.ExecContext(ctx, `
		UPDATE payment_schedules
		SET is_paid = TRUE, paid_at = ?, payment_method = ?
		WHERE subscription_id = ? AND is_paid = FALSE`,
		formatTime(at), method, id)
	if err != nil {
		return 0, fmt.Errorf("failed to mark schedule paid: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (c *conn) EventsForSubscription(ctx context.Context, id generic.SubscriptionID) ([]payout.PayoutEvent, error) {
	return c.queryEvents(ctx, `SELECT `+eventColumns+` FROM payment_schedules
		WHERE subscription_id = ? ORDER BY payment_date, payout_month`, id)
}

func (c *conn) EventsForInvestment(ctx context.Context, id generic.InvestmentID) ([]payout.PayoutEvent, error) {
	return c.queryEvents(ctx, `SELECT `+eventColumns+` FROM payment_schedules
		WHERE investment_id = ? ORDER BY payment_date, payout_month`, id)
}

func (c *conn) DueEvents(ctx context.Context, day generic.TimePoint) ([]payout.PayoutEvent, error) {
	return c.queryEvents(ctx, `SELECT `+eventColumns+` FROM payment_schedules
		WHERE payment_date = ? AND is_paid = FALSE ORDER BY payout_month, id`, day.String())
}

func (c *conn) queryEvents(ctx context.Context, query string, args ...any) ([]payout.PayoutEvent, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payout events: %w", err)
	}
	defer rows.Close()

	var events []payout.PayoutEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanEvent(s scanner) (payout.PayoutEvent, error) {
	var (
		e                                   payout.PayoutEvent
		subscriptionID, investmentID        sql.NullString
		amount, interest, principal         string
		paymentDate, createdAt              string
		startDate, paidAt, transactionID    sql.NullString
	)
	err := s.Scan(&e.ID, &subscriptionID, &investmentID, &amount, &interest, &principal,
		&paymentDate, &startDate, &e.Sequence, &e.IsPrincipal, &e.PaymentType, &e.Paid, &paidAt,
		&e.Method, &transactionID, &createdAt)
	if err == sql.ErrNoRows {
		return e, err
	}
	if err != nil {
		return e, fmt.Errorf("failed to scan payout event: %w", err)
	}
	e.SubscriptionID = generic.SubscriptionID(subscriptionID.String)
	e.InvestmentID = generic.InvestmentID(investmentID.String)
	var dec decimalColumns
	e.Amount = dec.parse("amount", amount)
	e.InterestAmount = dec.parse("interest_amount", interest)
	e.PrincipalAmount = dec.parse("principal_amount", principal)
	if dec.err != nil {
		return e, fmt.Errorf("failed to scan payout event: %w", dec.err)
	}
	e.PaymentDate = parseDate(sql.NullString{String: paymentDate, Valid: true})
	e.StartDate = parseDate(startDate)
	e.PaidAt = parseTimePtr(paidAt)
	e.TransactionID = transactionID.String
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}
