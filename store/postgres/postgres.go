/*
Package postgres implements the storage interfaces on PostgreSQL through gorm.

PURPOSE:
  Production backend for multi-instance deployments. Behaves exactly like
  store/sqlite: lookups return (nil, nil) for unknown ids, batch writes are
  atomic and payout events only ever change their paid-state columns.

CONCURRENCY:
  WithTx runs inside db.Transaction. Reads of a subscription or investment
  inside a transaction take a row lock (SELECT ... FOR UPDATE), so two
  concurrent approvals of the same record serialize and the loser sees the
  winner's status.

SEE ALSO:
  - models.go: Row types and conversions
  - store/sqlite: Single-node backend with the same schema
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warp/payout-engine/agents"
	"github.com/warp/payout-engine/engine"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store implements engine.TxStore and the audit log on a gorm handle.
type Store struct {
	db   *gorm.DB
	inTx bool
}

// New connects to dsn and migrates the schema.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return NewWithDB(db)
}

// NewWithDB wraps an existing gorm handle and migrates the schema.
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&planRow{},
		&subscriptionRow{},
		&investmentRow{},
		&eventRow{},
		&agentRow{},
		&agentPaymentRow{},
		&giftPlanRow{},
		&agentRewardRow{},
		&auditRow{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store engine.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, inTx: true})
	})
}

var (
	_ engine.TxStore    = (*Store)(nil)
	_ engine.AuditStore = (*Store)(nil)
)

// forUpdate adds a row lock when running inside WithTx.
func (s *Store) forUpdate(ctx context.Context) *gorm.DB {
	db := s.db.WithContext(ctx)
	if s.inTx {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func upsert(columns ...string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}
}

// =============================================================================
// PLANS
// =============================================================================

func (s *Store) SavePlan(ctx context.Context, p payout.Plan) error {
	row := toPlanRow(p)
	err := s.db.WithContext(ctx).Clauses(upsert(
		"name", "segment", "payment_type", "return_percentage", "discount_percentage",
		"duration_months", "is_active", "updated_at",
	)).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, id generic.PlanID) (*payout.Plan, error) {
	var row planRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	p := row.toDomain()
	return &p, nil
}

func (s *Store) ListPlans(ctx context.Context) ([]payout.Plan, error) {
	var rows []planRow
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	out := make([]payout.Plan, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

func (s *Store) SaveSubscription(ctx context.Context, sub payout.Subscription) error {
	row := toSubscriptionRow(sub)
	err := s.db.WithContext(ctx).Clauses(upsert(
		"approval_status", "reviewed_by", "review_comments", "approved_at", "updated_at",
	)).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, id generic.SubscriptionID) (*payout.Subscription, error) {
	var row subscriptionRow
	err := s.forUpdate(ctx).First(&row, "id = ?", string(id)).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	sub := row.toDomain()
	return &sub, nil
}

func (s *Store) ListApprovedSubscriptions(ctx context.Context, agentID generic.AgentID, period generic.Period) ([]payout.Subscription, error) {
	var rows []subscriptionRow
	err := s.db.WithContext(ctx).
		Where("agent_id = ? AND approval_status = ?", string(agentID), string(generic.StatusApproved)).
		Where("approved_at >= ? AND approved_at < ?", period.Start.Time, period.End.AddDays(1).Time).
		Order("approved_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	out := make([]payout.Subscription, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) DeleteRejectedSubscriptions(ctx context.Context, before time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("approval_status = ? AND updated_at < ?", string(generic.StatusRejected), before).
		Delete(&subscriptionRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete subscriptions: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// =============================================================================
// COMPANY INVESTMENTS
// =============================================================================

func (s *Store) SaveInvestment(ctx context.Context, inv payout.CompanyInvestment) error {
	row := toInvestmentRow(inv)
	err := s.db.WithContext(ctx).Clauses(upsert(
		"approval_status", "reviewed_by", "review_comments", "approved_at", "updated_at",
	)).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save investment: %w", err)
	}
	return nil
}

func (s *Store) GetInvestment(ctx context.Context, id generic.InvestmentID) (*payout.CompanyInvestment, error) {
	var row investmentRow
	err := s.forUpdate(ctx).First(&row, "id = ?", string(id)).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get investment: %w", err)
	}
	inv := row.toDomain()
	return &inv, nil
}

func (s *Store) DeleteRejectedInvestments(ctx context.Context, before time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("approval_status = ? AND updated_at < ?", string(generic.StatusRejected), before).
		Delete(&investmentRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete investments: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// =============================================================================
// PAYOUT EVENTS
// =============================================================================

// InsertEvents writes the batch as one statement inside gorm's default
// transaction.
func (s *Store) InsertEvents(ctx context.Context, events []payout.PayoutEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]eventRow, 0, len(events))
	for _, e := range events {
		rows = append(rows, toEventRow(e))
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert payout events: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id generic.EventID) (*payout.PayoutEvent, error) {
	var row eventRow
	err := s.forUpdate(ctx).First(&row, "id = ?", string(id)).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payout event: %w", err)
	}
	e := row.toDomain()
	return &e, nil
}

func (s *Store) MarkEventPaid(ctx context.Context, e payout.PayoutEvent) error {
	res := s.db.WithContext(ctx).Model(&eventRow{}).Where("id = ?", string(e.ID)).Updates(map[string]any{
		"is_paid":        e.Paid,
		"paid_at":        e.PaidAt,
		"payment_method": string(e.Method),
		"transaction_id": e.TransactionID,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to mark payout paid: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return generic.NotFound("payout event", string(e.ID))
	}
	return nil
}

func (s *Store) MarkSubscriptionEventsPaid(ctx context.Context, id generic.SubscriptionID, at time.Time, method payout.PaymentMethod) (int, error) {
	res := s.db.WithContext(ctx).Model(&eventRow{}).
		Where("subscription_id = ? AND is_paid = ?", string(id), false).
		Updates(map[string]any{"is_paid": true, "paid_at": at.UTC(), "payment_method": string(method)})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark schedule paid: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *Store) EventsForSubscription(ctx context.Context, id generic.SubscriptionID) ([]payout.PayoutEvent, error) {
	return s.findEvents(ctx, "subscription_id = ?", string(id))
}

func (s *Store) EventsForInvestment(ctx context.Context, id generic.InvestmentID) ([]payout.PayoutEvent, error) {
	return s.findEvents(ctx, "investment_id = ?", string(id))
}

func (s *Store) DueEvents(ctx context.Context, day generic.TimePoint) ([]payout.PayoutEvent, error) {
	return s.findEvents(ctx, "payment_date = ? AND is_paid = ?", day.Time, false)
}

func (s *Store) findEvents(ctx context.Context, where string, args ...any) ([]payout.PayoutEvent, error) {
	var rows []eventRow
	err := s.db.WithContext(ctx).Where(where, args...).Order("payment_date, payout_month, id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query payout events: %w", err)
	}
	out := make([]payout.PayoutEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// =============================================================================
// AGENTS
// =============================================================================

func (s *Store) SaveAgent(ctx context.Context, a agents.Agent) error {
	row := toAgentRow(a)
	err := s.db.WithContext(ctx).Clauses(upsert(
		"name", "email", "agent_type", "parent_agent_id", "commission_percentage",
		"approval_status", "updated_at",
	)).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save agent: %w", err)
	}
	return nil
}

func (s *Store) GetAgent(ctx context.Context, id generic.AgentID) (*agents.Agent, error) {
	var row agentRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	a := row.toDomain()
	return &a, nil
}

func (s *Store) InsertAgentPayments(ctx context.Context, payments []agents.AgentPayment) error {
	if len(payments) == 0 {
		return nil
	}
	rows := make([]agentPaymentRow, 0, len(payments))
	for _, p := range payments {
		rows = append(rows, toAgentPaymentRow(p))
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert agent payments: %w", err)
	}
	return nil
}

func (s *Store) PaymentsForAgent(ctx context.Context, id generic.AgentID) ([]agents.AgentPayment, error) {
	var rows []agentPaymentRow
	err := s.db.WithContext(ctx).Where("agent_id = ?", string(id)).
		Order("payment_date, created_at, id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query agent payments: %w", err)
	}
	out := make([]agents.AgentPayment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// =============================================================================
// GIFT PLANS & REWARDS
// =============================================================================

func (s *Store) SaveGiftPlan(ctx context.Context, g agents.GiftPlan) error {
	row := toGiftPlanRow(g)
	err := s.db.WithContext(ctx).Clauses(upsert(
		"plan_name", "target_investors", "target_amount", "reward_type", "reward_value",
		"reward_description", "duration_months", "is_active", "updated_at",
	)).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save gift plan: %w", err)
	}
	return nil
}

func (s *Store) ActiveGiftPlans(ctx context.Context) ([]agents.GiftPlan, error) {
	var rows []giftPlanRow
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query gift plans: %w", err)
	}
	out := make([]agents.GiftPlan, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) InsertRewards(ctx context.Context, rewards []agents.AgentReward) error {
	if len(rewards) == 0 {
		return nil
	}
	rows := make([]agentRewardRow, 0, len(rewards))
	for _, r := range rewards {
		rows = append(rows, toAgentRewardRow(r))
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert agent rewards: %w", err)
	}
	return nil
}

func (s *Store) HasReward(ctx context.Context, agentID generic.AgentID, giftPlanID generic.GiftPlanID, month string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&agentRewardRow{}).
		Where("agent_id = ? AND gift_plan_id = ? AND performance_month = ?", string(agentID), string(giftPlanID), month).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check agent reward: %w", err)
	}
	return count > 0, nil
}

func (s *Store) RewardsForAgent(ctx context.Context, id generic.AgentID) ([]agents.AgentReward, error) {
	var rows []agentRewardRow
	err := s.db.WithContext(ctx).Where("agent_id = ?", string(id)).
		Order("performance_month, created_at, id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query agent rewards: %w", err)
	}
	out := make([]agents.AgentReward, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	row := toAuditRow(entry)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	db := s.db.WithContext(ctx).Model(&auditRow{})
	if filter.Table != "" {
		db = db.Where("table_name = ?", filter.Table)
	}
	if filter.RecordID != "" {
		db = db.Where("record_id = ?", filter.RecordID)
	}
	if len(filter.Actions) > 0 {
		actions := make([]string, 0, len(filter.Actions))
		for _, a := range filter.Actions {
			actions = append(actions, string(a))
		}
		db = db.Where("action IN ?", actions)
	}
	if filter.From != nil {
		db = db.Where("timestamp >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("timestamp <= ?", *filter.To)
	}

	var rows []auditRow
	if err := db.Order("timestamp, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	out := make([]generic.AuditEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
