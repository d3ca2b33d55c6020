package postgres

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/agents"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

// Row types mirror the SQLite schema. Money columns are numeric; decimal.Decimal
// implements Scanner/Valuer so no float ever touches an amount.

type planRow struct {
	ID                 string          `gorm:"primaryKey;size:64"`
	Name               string          `gorm:"size:255;not null;default:''"`
	Segment            string          `gorm:"size:32;not null"`
	PaymentType        string          `gorm:"size:16;not null"`
	ReturnPercentage   decimal.Decimal `gorm:"type:numeric(10,4);not null"`
	DiscountPercentage decimal.Decimal `gorm:"type:numeric(10,4);not null;default:0"`
	DurationMonths     int             `gorm:"not null"`
	IsActive           bool            `gorm:"not null"`
	CreatedBy          string          `gorm:"size:64"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (planRow) TableName() string { return "plans" }

type subscriptionRow struct {
	ID               string          `gorm:"primaryKey;size:64"`
	PlanID           string          `gorm:"size:64;not null"`
	AgentID          *string         `gorm:"size:64;index:idx_subscriptions_agent_approved,priority:1"`
	InvestorName     string          `gorm:"size:255;not null;default:''"`
	InvestorEmail    string          `gorm:"size:255"`
	InvestmentAmount decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	InvestmentDate   *time.Time      `gorm:"type:date"`
	ApprovalStatus   string          `gorm:"size:16;not null;default:'pending';index:idx_subscriptions_agent_approved,priority:2"`
	SubmittedBy      string          `gorm:"size:64"`
	ReviewedBy       string          `gorm:"size:64"`
	ReviewComments   string          `gorm:"type:text"`
	ApprovedAt       *time.Time      `gorm:"index:idx_subscriptions_agent_approved,priority:3"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (subscriptionRow) TableName() string { return "subscriptions" }

type investmentRow struct {
	ID               string           `gorm:"primaryKey;size:64"`
	InvestmentName   string           `gorm:"size:255;not null"`
	Description      string           `gorm:"type:text"`
	InvestmentAmount decimal.Decimal  `gorm:"type:numeric(20,2);not null"`
	ExpectedReturn   *decimal.Decimal `gorm:"type:numeric(20,2)"`
	ReturnPercentage *decimal.Decimal `gorm:"type:numeric(10,4)"`
	InvestmentDate   time.Time        `gorm:"type:date;not null"`
	DurationMonths   int              `gorm:"not null;default:0"`
	ApprovalStatus   string           `gorm:"size:16;not null;default:'pending'"`
	SubmittedBy      string           `gorm:"size:64"`
	ReviewedBy       string           `gorm:"size:64"`
	ReviewComments   string           `gorm:"type:text"`
	ApprovedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (investmentRow) TableName() string { return "company_investments" }

// eventRow belongs to exactly one subscription or one investment.
type eventRow struct {
	ID              string          `gorm:"primaryKey;size:64"`
	SubscriptionID  *string         `gorm:"size:64;index;check:chk_payment_schedules_owner,(subscription_id IS NULL) <> (investment_id IS NULL)"`
	InvestmentID    *string         `gorm:"size:64;index"`
	Amount          decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	InterestAmount  decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	PrincipalAmount decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	PaymentDate     time.Time       `gorm:"type:date;not null;index:idx_schedules_due,priority:1"`
	StartDate       *time.Time      `gorm:"type:date"`
	PayoutMonth     int             `gorm:"not null"`
	IsPrincipal     bool            `gorm:"default:false"`
	PaymentType     string          `gorm:"size:16;not null"`
	IsPaid          bool            `gorm:"default:false;index:idx_schedules_due,priority:2"`
	PaidAt          *time.Time
	PaymentMethod   string `gorm:"size:16;not null;default:'None'"`
	TransactionID   string `gorm:"size:128"`
	CreatedAt       time.Time
}

func (eventRow) TableName() string { return "payment_schedules" }

type agentRow struct {
	ID                   string          `gorm:"primaryKey;size:64"`
	Name                 string          `gorm:"size:255;not null"`
	Email                string          `gorm:"size:255"`
	AgentType            string          `gorm:"size:16"`
	ParentAgentID        *string         `gorm:"size:64;index"`
	CommissionPercentage decimal.Decimal `gorm:"type:numeric(10,4);not null;default:0"`
	ApprovalStatus       string          `gorm:"size:16;not null;default:'pending'"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (agentRow) TableName() string { return "agents" }

type agentPaymentRow struct {
	ID                     string          `gorm:"primaryKey;size:64"`
	AgentID                string          `gorm:"size:64;not null;index"`
	SubscriptionID         string          `gorm:"size:64;not null"`
	Amount                 decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	CommissionPercentage   decimal.Decimal `gorm:"type:numeric(10,4);not null"`
	DifferentialPercentage decimal.Decimal `gorm:"type:numeric(10,4);not null"`
	PaymentDate            time.Time       `gorm:"type:date;not null"`
	IsPaid                 bool            `gorm:"default:false"`
	CreatedAt              time.Time
}

func (agentPaymentRow) TableName() string { return "agent_payments" }

type giftPlanRow struct {
	ID                string          `gorm:"primaryKey;size:64"`
	PlanName          string          `gorm:"size:255;not null"`
	TargetInvestors   int             `gorm:"not null;default:0"`
	TargetAmount      decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	RewardType        string          `gorm:"size:16"`
	RewardValue       decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	RewardDescription string          `gorm:"type:text"`
	DurationMonths    int             `gorm:"not null;default:0"`
	IsActive          bool            `gorm:"not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (giftPlanRow) TableName() string { return "gift_plans" }

type agentRewardRow struct {
	ID                string          `gorm:"primaryKey;size:64"`
	AgentID           string          `gorm:"size:64;not null;index:idx_agent_rewards_triple,priority:1"`
	GiftPlanID        string          `gorm:"size:64;not null;index:idx_agent_rewards_triple,priority:2"`
	PerformanceMonth  string          `gorm:"size:7;not null;index:idx_agent_rewards_triple,priority:3"`
	AchievedInvestors int             `gorm:"not null"`
	AchievedAmount    decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	IsRewarded        bool            `gorm:"default:false"`
	CreatedAt         time.Time
}

func (agentRewardRow) TableName() string { return "agent_rewards" }

type auditRow struct {
	ID        string          `gorm:"primaryKey;size:64"`
	Timestamp time.Time       `gorm:"not null;index"`
	ActorID   string          `gorm:"size:64"`
	TableRef  string          `gorm:"column:table_name;size:64;not null;index:idx_audit_trail_record,priority:1"`
	RecordID  string          `gorm:"size:64;index:idx_audit_trail_record,priority:2"`
	Action    string          `gorm:"size:64;not null"`
	OldValues json.RawMessage `gorm:"type:jsonb"`
	NewValues json.RawMessage `gorm:"type:jsonb"`
}

func (auditRow) TableName() string { return "audit_trail" }

// =============================================================================
// CONVERSIONS
// =============================================================================

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optDate(tp generic.TimePoint) *time.Time {
	if tp.IsZero() {
		return nil
	}
	t := tp.Time
	return &t
}

func dateOf(t *time.Time) generic.TimePoint {
	if t == nil {
		return generic.TimePoint{}
	}
	return generic.DateOf(*t)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func toPlanRow(p payout.Plan) planRow {
	return planRow{
		ID: string(p.ID), Name: p.Name, Segment: string(p.Segment), PaymentType: string(p.PaymentType),
		ReturnPercentage: p.ReturnPercentage, DiscountPercentage: p.DiscountPercentage,
		DurationMonths: p.DurationMonths, IsActive: p.Active, CreatedBy: p.CreatedBy,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

func (r planRow) toDomain() payout.Plan {
	return payout.Plan{
		ID: generic.PlanID(r.ID), Name: r.Name, Segment: payout.Segment(r.Segment),
		PaymentType: payout.PaymentType(r.PaymentType), ReturnPercentage: r.ReturnPercentage,
		DiscountPercentage: r.DiscountPercentage, DurationMonths: r.DurationMonths, Active: r.IsActive,
		CreatedBy: r.CreatedBy, CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toSubscriptionRow(s payout.Subscription) subscriptionRow {
	return subscriptionRow{
		ID: string(s.ID), PlanID: string(s.PlanID), AgentID: optString(string(s.AgentID)),
		InvestorName: s.InvestorName, InvestorEmail: s.InvestorEmail, InvestmentAmount: s.Principal,
		InvestmentDate: optDate(s.InvestmentDate), ApprovalStatus: string(s.Status),
		SubmittedBy: s.SubmittedBy, ReviewedBy: s.ReviewedBy, ReviewComments: s.ReviewComments,
		ApprovedAt: s.ApprovedAt, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	}
}

func (r subscriptionRow) toDomain() payout.Subscription {
	return payout.Subscription{
		ID: generic.SubscriptionID(r.ID), PlanID: generic.PlanID(r.PlanID),
		AgentID: generic.AgentID(derefString(r.AgentID)), InvestorName: r.InvestorName,
		InvestorEmail: r.InvestorEmail, Principal: r.InvestmentAmount, InvestmentDate: dateOf(r.InvestmentDate),
		Status: generic.ApprovalStatus(r.ApprovalStatus), SubmittedBy: r.SubmittedBy, ReviewedBy: r.ReviewedBy,
		ReviewComments: r.ReviewComments, ApprovedAt: utcPtr(r.ApprovedAt),
		CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toInvestmentRow(inv payout.CompanyInvestment) investmentRow {
	return investmentRow{
		ID: string(inv.ID), InvestmentName: inv.Name, Description: inv.Description,
		InvestmentAmount: inv.Principal, ExpectedReturn: inv.ExpectedReturn, ReturnPercentage: inv.ReturnPercentage,
		InvestmentDate: inv.InvestmentDate.Time, DurationMonths: inv.DurationMonths,
		ApprovalStatus: string(inv.Status), SubmittedBy: inv.SubmittedBy, ReviewedBy: inv.ReviewedBy,
		ReviewComments: inv.ReviewComments, ApprovedAt: inv.ApprovedAt,
		CreatedAt: inv.CreatedAt, UpdatedAt: inv.UpdatedAt,
	}
}

func (r investmentRow) toDomain() payout.CompanyInvestment {
	return payout.CompanyInvestment{
		ID: generic.InvestmentID(r.ID), Name: r.InvestmentName, Description: r.Description,
		Principal: r.InvestmentAmount, ExpectedReturn: r.ExpectedReturn, ReturnPercentage: r.ReturnPercentage,
		InvestmentDate: generic.DateOf(r.InvestmentDate), DurationMonths: r.DurationMonths,
		Status: generic.ApprovalStatus(r.ApprovalStatus), SubmittedBy: r.SubmittedBy, ReviewedBy: r.ReviewedBy,
		ReviewComments: r.ReviewComments, ApprovedAt: utcPtr(r.ApprovedAt),
		CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toEventRow(e payout.PayoutEvent) eventRow {
	return eventRow{
		ID: string(e.ID), SubscriptionID: optString(string(e.SubscriptionID)),
		InvestmentID: optString(string(e.InvestmentID)), Amount: e.Amount,
		InterestAmount: e.InterestAmount, PrincipalAmount: e.PrincipalAmount,
		PaymentDate: e.PaymentDate.Time, StartDate: optDate(e.StartDate), PayoutMonth: e.Sequence,
		IsPrincipal: e.IsPrincipal, PaymentType: string(e.PaymentType), IsPaid: e.Paid, PaidAt: e.PaidAt,
		PaymentMethod: string(e.Method), TransactionID: e.TransactionID, CreatedAt: e.CreatedAt,
	}
}

func (r eventRow) toDomain() payout.PayoutEvent {
	return payout.PayoutEvent{
		ID: generic.EventID(r.ID), SubscriptionID: generic.SubscriptionID(derefString(r.SubscriptionID)),
		InvestmentID: generic.InvestmentID(derefString(r.InvestmentID)), Amount: r.Amount,
		InterestAmount: r.InterestAmount, PrincipalAmount: r.PrincipalAmount,
		PaymentDate: generic.DateOf(r.PaymentDate), StartDate: dateOf(r.StartDate), Sequence: r.PayoutMonth,
		IsPrincipal: r.IsPrincipal, PaymentType: payout.PaymentType(r.PaymentType), Paid: r.IsPaid,
		PaidAt: utcPtr(r.PaidAt), Method: payout.PaymentMethod(r.PaymentMethod),
		TransactionID: r.TransactionID, CreatedAt: r.CreatedAt.UTC(),
	}
}

func toAgentRow(a agents.Agent) agentRow {
	return agentRow{
		ID: string(a.ID), Name: a.Name, Email: a.Email, AgentType: string(a.Type),
		ParentAgentID: optString(string(a.ParentID)), CommissionPercentage: a.CommissionPercentage,
		ApprovalStatus: string(a.Status), CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
}

func (r agentRow) toDomain() agents.Agent {
	return agents.Agent{
		ID: generic.AgentID(r.ID), Name: r.Name, Email: r.Email, Type: agents.AgentType(r.AgentType),
		ParentID: generic.AgentID(derefString(r.ParentAgentID)), CommissionPercentage: r.CommissionPercentage,
		Status: generic.ApprovalStatus(r.ApprovalStatus), CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toAgentPaymentRow(p agents.AgentPayment) agentPaymentRow {
	return agentPaymentRow{
		ID: p.ID, AgentID: string(p.AgentID), SubscriptionID: string(p.SubscriptionID), Amount: p.Amount,
		CommissionPercentage: p.CommissionPercentage, DifferentialPercentage: p.DifferentialPercentage,
		PaymentDate: p.PaymentDate.Time, IsPaid: p.Paid, CreatedAt: p.CreatedAt,
	}
}

func (r agentPaymentRow) toDomain() agents.AgentPayment {
	return agents.AgentPayment{
		ID: r.ID, AgentID: generic.AgentID(r.AgentID), SubscriptionID: generic.SubscriptionID(r.SubscriptionID),
		Amount: r.Amount, CommissionPercentage: r.CommissionPercentage,
		DifferentialPercentage: r.DifferentialPercentage, PaymentDate: generic.DateOf(r.PaymentDate),
		Paid: r.IsPaid, CreatedAt: r.CreatedAt.UTC(),
	}
}

func toGiftPlanRow(g agents.GiftPlan) giftPlanRow {
	return giftPlanRow{
		ID: string(g.ID), PlanName: g.Name, TargetInvestors: g.TargetInvestors, TargetAmount: g.TargetAmount,
		RewardType: string(g.RewardType), RewardValue: g.RewardValue, RewardDescription: g.Description,
		DurationMonths: g.DurationMonths, IsActive: g.Active, CreatedAt: g.CreatedAt, UpdatedAt: g.UpdatedAt,
	}
}

func (r giftPlanRow) toDomain() agents.GiftPlan {
	return agents.GiftPlan{
		ID: generic.GiftPlanID(r.ID), Name: r.PlanName, TargetInvestors: r.TargetInvestors,
		TargetAmount: r.TargetAmount, RewardType: agents.RewardType(r.RewardType), RewardValue: r.RewardValue,
		Description: r.RewardDescription, DurationMonths: r.DurationMonths, Active: r.IsActive,
		CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toAgentRewardRow(r agents.AgentReward) agentRewardRow {
	return agentRewardRow{
		ID: r.ID, AgentID: string(r.AgentID), GiftPlanID: string(r.GiftPlanID),
		PerformanceMonth: r.PerformanceMonth, AchievedInvestors: r.AchievedInvestors,
		AchievedAmount: r.AchievedAmount, IsRewarded: r.Rewarded, CreatedAt: r.CreatedAt,
	}
}

func (r agentRewardRow) toDomain() agents.AgentReward {
	return agents.AgentReward{
		ID: r.ID, AgentID: generic.AgentID(r.AgentID), GiftPlanID: generic.GiftPlanID(r.GiftPlanID),
		PerformanceMonth: r.PerformanceMonth, AchievedInvestors: r.AchievedInvestors,
		AchievedAmount: r.AchievedAmount, Rewarded: r.IsRewarded, CreatedAt: r.CreatedAt.UTC(),
	}
}

func toAuditRow(e generic.AuditEntry) auditRow {
	row := auditRow{
		ID: e.ID, Timestamp: e.Timestamp, ActorID: e.ActorID, TableRef: e.Table,
		RecordID: e.RecordID, Action: string(e.Action),
	}
	if e.Before != nil {
		row.OldValues, _ = json.Marshal(e.Before)
	}
	if e.After != nil {
		row.NewValues, _ = json.Marshal(e.After)
	}
	return row
}

func (r auditRow) toDomain() generic.AuditEntry {
	e := generic.AuditEntry{
		ID: r.ID, Timestamp: r.Timestamp.UTC(), ActorID: r.ActorID, Table: r.TableRef,
		RecordID: r.RecordID, Action: generic.AuditAction(r.Action),
	}
	if len(r.OldValues) > 0 {
		_ = json.Unmarshal(r.OldValues, &e.Before)
	}
	if len(r.NewValues) > 0 {
		_ = json.Unmarshal(r.NewValues, &e.After)
	}
	return e
}
