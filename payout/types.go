/*
Package payout turns approved subscriptions and company investments into
exact, auditable schedules of future cash-flow events.

PURPOSE:
  Given a principal, a plan's terms snapshot and an anchor date, the
  calculator produces an ordered list of payout events (date, amount,
  interest/principal split, payout month). Generators persist that list in a
  single batch and leave one audit record behind.

KEY CONCEPTS:
  - Plan: immutable terms snapshot (segment, payment type, rates, duration)
  - Subscription: an investor's principal placed under a plan
  - CompanyInvestment: a direct company investment with its own monthly terms
  - PayoutEvent: one scheduled obligation, later marked paid by an operator

FLOW:
  approval (engine) -> ScheduleGenerator.Generate -> Calculate
                                                   -> FirstPayoutDate
                                                   -> segment formula
                    -> EventStore.InsertEvents (one batch)
                    -> audit GENERATE_SCHEDULE

SEE ALSO:
  - anchor.go: Date-anchoring rule
  - segment.go: Per-segment formulas and the dispatch table
  - schedule.go: Subscription schedule generator
  - investment.go: Company investment payout generator
*/
package payout

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// SEGMENT & PAYMENT TYPE
// =============================================================================

// Segment is the plan category that selects the payout formula.
type Segment string

const (
	SegmentPreIPO         Segment = "PRE-IPO"
	SegmentRealEstate     Segment = "REAL ESTATE"
	SegmentDirect         Segment = "DIRECT"
	SegmentInfrastructure Segment = "INFRASTRUCTURE"
	SegmentTravel         Segment = "TRAVEL"
	SegmentInvestment     Segment = "INVESTMENT"
)

var knownSegments = map[Segment]bool{
	SegmentPreIPO:         true,
	SegmentRealEstate:     true,
	SegmentDirect:         true,
	SegmentInfrastructure: true,
	SegmentTravel:         true,
	SegmentInvestment:     true,
}

// ParseSegment normalizes case and the "REAL-ESTATE" spelling.
func ParseSegment(s string) (Segment, error) {
	seg := Segment(strings.ToUpper(strings.TrimSpace(s)))
	if seg == "REAL-ESTATE" || seg == "REAL_ESTATE" {
		seg = SegmentRealEstate
	}
	if !knownSegments[seg] {
		return "", generic.Invalid("segment", "unknown segment "+s)
	}
	return seg, nil
}

func (s Segment) Known() bool { return knownSegments[s] }

// PaymentType selects periodic payouts or a single lump sum at maturity.
type PaymentType string

const (
	PaymentMonthly PaymentType = "Monthly"
	PaymentBuyback PaymentType = "Buyback"
)

// Normalize treats anything that is not Buyback as Monthly.
func (p PaymentType) Normalize() PaymentType {
	if strings.EqualFold(string(p), string(PaymentBuyback)) {
		return PaymentBuyback
	}
	return PaymentMonthly
}

// =============================================================================
// PLAN - Terms snapshot read at generation time
// =============================================================================

type Plan struct {
	ID                 generic.PlanID  `json:"id" validate:"required"`
	Name               string          `json:"name"`
	Segment            Segment         `json:"segment" validate:"required"`
	PaymentType        PaymentType     `json:"payment_type" validate:"omitempty,oneof=Monthly Buyback"`
	ReturnPercentage   decimal.Decimal `json:"return_percentage"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DurationMonths     int             `json:"duration_months" validate:"gt=0"`
	Active             bool            `json:"is_active"`
	CreatedBy          string          `json:"created_by,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Validate checks the terms a schedule can be generated from.
func (p Plan) Validate() error {
	if err := generic.ValidateStruct(p); err != nil {
		return err
	}
	if !p.Segment.Known() {
		return generic.Invalid("segment", "unknown segment "+string(p.Segment))
	}
	if p.ReturnPercentage.IsNegative() {
		return generic.Invalid("return_percentage", "must not be negative")
	}
	if p.DiscountPercentage.IsNegative() || p.DiscountPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return generic.Invalid("discount_percentage", "must be between 0 and 100")
	}
	return nil
}

// =============================================================================
// SUBSCRIPTION - Customer investment record
// =============================================================================

type Subscription struct {
	ID             generic.SubscriptionID `json:"id" validate:"required"`
	PlanID         generic.PlanID         `json:"plan_id" validate:"required"`
	AgentID        generic.AgentID        `json:"agent_id,omitempty"`
	InvestorName   string                 `json:"investor_name"`
	InvestorEmail  string                 `json:"investor_email,omitempty" validate:"omitempty,email"`
	Principal      decimal.Decimal        `json:"investment_amount"`
	InvestmentDate generic.TimePoint      `json:"investment_date"`
	Status         generic.ApprovalStatus `json:"approval_status" validate:"required,oneof=pending approved rejected settled"`
	SubmittedBy    string                 `json:"submitted_by,omitempty"`
	ReviewedBy     string                 `json:"reviewed_by,omitempty"`
	ReviewComments string                 `json:"review_comments,omitempty"`
	ApprovedAt     *time.Time             `json:"approved_at,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

func (s Subscription) Validate() error {
	if err := generic.ValidateStruct(s); err != nil {
		return err
	}
	if !s.Principal.IsPositive() {
		return generic.Invalid("investment_amount", "must be positive")
	}
	return nil
}

// AnchorDate is the investment date, or the creation day when none was given.
func (s Subscription) AnchorDate() generic.TimePoint {
	if !s.InvestmentDate.IsZero() {
		return s.InvestmentDate
	}
	return generic.DateOf(s.CreatedAt)
}

// =============================================================================
// PAYOUT EVENT - One scheduled obligation
// =============================================================================

type PaymentMethod string

const (
	MethodCash   PaymentMethod = "Cash"
	MethodOnline PaymentMethod = "Online"
	MethodCheque PaymentMethod = "Cheq"
	MethodOther  PaymentMethod = "Other"
	MethodNone   PaymentMethod = "None"
)

// PaymentInfo is the metadata an operator supplies when marking a payout paid.
type PaymentInfo struct {
	Method        PaymentMethod `json:"payment_method" validate:"omitempty,oneof=Cash Online Cheq Other None"`
	TransactionID string        `json:"transaction_id,omitempty"`
}

// PayoutEvent belongs to exactly one subscription or one company investment.
// Immutable once created except for the unpaid -> paid transition.
type PayoutEvent struct {
	ID              generic.EventID        `json:"id"`
	SubscriptionID  generic.SubscriptionID `json:"subscription_id,omitempty"`
	InvestmentID    generic.InvestmentID   `json:"investment_id,omitempty"`
	Amount          decimal.Decimal        `json:"amount"`
	InterestAmount  decimal.Decimal        `json:"interest_amount"`
	PrincipalAmount decimal.Decimal        `json:"principal_amount"`
	PaymentDate     generic.TimePoint      `json:"payment_date"`
	StartDate       generic.TimePoint      `json:"start_date"`
	Sequence        int                    `json:"payout_month"`
	IsPrincipal     bool                   `json:"is_principal"`
	PaymentType     PaymentType            `json:"payment_type"`
	Paid            bool                   `json:"is_paid"`
	PaidAt          *time.Time             `json:"paid_at,omitempty"`
	Method          PaymentMethod          `json:"payment_method"`
	TransactionID   string                 `json:"transaction_id,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// MarkPaid performs the only mutation a payout event allows.
func (e *PayoutEvent) MarkPaid(info PaymentInfo, at time.Time) error {
	if e.Paid {
		return generic.ErrAlreadyPaid
	}
	if err := generic.ValidateStruct(info); err != nil {
		return err
	}
	method := info.Method
	if method == "" {
		method = MethodNone
	}
	paidAt := at.UTC()
	e.Paid = true
	e.PaidAt = &paidAt
	e.Method = method
	e.TransactionID = info.TransactionID
	return nil
}

// AllPaid reports whether every event in a non-empty schedule is paid.
func AllPaid(events []PayoutEvent) bool {
	if len(events) == 0 {
		return false
	}
	for _, e := range events {
		if !e.Paid {
			return false
		}
	}
	return true
}

// Totals sums a schedule's amount columns.
func Totals(events []PayoutEvent) (amount, interest, principal decimal.Decimal) {
	for _, e := range events {
		amount = amount.Add(e.Amount)
		interest = interest.Add(e.InterestAmount)
		principal = principal.Add(e.PrincipalAmount)
	}
	return amount, interest, principal
}

// =============================================================================
// COMPANY INVESTMENT
// =============================================================================

type CompanyInvestment struct {
	ID               generic.InvestmentID   `json:"id" validate:"required"`
	Name             string                 `json:"investment_name" validate:"required"`
	Description      string                 `json:"description,omitempty"`
	Principal        decimal.Decimal        `json:"investment_amount"`
	ExpectedReturn   *decimal.Decimal       `json:"expected_return,omitempty"`
	ReturnPercentage *decimal.Decimal       `json:"return_percentage,omitempty"`
	InvestmentDate   generic.TimePoint      `json:"investment_date"`
	DurationMonths   int                    `json:"duration_months" validate:"gte=0"`
	Status           generic.ApprovalStatus `json:"approval_status" validate:"required,oneof=pending approved rejected"`
	SubmittedBy      string                 `json:"submitted_by,omitempty"`
	ReviewedBy       string                 `json:"reviewed_by,omitempty"`
	ReviewComments   string                 `json:"review_comments,omitempty"`
	ApprovedAt       *time.Time             `json:"approved_at,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

func (inv CompanyInvestment) Validate() error {
	if err := generic.ValidateStruct(inv); err != nil {
		return err
	}
	if !inv.Principal.IsPositive() {
		return generic.Invalid("investment_amount", "must be positive")
	}
	if inv.InvestmentDate.IsZero() {
		return generic.Invalid("investment_date", "required")
	}
	return nil
}
