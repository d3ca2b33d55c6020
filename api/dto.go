/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types already
  carry JSON tags and are returned as-is; the types here cover request bodies
  and the few responses that add computed fields.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO / *Response: Response types returned to clients

MONEY:
  Amounts and rates are decimal strings in both directions ("3000.00").
  JSON numbers are accepted on input.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plans.go: PlanJSON, GiftPlanJSON request bodies
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

type CreateSubscriptionRequest struct {
	ID             string            `json:"id,omitempty"`
	PlanID         string            `json:"plan_id"`
	AgentID        string            `json:"agent_id,omitempty"`
	InvestorName   string            `json:"investor_name"`
	InvestorEmail  string            `json:"investor_email,omitempty"`
	Amount         decimal.Decimal   `json:"investment_amount"`
	InvestmentDate generic.TimePoint `json:"investment_date"`
	SubmittedBy    string            `json:"submitted_by,omitempty"`
}

// ReviewRequest approves or rejects a pending record.
type ReviewRequest struct {
	Reviewer string `json:"reviewer"`
	Comments string `json:"comments,omitempty"`
}

type SettleRequest struct {
	Actor string `json:"actor"`
}

// ScheduleDTO is a payout schedule with its column totals.
type ScheduleDTO struct {
	Events          []payout.PayoutEvent `json:"events"`
	TotalAmount     string               `json:"total_amount"`
	TotalInterest   string               `json:"total_interest"`
	TotalPrincipal  string               `json:"total_principal"`
	PaidCount       int                  `json:"paid_count"`
	FirstPaymentDay string               `json:"first_payment_date,omitempty"`
}

func toScheduleDTO(events []payout.PayoutEvent) ScheduleDTO {
	if events == nil {
		events = []payout.PayoutEvent{}
	}
	amount, interest, principal := payout.Totals(events)
	dto := ScheduleDTO{
		Events:         events,
		TotalAmount:    amount.StringFixed(generic.MoneyPlaces),
		TotalInterest:  interest.StringFixed(generic.MoneyPlaces),
		TotalPrincipal: principal.StringFixed(generic.MoneyPlaces),
	}
	for _, e := range events {
		if e.Paid {
			dto.PaidCount++
		}
	}
	if len(events) > 0 {
		dto.FirstPaymentDay = events[0].PaymentDate.String()
	}
	return dto
}

// PreviewRequest asks for a schedule without persisting anything.
type PreviewRequest struct {
	PlanID    string            `json:"plan_id"`
	Principal decimal.Decimal   `json:"investment_amount"`
	Anchor    generic.TimePoint `json:"investment_date"`
}

// =============================================================================
// PAYOUT EVENTS
// =============================================================================

type MarkPaidRequest struct {
	PaymentMethod string `json:"payment_method"`
	TransactionID string `json:"transaction_id,omitempty"`
	Actor         string `json:"actor,omitempty"`
}

// =============================================================================
// COMPANY INVESTMENTS
// =============================================================================

type CreateInvestmentRequest struct {
	ID               string            `json:"id,omitempty"`
	Name             string            `json:"investment_name"`
	Description      string            `json:"description,omitempty"`
	Amount           decimal.Decimal   `json:"investment_amount"`
	ExpectedReturn   *decimal.Decimal  `json:"expected_return,omitempty"`
	ReturnPercentage *decimal.Decimal  `json:"return_percentage,omitempty"`
	InvestmentDate   generic.TimePoint `json:"investment_date"`
	DurationMonths   int               `json:"duration_months"`
	SubmittedBy      string            `json:"submitted_by,omitempty"`
}

// =============================================================================
// AGENTS
// =============================================================================

type CreateAgentRequest struct {
	ID                   string          `json:"id,omitempty"`
	Name                 string          `json:"name"`
	Email                string          `json:"email,omitempty"`
	AgentType            string          `json:"agent_type,omitempty"`
	ParentAgentID        string          `json:"parent_agent_id,omitempty"`
	CommissionPercentage decimal.Decimal `json:"commission_percentage"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// LoadScenarioResponse lists the records a scenario created.
type LoadScenarioResponse struct {
	ScenarioID    string   `json:"scenario_id"`
	Plans         []string `json:"plans,omitempty"`
	Agents        []string `json:"agents,omitempty"`
	Subscriptions []string `json:"subscriptions,omitempty"`
	Investments   []string `json:"investments,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
