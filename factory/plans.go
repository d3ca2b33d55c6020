/*
Package factory provides JSON to Go plan conversion.

PURPOSE:
  Converts JSON plan and gift-plan definitions into validated payout.Plan and
  agents.GiftPlan values. Admin tooling and the HTTP API describe plans in
  JSON; the factory normalizes segment spelling and payment type, applies
  defaults and validates the result.

JSON SCHEMA (plan):
  {
    "id": "direct-12m",
    "name": "Direct 12 months",
    "segment": "DIRECT",
    "payment_type": "Monthly",
    "return_percentage": "3",
    "discount_percentage": "0",
    "duration_months": 12,
    "is_active": true
  }

  Rates accept JSON numbers or strings; strings avoid float rounding.

JSON SCHEMA (gift plan):
  {
    "id": "gold-march",
    "plan_name": "Gold",
    "target_investors": 5,
    "target_amount": "500000",
    "reward_type": "BONUS",
    "reward_value": "10000",
    "duration_months": 1
  }

USAGE:
  f := factory.NewPlanFactory()
  plan, err := f.ParsePlan(factory.DirectMonthlyJSON("direct-12m", "Direct", "3", 12))

SEE ALSO:
  - presets.go: Preset plan definitions per segment
  - payout/types.go: Plan
  - agents/types.go: GiftPlan
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/agents"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a plan.
type PlanJSON struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Segment            string           `json:"segment"`
	PaymentType        string           `json:"payment_type,omitempty"`
	ReturnPercentage   decimal.Decimal  `json:"return_percentage"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	DurationMonths     int              `json:"duration_months"`
	IsActive           *bool            `json:"is_active,omitempty"` // default true
	CreatedBy          string           `json:"created_by,omitempty"`
}

// GiftPlanJSON is the JSON representation of a gift plan.
type GiftPlanJSON struct {
	ID              string          `json:"id"`
	Name            string          `json:"plan_name"`
	TargetInvestors int             `json:"target_investors"`
	TargetAmount    decimal.Decimal `json:"target_amount"`
	RewardType      string          `json:"reward_type,omitempty"`
	RewardValue     decimal.Decimal `json:"reward_value"`
	Description     string          `json:"reward_description,omitempty"`
	DurationMonths  int             `json:"duration_months,omitempty"`
	IsActive        *bool           `json:"is_active,omitempty"` // default true
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts JSON plans to domain values.
type PlanFactory struct {
	NewID generic.IDFunc
}

func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// ParsePlan parses and validates a JSON plan.
func (f *PlanFactory) ParsePlan(jsonStr string) (payout.Plan, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return payout.Plan{}, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PlanJSON to a validated payout.Plan. A missing id is
// generated.
func (f *PlanFactory) FromJSON(pj PlanJSON) (payout.Plan, error) {
	segment, err := payout.ParseSegment(pj.Segment)
	if err != nil {
		return payout.Plan{}, err
	}

	plan := payout.Plan{
		ID:               generic.PlanID(pj.ID),
		Name:             pj.Name,
		Segment:          segment,
		PaymentType:      payout.PaymentType(pj.PaymentType).Normalize(),
		ReturnPercentage: pj.ReturnPercentage,
		DurationMonths:   pj.DurationMonths,
		Active:           pj.IsActive == nil || *pj.IsActive,
		CreatedBy:        pj.CreatedBy,
	}
	if pj.DiscountPercentage != nil {
		plan.DiscountPercentage = *pj.DiscountPercentage
	}
	if plan.ID == "" {
		plan.ID = generic.PlanID(f.NewID.OrDefault()())
	}
	if plan.Name == "" {
		plan.Name = string(segment)
	}

	if err := plan.Validate(); err != nil {
		return payout.Plan{}, err
	}
	return plan, nil
}

// ToJSON converts a plan back to its JSON form.
func (f *PlanFactory) ToJSON(p payout.Plan) PlanJSON {
	active := p.Active
	discount := p.DiscountPercentage
	return PlanJSON{
		ID:                 string(p.ID),
		Name:               p.Name,
		Segment:            string(p.Segment),
		PaymentType:        string(p.PaymentType.Normalize()),
		ReturnPercentage:   p.ReturnPercentage,
		DiscountPercentage: &discount,
		DurationMonths:     p.DurationMonths,
		IsActive:           &active,
		CreatedBy:          p.CreatedBy,
	}
}

// ParseGiftPlan parses and validates a JSON gift plan.
func (f *PlanFactory) ParseGiftPlan(jsonStr string) (agents.GiftPlan, error) {
	var gj GiftPlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &gj); err != nil {
		return agents.GiftPlan{}, fmt.Errorf("failed to parse gift plan JSON: %w", err)
	}
	return f.GiftPlanFromJSON(gj)
}

func (f *PlanFactory) GiftPlanFromJSON(gj GiftPlanJSON) (agents.GiftPlan, error) {
	plan := agents.GiftPlan{
		ID:              generic.GiftPlanID(gj.ID),
		Name:            gj.Name,
		TargetInvestors: gj.TargetInvestors,
		TargetAmount:    gj.TargetAmount,
		RewardType:      parseRewardType(gj.RewardType),
		RewardValue:     gj.RewardValue,
		Description:     gj.Description,
		DurationMonths:  gj.DurationMonths,
		Active:          gj.IsActive == nil || *gj.IsActive,
	}
	if plan.ID == "" {
		plan.ID = generic.GiftPlanID(f.NewID.OrDefault()())
	}
	if err := plan.Validate(); err != nil {
		return agents.GiftPlan{}, err
	}
	return plan, nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseRewardType(s string) agents.RewardType {
	switch s {
	case "", "BONUS", "bonus", "Bonus":
		return agents.RewardBonus
	case "PHYSICAL", "physical", "Physical":
		return agents.RewardPhysical
	default:
		return agents.RewardType(s)
	}
}
