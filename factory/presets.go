package factory

import (
	"encoding/json"

	"github.com/warp/payout-engine/payout"
)

// Preset plan definitions. They build JSON rather than structs so that every
// plan, preset or not, goes through ParsePlan.

// DirectMonthlyJSON returns JSON for a DIRECT plan paying monthly interest
// with principal on the last installment.
func DirectMonthlyJSON(id, name, rate string, months int) string {
	return planJSON(id, name, payout.SegmentDirect, payout.PaymentMonthly, rate, months)
}

// BuybackJSON returns JSON for a lump-sum plan in the given segment.
func BuybackJSON(id, name string, segment payout.Segment, rate string, months int) string {
	return planJSON(id, name, segment, payout.PaymentBuyback, rate, months)
}

// PreIPOJSON returns JSON for a PRE-IPO plan. Monthly PRE-IPO plans never
// return principal.
func PreIPOJSON(id, name string, paymentType payout.PaymentType, rate string, months int) string {
	return planJSON(id, name, payout.SegmentPreIPO, paymentType, rate, months)
}

// InfrastructureJSON returns JSON for an INFRASTRUCTURE plan.
func InfrastructureJSON(id, name string, paymentType payout.PaymentType, rate string, months int) string {
	return planJSON(id, name, payout.SegmentInfrastructure, paymentType, rate, months)
}

// InvestmentJSON returns JSON for an INVESTMENT segment plan.
func InvestmentJSON(id, name, rate string, months int) string {
	return planJSON(id, name, payout.SegmentInvestment, payout.PaymentMonthly, rate, months)
}

// GiftPlanPresetJSON returns JSON for a monthly bonus gift plan.
func GiftPlanPresetJSON(id, name string, targetInvestors int, targetAmount, bonus string) string {
	gj := map[string]interface{}{
		"id":               id,
		"plan_name":        name,
		"target_investors": targetInvestors,
		"target_amount":    targetAmount,
		"reward_type":      "BONUS",
		"reward_value":     bonus,
		"duration_months":  1,
	}
	b, _ := json.MarshalIndent(gj, "", "  ")
	return string(b)
}

func planJSON(id, name string, segment payout.Segment, paymentType payout.PaymentType, rate string, months int) string {
	pj := map[string]interface{}{
		"id":                id,
		"name":              name,
		"segment":           segment,
		"payment_type":      paymentType,
		"return_percentage": rate,
		"duration_months":   months,
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}
