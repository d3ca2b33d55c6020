/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for demos. Each scenario creates plans, agents and subscriptions
	through the engine and approves them, so every generated schedule,
	commission and reward goes through the same path as production traffic.

AVAILABLE SCENARIOS:

	direct-monthly:     DIRECT plan, monthly interest, principal with the last installment
	travel-buyback:     TRAVEL plan, one lump sum at maturity
	agent-cascade:      Three-tier agent chain, differential commissions, monthly reward
	company-investment: Company investment with interest-only monthly payouts

HOW SCENARIOS WORK:
 1. Create plans via factory presets (upsert by id)
 2. Create and approve agents
 3. Create subscriptions or investments
 4. Approve them, which generates the schedule

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "agent-cascade"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios do not reset the store. Subscriptions, agents and investments
	get fresh ids on every load; plans and gift plans are overwritten.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - factory/presets.go: Plan JSON definitions
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/agents"
	"github.com/warp/payout-engine/factory"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

const scenarioReviewer = "scenario-loader"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "direct-monthly",
		Name:        "Direct Monthly",
		Description: "12 monthly interest payouts, principal returned with the last one",
		Category:    "subscriptions",
	},
	{
		ID:          "travel-buyback",
		Name:        "Travel Buyback",
		Description: "Single lump sum of principal plus total interest at maturity",
		Category:    "subscriptions",
	},
	{
		ID:          "agent-cascade",
		Name:        "Agent Cascade",
		Description: "Main agent, two sub-agents, differential commissions and a monthly gift plan",
		Category:    "agents",
	},
	{
		ID:          "company-investment",
		Name:        "Company Investment",
		Description: "Approved company investment with interest-only monthly payouts",
		Category:    "investments",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: h.currentScenario, Name: h.currentScenario})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	var (
		resp *LoadScenarioResponse
		err  error
	)
	switch req.ScenarioID {
	case "direct-monthly":
		resp, err = h.loadDirectMonthlyScenario(ctx)
	case "travel-buyback":
		resp, err = h.loadTravelBuybackScenario(ctx)
	case "agent-cascade":
		resp, err = h.loadAgentCascadeScenario(ctx)
	case "company-investment":
		resp, err = h.loadCompanyInvestmentScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		h.fail(w, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}

	h.currentScenario = req.ScenarioID
	resp.ScenarioID = req.ScenarioID
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadDirectMonthlyScenario(ctx context.Context) (*LoadScenarioResponse, error) {
	// 100,000 at 3% for 12 months: 3,000 interest a month, 103,000 in month 12
	plan, err := h.createPlanFromJSON(ctx, factory.DirectMonthlyJSON("direct-12m", "Direct 12 months", "3", 12))
	if err != nil {
		return nil, err
	}
	sub, err := h.createApprovedSubscription(ctx, plan.ID, "", "Asha Investor", "100000", generic.NewTimePoint(2025, 1, 15))
	if err != nil {
		return nil, err
	}
	return &LoadScenarioResponse{
		Plans:         []string{string(plan.ID)},
		Subscriptions: []string{string(sub)},
	}, nil
}

func (h *Handler) loadTravelBuybackScenario(ctx context.Context) (*LoadScenarioResponse, error) {
	// 50,000 at 24% total over 24 months: one payout of 62,000
	plan, err := h.createPlanFromJSON(ctx, factory.BuybackJSON("travel-buyback-24m", "Travel buyback", payout.SegmentTravel, "24", 24))
	if err != nil {
		return nil, err
	}
	sub, err := h.createApprovedSubscription(ctx, plan.ID, "", "Ravi Traveller", "50000", generic.NewTimePoint(2025, 2, 1))
	if err != nil {
		return nil, err
	}
	return &LoadScenarioResponse{
		Plans:         []string{string(plan.ID)},
		Subscriptions: []string{string(sub)},
	}, nil
}

func (h *Handler) loadAgentCascadeScenario(ctx context.Context) (*LoadScenarioResponse, error) {
	plan, err := h.createPlanFromJSON(ctx, factory.DirectMonthlyJSON("direct-12m", "Direct 12 months", "3", 12))
	if err != nil {
		return nil, err
	}

	gift, err := h.Plans.ParseGiftPlan(factory.GiftPlanPresetJSON("first-sale", "First sale bonus", 1, "100000", "1000"))
	if err != nil {
		return nil, err
	}
	if _, err := h.Engine.CreateGiftPlan(ctx, gift); err != nil {
		return nil, err
	}

	// Main 5% <- Sub 3% <- Sub 2%. A 100,000 sale by the bottom agent pays
	// 2,000 to it, 1,000 to its parent and 2,000 to the main agent.
	resp := &LoadScenarioResponse{Plans: []string{string(plan.ID)}}
	var parent generic.AgentID
	for _, a := range []struct {
		name string
		typ  agents.AgentType
		rate string
	}{
		{"Main Agent", agents.AgentMain, "5"},
		{"Regional Sub-Agent", agents.AgentSub, "3"},
		{"Field Sub-Agent", agents.AgentSub, "2"},
	} {
		agent, err := h.Engine.CreateAgent(ctx, agents.Agent{
			Name:                 a.name,
			Type:                 a.typ,
			ParentID:             parent,
			CommissionPercentage: generic.MustParseDecimal(a.rate),
		})
		if err != nil {
			return nil, err
		}
		if _, err := h.Engine.ApproveAgent(ctx, agent.ID, scenarioReviewer); err != nil {
			return nil, err
		}
		parent = agent.ID
		resp.Agents = append(resp.Agents, string(agent.ID))
	}

	sub, err := h.createApprovedSubscription(ctx, plan.ID, parent, "Meera Client", "100000", generic.NewTimePoint(2025, 3, 1))
	if err != nil {
		return nil, err
	}
	resp.Subscriptions = []string{string(sub)}
	return resp, nil
}

func (h *Handler) loadCompanyInvestmentScenario(ctx context.Context) (*LoadScenarioResponse, error) {
	// 1,000,000 at 1% a month for 6 months: six payouts of 10,000
	rate := decimal.NewFromInt(1)
	inv, err := h.Engine.CreateInvestment(ctx, payout.CompanyInvestment{
		Name:             "Solar farm expansion",
		Principal:        decimal.NewFromInt(1000000),
		ReturnPercentage: &rate,
		InvestmentDate:   generic.NewTimePoint(2025, 1, 10),
		DurationMonths:   6,
		SubmittedBy:      scenarioReviewer,
	})
	if err != nil {
		return nil, err
	}
	if _, err := h.Engine.ApproveInvestment(ctx, inv.ID, scenarioReviewer, "demo"); err != nil {
		return nil, err
	}
	return &LoadScenarioResponse{Investments: []string{string(inv.ID)}}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) createPlanFromJSON(ctx context.Context, jsonStr string) (payout.Plan, error) {
	plan, err := h.Plans.ParsePlan(jsonStr)
	if err != nil {
		return payout.Plan{}, err
	}
	return h.Engine.CreatePlan(ctx, plan)
}

func (h *Handler) createApprovedSubscription(ctx context.Context, planID generic.PlanID, agentID generic.AgentID, investor, amount string, date generic.TimePoint) (generic.SubscriptionID, error) {
	sub, err := h.Engine.CreateSubscription(ctx, payout.Subscription{
		PlanID:         planID,
		AgentID:        agentID,
		InvestorName:   investor,
		Principal:      generic.MustParseDecimal(amount),
		InvestmentDate: date,
		SubmittedBy:    scenarioReviewer,
	})
	if err != nil {
		return "", err
	}
	if _, err := h.Engine.ApproveSubscription(ctx, sub.ID, scenarioReviewer, "demo"); err != nil {
		return "", err
	}
	return sub.ID, nil
}
