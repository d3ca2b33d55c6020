/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected state through the engine:
	- Plans are created from presets
	- Subscriptions and investments are approved with generated schedules
	- Agent cascades pay the expected differential commissions

These tests double as end-to-end checks of the approval workflow.
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/generic"
)

func TestScenario_DirectMonthly(t *testing.T) {
	// GIVEN: The direct-monthly scenario
	// WHEN: Loading it
	// THEN: One approved subscription with 12 payouts, 103,000 in month 12

	s := newTestServer(t)
	ctx := context.Background()

	resp, err := s.handler.loadDirectMonthlyScenario(ctx)
	require.NoError(t, err)
	require.Len(t, resp.Subscriptions, 1)

	events, err := s.handler.Engine.Schedule(ctx, generic.SubscriptionID(resp.Subscriptions[0]))
	require.NoError(t, err)
	require.Len(t, events, 12)
	assert.Equal(t, "103000.00", events[11].Amount.StringFixed(2))
	assert.True(t, events[11].IsPrincipal)
}

func TestScenario_TravelBuyback(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	resp, err := s.handler.loadTravelBuybackScenario(ctx)
	require.NoError(t, err)

	events, err := s.handler.Engine.Schedule(ctx, generic.SubscriptionID(resp.Subscriptions[0]))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "62000.00", events[0].Amount.StringFixed(2))
	assert.Equal(t, "2027-03-15", events[0].PaymentDate.String())
}

func TestScenario_AgentCascade(t *testing.T) {
	// GIVEN: Main 5% <- Sub 3% <- Sub 2% and a 100,000 sale by the bottom agent
	// WHEN: Loading the scenario
	// THEN: 2,000 / 1,000 / 2,000 bottom-up, and the seller earns the gift plan reward

	s := newTestServer(t)
	ctx := context.Background()

	resp, err := s.handler.loadAgentCascadeScenario(ctx)
	require.NoError(t, err)
	require.Len(t, resp.Agents, 3)

	want := map[string]string{
		resp.Agents[0]: "2000.00",
		resp.Agents[1]: "1000.00",
		resp.Agents[2]: "2000.00",
	}
	for id, amount := range want {
		payments, err := s.handler.Engine.AgentPayments(ctx, generic.AgentID(id))
		require.NoError(t, err)
		require.Len(t, payments, 1, id)
		assert.Equal(t, amount, payments[0].Amount.StringFixed(2), id)
		assert.Equal(t, generic.SubscriptionID(resp.Subscriptions[0]), payments[0].SubscriptionID)
	}

	rewards, err := s.handler.Engine.AgentRewards(ctx, generic.AgentID(resp.Agents[2]))
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, generic.GiftPlanID("first-sale"), rewards[0].GiftPlanID)
	assert.Equal(t, "2025-03", rewards[0].PerformanceMonth)
}

func TestScenario_CompanyInvestment(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	resp, err := s.handler.loadCompanyInvestmentScenario(ctx)
	require.NoError(t, err)
	require.Len(t, resp.Investments, 1)

	events, err := s.handler.Engine.InvestmentPayouts(ctx, generic.InvestmentID(resp.Investments[0]))
	require.NoError(t, err)
	require.Len(t, events, 6)
	for _, e := range events {
		assert.Equal(t, "10000.00", e.Amount.StringFixed(2))
		assert.True(t, e.PrincipalAmount.IsZero())
	}
}

func TestLoadScenario_HTTP(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	rec = s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "direct-monthly"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loaded := decodeBody[LoadScenarioResponse](t, rec)
	assert.Equal(t, "direct-monthly", loaded.ScenarioID)
	assert.Equal(t, []string{"direct-12m"}, loaded.Plans)

	rec = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "direct-monthly", decodeBody[ScenarioDTO](t, rec).ID)

	rec = s.do(t, http.MethodGet, "/api/scenarios", nil)
	assert.Len(t, decodeBody[[]ScenarioDTO](t, rec), len(scenarios))

	rec = s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
