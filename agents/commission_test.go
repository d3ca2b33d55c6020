package agents_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/agents"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func agent(id, parent, rate string, status generic.ApprovalStatus) agents.Agent {
	return agents.Agent{
		ID:                   generic.AgentID(id),
		Name:                 "Agent " + id,
		ParentID:             generic.AgentID(parent),
		CommissionPercentage: generic.MustParseDecimal(rate),
		Status:               status,
	}
}

func seedAgents(t *testing.T, list ...agents.Agent) *memory.Store {
	t.Helper()
	store := memory.New()
	for _, a := range list {
		require.NoError(t, store.SaveAgent(context.Background(), a))
	}
	return store
}

func amounts(payments []agents.AgentPayment) map[generic.AgentID]string {
	out := make(map[generic.AgentID]string, len(payments))
	for _, p := range payments {
		out[p.AgentID] = p.Amount.StringFixed(2)
	}
	return out
}

var approvalDay = generic.MustParseDate("2025-03-18")

// =============================================================================
// SPLIT
// =============================================================================

func TestSplit_LowerAncestorEarnsNothing(t *testing.T) {
	// GIVEN: A(5%) -> B(10%) -> C(8%)
	// WHEN: Splitting 100000
	// THEN: A 5000, B 5000, C nothing

	chain := []agents.Agent{
		agent("A", "B", "5", generic.StatusApproved),
		agent("B", "C", "10", generic.StatusApproved),
		agent("C", "", "8", generic.StatusApproved),
	}
	tiers := agents.Split(chain, generic.NewMoneyFromInt(100000))

	require.Len(t, tiers, 2)
	assert.Equal(t, generic.AgentID("A"), tiers[0].Agent.ID)
	assert.Equal(t, "5000.00", tiers[0].Amount.StringFixed(2))
	assert.Equal(t, generic.AgentID("B"), tiers[1].Agent.ID)
	assert.Equal(t, "5000.00", tiers[1].Amount.StringFixed(2))
	assert.Equal(t, "5", tiers[1].Differential.String())
}

func TestSplit_IncreasingChainPaysEachDifferential(t *testing.T) {
	chain := []agents.Agent{
		agent("A", "B", "2", generic.StatusApproved),
		agent("B", "C", "5", generic.StatusApproved),
		agent("C", "", "10", generic.StatusApproved),
	}
	tiers := agents.Split(chain, generic.NewMoneyFromInt(100000))

	require.Len(t, tiers, 3)
	assert.Equal(t, "2000.00", tiers[0].Amount.StringFixed(2))
	assert.Equal(t, "3000.00", tiers[1].Amount.StringFixed(2))
	assert.Equal(t, "5000.00", tiers[2].Amount.StringFixed(2))
}

func TestSplit_ComparesWithTierDirectlyBelow(t *testing.T) {
	// GIVEN: A(10%) -> B(5%) -> C(8%)
	// WHEN: Splitting 100000
	// THEN: C is paid what it adds over B, not over A

	chain := []agents.Agent{
		agent("A", "B", "10", generic.StatusApproved),
		agent("B", "C", "5", generic.StatusApproved),
		agent("C", "", "8", generic.StatusApproved),
	}
	tiers := agents.Split(chain, generic.NewMoneyFromInt(100000))

	require.Len(t, tiers, 2)
	assert.Equal(t, generic.AgentID("A"), tiers[0].Agent.ID)
	assert.Equal(t, "10000.00", tiers[0].Amount.StringFixed(2))
	assert.Equal(t, generic.AgentID("C"), tiers[1].Agent.ID)
	assert.Equal(t, "3000.00", tiers[1].Amount.StringFixed(2))
}

// =============================================================================
// CASCADE
// =============================================================================

func TestCommissionCascade_Distribute(t *testing.T) {
	store := seedAgents(t,
		agent("A", "B", "5", generic.StatusApproved),
		agent("B", "C", "10", generic.StatusApproved),
		agent("C", "", "8", generic.StatusApproved),
	)
	audit := &generic.AuditBuffer{}
	cascade := agents.NewCommissionCascade(store, store, audit, nil)

	payments, err := cascade.Distribute(context.Background(), "sub-1", "A", generic.NewMoneyFromInt(100000), approvalDay)
	require.NoError(t, err)

	assert.Equal(t, map[generic.AgentID]string{"A": "5000.00", "B": "5000.00"}, amounts(payments))
	for _, p := range payments {
		assert.Equal(t, generic.SubscriptionID("sub-1"), p.SubscriptionID)
		assert.Equal(t, approvalDay, p.PaymentDate)
		assert.NotEmpty(t, p.ID)
	}

	stored, err := store.PaymentsForAgent(context.Background(), "B")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "5000.00", stored[0].Amount.StringFixed(2))

	entries := audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, generic.AuditGeneratePayments, entries[0].Action)
}

func TestCommissionCascade_UnapprovedDirectAgentPaysNothing(t *testing.T) {
	store := seedAgents(t,
		agent("A", "B", "5", generic.StatusPending),
		agent("B", "", "10", generic.StatusApproved),
	)
	cascade := agents.NewCommissionCascade(store, store, nil, nil)

	payments, err := cascade.Distribute(context.Background(), "sub-1", "A", generic.NewMoneyFromInt(100000), approvalDay)
	require.NoError(t, err)
	assert.Empty(t, payments)

	stored, err := store.PaymentsForAgent(context.Background(), "B")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestCommissionCascade_UnapprovedAncestorTruncatesChain(t *testing.T) {
	// GIVEN: A(5%) -> B(10%, rejected) -> C(20%)
	// WHEN: Distributing
	// THEN: Only A is paid; C is never reached

	store := seedAgents(t,
		agent("A", "B", "5", generic.StatusApproved),
		agent("B", "C", "10", generic.StatusRejected),
		agent("C", "", "20", generic.StatusApproved),
	)
	cascade := agents.NewCommissionCascade(store, store, nil, nil)

	payments, err := cascade.Distribute(context.Background(), "sub-1", "A", generic.NewMoneyFromInt(100000), approvalDay)
	require.NoError(t, err)
	assert.Equal(t, map[generic.AgentID]string{"A": "5000.00"}, amounts(payments))
}

func TestCommissionCascade_MissingParentTruncatesChain(t *testing.T) {
	store := seedAgents(t, agent("A", "ghost", "5", generic.StatusApproved))
	cascade := agents.NewCommissionCascade(store, store, nil, nil)

	payments, err := cascade.Distribute(context.Background(), "sub-1", "A", generic.NewMoneyFromInt(1000), approvalDay)
	require.NoError(t, err)
	assert.Equal(t, map[generic.AgentID]string{"A": "50.00"}, amounts(payments))
}

func TestCommissionCascade_UnknownDirectAgent(t *testing.T) {
	store := memory.New()
	cascade := agents.NewCommissionCascade(store, store, nil, nil)

	_, err := cascade.Distribute(context.Background(), "sub-1", "nobody", generic.NewMoneyFromInt(1000), approvalDay)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestApprovedChain_CycleStopsWalk(t *testing.T) {
	// GIVEN: A malformed hierarchy A -> B -> A
	// WHEN: Walking the chain
	// THEN: Each agent appears once and the walk terminates

	store := seedAgents(t,
		agent("A", "B", "5", generic.StatusApproved),
		agent("B", "A", "10", generic.StatusApproved),
	)

	chain, err := agents.ApprovedChain(context.Background(), store, "A", nil)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, generic.AgentID("A"), chain[0].ID)
	assert.Equal(t, generic.AgentID("B"), chain[1].ID)
}

func TestAgent_Validate(t *testing.T) {
	a := agent("A", "", "5", generic.StatusApproved)
	assert.NoError(t, a.Validate())

	a.CommissionPercentage = generic.MustParseDecimal("120")
	assert.ErrorIs(t, a.Validate(), generic.ErrValidation)

	self := agent("A", "A", "5", generic.StatusApproved)
	assert.ErrorIs(t, self.Validate(), generic.ErrValidation)
}
