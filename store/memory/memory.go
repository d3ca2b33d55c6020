// Package memory provides an in-memory engine.Store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/payout-engine/agents"
	"github.com/warp/payout-engine/engine"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store guards a data set with a mutex. Reads and writes go through the
// unlocked methods of data.
type Store struct {
	mu   sync.RWMutex
	data *data
}

func New() *Store {
	return &Store{data: newData()}
}

type data struct {
	plans         map[generic.PlanID]payout.Plan
	subscriptions map[generic.SubscriptionID]payout.Subscription
	investments   map[generic.InvestmentID]payout.CompanyInvestment
	events        map[generic.EventID]payout.PayoutEvent
	eventOrder    []generic.EventID
	agents        map[generic.AgentID]agents.Agent
	payments      []agents.AgentPayment
	giftPlans     map[generic.GiftPlanID]agents.GiftPlan
	rewards       []agents.AgentReward
	audit         []generic.AuditEntry
}

func newData() *data {
	return &data{
		plans:         make(map[generic.PlanID]payout.Plan),
		subscriptions: make(map[generic.SubscriptionID]payout.Subscription),
		investments:   make(map[generic.InvestmentID]payout.CompanyInvestment),
		events:        make(map[generic.EventID]payout.PayoutEvent),
		agents:        make(map[generic.AgentID]agents.Agent),
		giftPlans:     make(map[generic.GiftPlanID]agents.GiftPlan),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.plans {
		c.plans[k] = v
	}
	for k, v := range d.subscriptions {
		c.subscriptions[k] = v
	}
	for k, v := range d.investments {
		c.investments[k] = v
	}
	for k, v := range d.events {
		c.events[k] = v
	}
	for k, v := range d.agents {
		c.agents[k] = v
	}
	for k, v := range d.giftPlans {
		c.giftPlans[k] = v
	}
	c.eventOrder = append([]generic.EventID{}, d.eventOrder...)
	c.payments = append([]agents.AgentPayment{}, d.payments...)
	c.rewards = append([]agents.AgentReward{}, d.rewards...)
	c.audit = append([]generic.AuditEntry{}, d.audit...)
	return c
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against a snapshot and swaps it in only when fn succeeds.
// Other callers are blocked for the duration.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(snapshot); err != nil {
		return err
	}
	s.data = snapshot
	return nil
}

func (s *Store) read(fn func(d *data)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func (s *Store) write(fn func(d *data)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

// =============================================================================
// LOCKED ENTRY POINTS
// =============================================================================

func (s *Store) SavePlan(ctx context.Context, p payout.Plan) (err error) {
	s.write(func(d *data) { err = d.SavePlan(ctx, p) })
	return
}

func (s *Store) GetPlan(ctx context.Context, id generic.PlanID) (p *payout.Plan, err error) {
	s.read(func(d *data) { p, err = d.GetPlan(ctx, id) })
	return
}

func (s *Store) ListPlans(ctx context.Context) (out []payout.Plan, err error) {
	s.read(func(d *data) { out, err = d.ListPlans(ctx) })
	return
}

func (s *Store) SaveSubscription(ctx context.Context, sub payout.Subscription) (err error) {
	s.write(func(d *data) { err = d.SaveSubscription(ctx, sub) })
	return
}

func (s *Store) GetSubscription(ctx context.Context, id generic.SubscriptionID) (sub *payout.Subscription, err error) {
	s.read(func(d *data) { sub, err = d.GetSubscription(ctx, id) })
	return
}

func (s *Store) ListApprovedSubscriptions(ctx context.Context, agentID generic.AgentID, period generic.Period) (out []payout.Subscription, err error) {
	s.read(func(d *data) { out, err = d.ListApprovedSubscriptions(ctx, agentID, period) })
	return
}

func (s *Store) DeleteRejectedSubscriptions(ctx context.Context, before time.Time) (n int, err error) {
	s.write(func(d *data) { n, err = d.DeleteRejectedSubscriptions(ctx, before) })
	return
}

func (s *Store) SaveInvestment(ctx context.Context, inv payout.CompanyInvestment) (err error) {
	s.write(func(d *data) { err = d.SaveInvestment(ctx, inv) })
	return
}

func (s *Store) GetInvestment(ctx context.Context, id generic.InvestmentID) (inv *payout.CompanyInvestment, err error) {
	s.read(func(d *data) { inv, err = d.GetInvestment(ctx, id) })
	return
}

func (s *Store) DeleteRejectedInvestments(ctx context.Context, before time.Time) (n int, err error) {
	s.write(func(d *data) { n, err = d.DeleteRejectedInvestments(ctx, before) })
	return
}

func (s *Store) InsertEvents(ctx context.Context, events []payout.PayoutEvent) (err error) {
	s.write(func(d *data) { err = d.InsertEvents(ctx, events) })
	return
}

func (s *Store) GetEvent(ctx context.Context, id generic.EventID) (e *payout.PayoutEvent, err error) {
	s.read(func(d *data) { e, err = d.GetEvent(ctx, id) })
	return
}

func (s *Store) MarkEventPaid(ctx context.Context, e payout.PayoutEvent) (err error) {
	s.write(func(d *data) { err = d.MarkEventPaid(ctx, e) })
	return
}

func (s *Store) MarkSubscriptionEventsPaid(ctx context.Context, id generic.SubscriptionID, at time.Time, method payout.PaymentMethod) (n int, err error) {
	s.write(func(d *data) { n, err = d.MarkSubscriptionEventsPaid(ctx, id, at, method) })
	return
}

func (s *Store) EventsForSubscription(ctx context.Context, id generic.SubscriptionID) (out []payout.PayoutEvent, err error) {
	s.read(func(d *data) { out, err = d.EventsForSubscription(ctx, id) })
	return
}

func (s *Store) EventsForInvestment(ctx context.Context, id generic.InvestmentID) (out []payout.PayoutEvent, err error) {
	s.read(func(d *data) { out, err = d.EventsForInvestment(ctx, id) })
	return
}

func (s *Store) DueEvents(ctx context.Context, day generic.TimePoint) (out []payout.PayoutEvent, err error) {
	s.read(func(d *data) { out, err = d.DueEvents(ctx, day) })
	return
}

func (s *Store) SaveAgent(ctx context.Context, a agents.Agent) (err error) {
	s.write(func(d *data) { err = d.SaveAgent(ctx, a) })
	return
}

func (s *Store) GetAgent(ctx context.Context, id generic.AgentID) (a *agents.Agent, err error) {
	s.read(func(d *data) { a, err = d.GetAgent(ctx, id) })
	return
}

func (s *Store) InsertAgentPayments(ctx context.Context, payments []agents.AgentPayment) (err error) {
	s.write(func(d *data) { err = d.InsertAgentPayments(ctx, payments) })
	return
}

func (s *Store) PaymentsForAgent(ctx context.Context, id generic.AgentID) (out []agents.AgentPayment, err error) {
	s.read(func(d *data) { out, err = d.PaymentsForAgent(ctx, id) })
	return
}

func (s *Store) SaveGiftPlan(ctx context.Context, p agents.GiftPlan) (err error) {
	s.write(func(d *data) { err = d.SaveGiftPlan(ctx, p) })
	return
}

func (s *Store) ActiveGiftPlans(ctx context.Context) (out []agents.GiftPlan, err error) {
	s.read(func(d *data) { out, err = d.ActiveGiftPlans(ctx) })
	return
}

func (s *Store) InsertRewards(ctx context.Context, rewards []agents.AgentReward) (err error) {
	s.write(func(d *data) { err = d.InsertRewards(ctx, rewards) })
	return
}

func (s *Store) HasReward(ctx context.Context, agentID generic.AgentID, giftPlanID generic.GiftPlanID, month string) (ok bool, err error) {
	s.read(func(d *data) { ok, err = d.HasReward(ctx, agentID, giftPlanID, month) })
	return
}

func (s *Store) RewardsForAgent(ctx context.Context, id generic.AgentID) (out []agents.AgentReward, err error) {
	s.read(func(d *data) { out, err = d.RewardsForAgent(ctx, id) })
	return
}

func (s *Store) AppendAudit(ctx context.Context, entry generic.AuditEntry) (err error) {
	s.write(func(d *data) { err = d.AppendAudit(ctx, entry) })
	return
}

func (s *Store) QueryAudit(ctx context.Context, filter generic.AuditFilter) (out []generic.AuditEntry, err error) {
	s.read(func(d *data) { out, err = d.QueryAudit(ctx, filter) })
	return
}

// =============================================================================
// PLANS, SUBSCRIPTIONS, INVESTMENTS
// =============================================================================

func (d *data) SavePlan(_ context.Context, p payout.Plan) error {
	d.plans[p.ID] = p
	return nil
}

func (d *data) GetPlan(_ context.Context, id generic.PlanID) (*payout.Plan, error) {
	p, ok := d.plans[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (d *data) ListPlans(_ context.Context) ([]payout.Plan, error) {
	out := make([]payout.Plan, 0, len(d.plans))
	for _, p := range d.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (d *data) SaveSubscription(_ context.Context, sub payout.Subscription) error {
	d.subscriptions[sub.ID] = sub
	return nil
}

func (d *data) GetSubscription(_ context.Context, id generic.SubscriptionID) (*payout.Subscription, error) {
	sub, ok := d.subscriptions[id]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (d *data) ListApprovedSubscriptions(_ context.Context, agentID generic.AgentID, period generic.Period) ([]payout.Subscription, error) {
	var out []payout.Subscription
	for _, sub := range d.subscriptions {
		if sub.AgentID != agentID || sub.Status != generic.StatusApproved || sub.ApprovedAt == nil {
			continue
		}
		if period.ContainsTime(*sub.ApprovedAt) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ApprovedAt.Before(*out[j].ApprovedAt) })
	return out, nil
}

func (d *data) DeleteRejectedSubscriptions(_ context.Context, before time.Time) (int, error) {
	n := 0
	for id, sub := range d.subscriptions {
		if sub.Status == generic.StatusRejected && sub.UpdatedAt.Before(before) {
			delete(d.subscriptions, id)
			n++
		}
	}
	return n, nil
}

func (d *data) SaveInvestment(_ context.Context, inv payout.CompanyInvestment) error {
	d.investments[inv.ID] = inv
	return nil
}

func (d *data) GetInvestment(_ context.Context, id generic.InvestmentID) (*payout.CompanyInvestment, error) {
	inv, ok := d.investments[id]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (d *data) DeleteRejectedInvestments(_ context.Context, before time.Time) (int, error) {
	n := 0
	for id, inv := range d.investments {
		if inv.Status == generic.StatusRejected && inv.UpdatedAt.Before(before) {
			delete(d.investments, id)
			n++
		}
	}
	return n, nil
}

// =============================================================================
// PAYOUT EVENTS
// =============================================================================

// InsertEvents checks the whole batch before writing any of it.
func (d *data) InsertEvents(_ context.Context, events []payout.PayoutEvent) error {
	seen := make(map[generic.EventID]bool, len(events))
	for _, e := range events {
		if e.ID == "" {
			return generic.Invalid("id", "required")
		}
		if (e.SubscriptionID == "") == (e.InvestmentID == "") {
			return generic.Invalid("subscription_id", "event must belong to exactly one subscription or investment")
		}
		if _, exists := d.events[e.ID]; exists || seen[e.ID] {
			return fmt.Errorf("duplicate payout event %s", e.ID)
		}
		seen[e.ID] = true
	}
	for _, e := range events {
		d.events[e.ID] = e
		d.eventOrder = append(d.eventOrder, e.ID)
	}
	return nil
}

func (d *data) GetEvent(_ context.Context, id generic.EventID) (*payout.PayoutEvent, error) {
	e, ok := d.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (d *data) MarkEventPaid(_ context.Context, e payout.PayoutEvent) error {
	cur, ok := d.events[e.ID]
	if !ok {
		return generic.NotFound("payout event", string(e.ID))
	}
	cur.Paid = e.Paid
	cur.PaidAt = e.PaidAt
	cur.Method = e.Method
	cur.TransactionID = e.TransactionID
	d.events[e.ID] = cur
	return nil
}

func (d *data) MarkSubscriptionEventsPaid(_ context.Context, id generic.SubscriptionID, at time.Time, method payout.PaymentMethod) (int, error) {
	n := 0
	paidAt := at.UTC()
	for eid, e := range d.events {
		if e.SubscriptionID != id || e.Paid {
			continue
		}
		e.Paid = true
		e.PaidAt = &paidAt
		e.Method = method
		d.events[eid] = e
		n++
	}
	return n, nil
}

func (d *data) filterEvents(keep func(payout.PayoutEvent) bool) []payout.PayoutEvent {
	var out []payout.PayoutEvent
	for _, id := range d.eventOrder {
		if e := d.events[id]; keep(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PaymentDate.Equal(out[j].PaymentDate) {
			return out[i].PaymentDate.Before(out[j].PaymentDate)
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out
}

func (d *data) EventsForSubscription(_ context.Context, id generic.SubscriptionID) ([]payout.PayoutEvent, error) {
	return d.filterEvents(func(e payout.PayoutEvent) bool { return e.SubscriptionID == id }), nil
}

func (d *data) EventsForInvestment(_ context.Context, id generic.InvestmentID) ([]payout.PayoutEvent, error) {
	return d.filterEvents(func(e payout.PayoutEvent) bool { return e.InvestmentID == id }), nil
}

func (d *data) DueEvents(_ context.Context, day generic.TimePoint) ([]payout.PayoutEvent, error) {
	return d.filterEvents(func(e payout.PayoutEvent) bool { return !e.Paid && e.PaymentDate.Equal(day) }), nil
}

// =============================================================================
// AGENTS, PAYMENTS, GIFT PLANS, REWARDS
// =============================================================================

func (d *data) SaveAgent(_ context.Context, a agents.Agent) error {
	d.agents[a.ID] = a
	return nil
}

func (d *data) GetAgent(_ context.Context, id generic.AgentID) (*agents.Agent, error) {
	a, ok := d.agents[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (d *data) InsertAgentPayments(_ context.Context, payments []agents.AgentPayment) error {
	for _, p := range payments {
		if p.ID == "" {
			return generic.Invalid("id", "required")
		}
	}
	d.payments = append(d.payments, payments...)
	return nil
}

func (d *data) PaymentsForAgent(_ context.Context, id generic.AgentID) ([]agents.AgentPayment, error) {
	var out []agents.AgentPayment
	for _, p := range d.payments {
		if p.AgentID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

func (d *data) SaveGiftPlan(_ context.Context, p agents.GiftPlan) error {
	d.giftPlans[p.ID] = p
	return nil
}

func (d *data) ActiveGiftPlans(_ context.Context) ([]agents.GiftPlan, error) {
	var out []agents.GiftPlan
	for _, p := range d.giftPlans {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *data) InsertRewards(_ context.Context, rewards []agents.AgentReward) error {
	for _, r := range rewards {
		if r.ID == "" {
			return generic.Invalid("id", "required")
		}
	}
	d.rewards = append(d.rewards, rewards...)
	return nil
}

func (d *data) HasReward(_ context.Context, agentID generic.AgentID, giftPlanID generic.GiftPlanID, month string) (bool, error) {
	for _, r := range d.rewards {
		if r.AgentID == agentID && r.GiftPlanID == giftPlanID && r.PerformanceMonth == month {
			return true, nil
		}
	}
	return false, nil
}

func (d *data) RewardsForAgent(_ context.Context, id generic.AgentID) ([]agents.AgentReward, error) {
	var out []agents.AgentReward
	for _, r := range d.rewards {
		if r.AgentID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func (d *data) AppendAudit(_ context.Context, entry generic.AuditEntry) error {
	d.audit = append(d.audit, entry)
	return nil
}

func (d *data) QueryAudit(_ context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	var out []generic.AuditEntry
	for _, e := range d.audit {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

var (
	_ engine.TxStore    = (*Store)(nil)
	_ engine.AuditStore = (*Store)(nil)
	_ engine.Store      = (*data)(nil)
)
