/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Plan creation and schedule preview
- Subscription approval lifecycle and error status mapping
- Payout marking and due list
- Company investment approval
- Purge and audit trail admin endpoints
*/
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/engine"
	"github.com/warp/payout-engine/factory"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/housekeeping"
	"github.com/warp/payout-engine/payout"
	"github.com/warp/payout-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.March, 18, 11, 0, 0, 0, time.UTC)

type testServer struct {
	handler *Handler
	router  *chi.Mux
	sink    *generic.AuditSink
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := quietLogger()
	store := memory.New()
	sink := generic.NewAuditSink(store, logger, 64)
	t.Cleanup(sink.Close)

	e := engine.New(store,
		engine.WithAudit(sink),
		engine.WithLogger(logger),
		engine.WithClock(func() time.Time { return testNow }),
	)
	h := NewHandler(e, logger)
	sched, err := housekeeping.New(e, housekeeping.Config{}, logger)
	require.NoError(t, err)
	h.Housekeeping = sched

	return &testServer{handler: h, router: NewRouter(h), sink: sink}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// createPlanAndSubscription sets up a DIRECT 3% 12 month plan and a pending
// 100,000 subscription dated 2025-01-15.
func (s *testServer) createPlanAndSubscription(t *testing.T) payout.Subscription {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/plans", factory.DirectMonthlyJSON("direct-12m", "Direct", "3", 12))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/subscriptions", CreateSubscriptionRequest{
		PlanID:         "direct-12m",
		InvestorName:   "Asha",
		Amount:         decimal.NewFromInt(100000),
		InvestmentDate: generic.NewTimePoint(2025, 1, 15),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[payout.Subscription](t, rec)
}

// =============================================================================
// PLANS
// =============================================================================

func TestPlans_CreateListPreview(t *testing.T) {
	// GIVEN: A DIRECT monthly plan created over HTTP
	// WHEN: Listing plans and previewing 100,000 on 2025-01-15
	// THEN: 12 events, the first on 2025-02-15, principal on the last

	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/plans", factory.DirectMonthlyJSON("direct-12m", "Direct", "3", 12))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/plans", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	plans := decodeBody[[]payout.Plan](t, rec)
	require.Len(t, plans, 1)
	assert.Equal(t, payout.SegmentDirect, plans[0].Segment)

	rec = s.do(t, http.MethodPost, "/api/plans/preview", map[string]any{
		"plan_id":           "direct-12m",
		"investment_amount": "100000",
		"investment_date":   "2025-01-15",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	schedule := decodeBody[ScheduleDTO](t, rec)
	require.Len(t, schedule.Events, 12)
	assert.Equal(t, "2025-02-15", schedule.FirstPaymentDay)
	assert.Equal(t, "136000.00", schedule.TotalAmount)
	assert.Equal(t, "100000.00", schedule.TotalPrincipal)
	assert.True(t, schedule.Events[11].Amount.Equal(decimal.NewFromInt(103000)))
}

func TestPlans_InvalidAndUnknown(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/plans", `{"segment":"CRYPTO","return_percentage":"1","duration_months":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION", decodeBody[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/plans", `{"segment":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/plans/preview", map[string]any{"plan_id": "missing", "investment_amount": "1000"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

func TestSubscription_Lifecycle(t *testing.T) {
	// GIVEN: A pending subscription
	// WHEN: Approving, approving again, paying one payout, then settling
	// THEN: Schedule is generated once, repeats are conflicts, settle pays the rest

	s := newTestServer(t)
	sub := s.createPlanAndSubscription(t)
	assert.Equal(t, generic.StatusPending, sub.Status)
	base := "/api/subscriptions/" + string(sub.ID)

	rec := s.do(t, http.MethodPost, base+"/approve", ReviewRequest{Reviewer: "ops", Comments: "ok"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approval := decodeBody[engine.ApprovalResult](t, rec)
	assert.Equal(t, generic.StatusApproved, approval.Subscription.Status)
	require.Len(t, approval.Schedule, 12)

	rec = s.do(t, http.MethodPost, base+"/approve", ReviewRequest{Reviewer: "ops"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	eventPath := "/api/payouts/" + string(approval.Schedule[0].ID) + "/paid"
	rec = s.do(t, http.MethodPost, eventPath, MarkPaidRequest{PaymentMethod: "Online", TransactionID: "TX-1", Actor: "cashier"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decodeBody[payout.PayoutEvent](t, rec)
	assert.True(t, paid.Paid)
	assert.Equal(t, payout.MethodOnline, paid.Method)

	rec = s.do(t, http.MethodPost, eventPath, MarkPaidRequest{PaymentMethod: "Cash"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/settle", SettleRequest{Actor: "ops"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, generic.StatusSettled, decodeBody[payout.Subscription](t, rec).Status)

	rec = s.do(t, http.MethodGet, base+"/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	schedule := decodeBody[ScheduleDTO](t, rec)
	assert.Equal(t, 12, schedule.PaidCount)
	assert.Equal(t, payout.MethodOnline, schedule.Events[0].Method)
	assert.Equal(t, payout.MethodNone, schedule.Events[1].Method)
}

func TestSubscription_Errors(t *testing.T) {
	s := newTestServer(t)
	s.createPlanAndSubscription(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown plan", http.MethodPost, "/api/subscriptions", CreateSubscriptionRequest{PlanID: "nope", Amount: decimal.NewFromInt(10)}, http.StatusNotFound},
		{"zero amount", http.MethodPost, "/api/subscriptions", CreateSubscriptionRequest{PlanID: "direct-12m"}, http.StatusBadRequest},
		{"bad email", http.MethodPost, "/api/subscriptions", CreateSubscriptionRequest{PlanID: "direct-12m", InvestorEmail: "x", Amount: decimal.NewFromInt(10)}, http.StatusBadRequest},
		{"approve unknown", http.MethodPost, "/api/subscriptions/nope/approve", ReviewRequest{}, http.StatusNotFound},
		{"get unknown", http.MethodGet, "/api/subscriptions/nope", nil, http.StatusNotFound},
		{"malformed body", http.MethodPost, "/api/subscriptions", `{"plan_id":`, http.StatusBadRequest},
		{"unknown payout", http.MethodPost, "/api/payouts/nope/paid", MarkPaidRequest{}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestSubscription_RejectThenApproveConflicts(t *testing.T) {
	s := newTestServer(t)
	sub := s.createPlanAndSubscription(t)
	base := "/api/subscriptions/" + string(sub.ID)

	rec := s.do(t, http.MethodPost, base+"/reject", ReviewRequest{Reviewer: "ops", Comments: "kyc"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, generic.StatusRejected, decodeBody[payout.Subscription](t, rec).Status)

	rec = s.do(t, http.MethodPost, base+"/approve", ReviewRequest{Reviewer: "ops"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decodeBody[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodGet, base+"/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[ScheduleDTO](t, rec).Events)
}

// =============================================================================
// PAYOUTS
// =============================================================================

func TestDuePayouts(t *testing.T) {
	s := newTestServer(t)
	sub := s.createPlanAndSubscription(t)
	rec := s.do(t, http.MethodPost, "/api/subscriptions/"+string(sub.ID)+"/approve", ReviewRequest{Reviewer: "ops"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/payouts/due?date=2025-02-15", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	due := decodeBody[[]payout.PayoutEvent](t, rec)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Sequence)

	rec = s.do(t, http.MethodGet, "/api/payouts/due?date=2025-02-16", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]payout.PayoutEvent](t, rec))

	rec = s.do(t, http.MethodGet, "/api/payouts/due?date=15-02-2025", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// COMPANY INVESTMENTS
// =============================================================================

func TestInvestment_ApproveGeneratesPayouts(t *testing.T) {
	// GIVEN: A 1,000,000 investment at 1% a month for 6 months
	// WHEN: Approving it
	// THEN: Six interest-only payouts of 10,000

	s := newTestServer(t)
	rate := decimal.NewFromInt(1)
	rec := s.do(t, http.MethodPost, "/api/investments", CreateInvestmentRequest{
		Name:             "Solar",
		Amount:           decimal.NewFromInt(1000000),
		ReturnPercentage: &rate,
		InvestmentDate:   generic.NewTimePoint(2025, 1, 10),
		DurationMonths:   6,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decodeBody[payout.CompanyInvestment](t, rec)
	require.NotNil(t, inv.ExpectedReturn)

	base := "/api/investments/" + string(inv.ID)
	rec = s.do(t, http.MethodPost, base+"/approve", ReviewRequest{Reviewer: "cfo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, base+"/payouts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	schedule := decodeBody[ScheduleDTO](t, rec)
	require.Len(t, schedule.Events, 6)
	assert.Equal(t, "60000.00", schedule.TotalInterest)
	assert.Equal(t, "0.00", schedule.TotalPrincipal)
	assert.Equal(t, "2025-02-10", schedule.FirstPaymentDay)

	rec = s.do(t, http.MethodPost, base+"/reject", ReviewRequest{Reviewer: "cfo"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInvestment_MissingTermsFailsApproval(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/investments", CreateInvestmentRequest{
		Name:           "No terms",
		Amount:         decimal.NewFromInt(5000),
		InvestmentDate: generic.NewTimePoint(2025, 1, 10),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decodeBody[payout.CompanyInvestment](t, rec)

	rec = s.do(t, http.MethodPost, "/api/investments/"+string(inv.ID)+"/approve", ReviewRequest{Reviewer: "cfo"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	details, ok := decodeBody[ErrorResponse](t, rec).Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "duration_months", details["field"])
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAdmin_PurgeAndAudit(t *testing.T) {
	// GIVEN: A rejected subscription last touched long before the TTL
	// WHEN: Triggering the purge and querying the audit trail
	// THEN: The subscription is gone and the trail still shows its rejection

	s := newTestServer(t)
	sub := s.createPlanAndSubscription(t)
	base := "/api/subscriptions/" + string(sub.ID)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/reject", ReviewRequest{Reviewer: "ops"}).Code)

	rec := s.do(t, http.MethodPost, "/api/admin/purge", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeBody[map[string]any](t, rec)
	assert.EqualValues(t, 1, result["subscriptions_deleted"])

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, base, nil).Code)

	// Flush the async sink before reading the trail back.
	s.sink.Close()

	rec = s.do(t, http.MethodGet, "/api/admin/audit?table=subscriptions&action=reject,create", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entries := decodeBody[[]generic.AuditEntry](t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, generic.AuditCreate, entries[0].Action)
	assert.Equal(t, generic.AuditReject, entries[1].Action)
	assert.Equal(t, string(sub.ID), entries[1].RecordID)

	rec = s.do(t, http.MethodGet, "/api/admin/audit?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_Unconfigured(t *testing.T) {
	s := newTestServer(t)
	s.handler.Housekeeping = nil
	s.handler.Audit = nil

	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodPost, "/api/admin/purge", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, "/api/admin/audit", nil).Code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{generic.Invalid("x", "bad"), http.StatusBadRequest},
		{generic.NotFound("plan", "p"), http.StatusNotFound},
		{generic.ErrAlreadyPaid, http.StatusConflict},
		{generic.Persist("save", io.ErrUnexpectedEOF), http.StatusServiceUnavailable},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusOf(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
