/*
handlers.go - HTTP API handlers for the payout engine

PURPOSE:
  Exposes the approval workflow via REST API. Handles HTTP request/response
  and JSON serialization, and delegates every state change to engine.Engine.
  No handler writes to the store directly.

ENDPOINTS:
  Plans:
    GET    /api/plans                          List plans
    POST   /api/plans                          Create plan from JSON
    POST   /api/plans/preview                  Compute a schedule without saving

  Subscriptions:
    POST   /api/subscriptions                  Create pending subscription
    GET    /api/subscriptions/{id}             Get subscription
    POST   /api/subscriptions/{id}/approve     Approve and generate schedule
    POST   /api/subscriptions/{id}/reject      Reject
    POST   /api/subscriptions/{id}/settle      Force every payout to paid
    GET    /api/subscriptions/{id}/schedule    Payout schedule with totals

  Payouts:
    GET    /api/payouts/due?date=YYYY-MM-DD    Unpaid payouts due on a day
    POST   /api/payouts/{id}/paid              Mark one payout paid

  Company investments:
    POST   /api/investments                    Create pending investment
    POST   /api/investments/{id}/approve       Approve and generate payouts
    POST   /api/investments/{id}/reject        Reject
    GET    /api/investments/{id}/payouts       Generated payouts

  Agents:
    POST   /api/agents                         Create agent
    POST   /api/agents/{id}/approve            Approve agent
    GET    /api/agents/{id}/payments           Commission payments
    GET    /api/agents/{id}/rewards            Reward records
    POST   /api/gift-plans                     Create gift plan

  Admin:
    POST   /api/admin/purge                    Run the rejected-record purge now
    GET    /api/admin/audit                    Query the audit trail

ERROR HANDLING:
  Errors are returned as JSON with a status derived from the error kind:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: Invalid state transition, already paid
  - 503: Retryable persistence failure
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. Reviewer and actor names
  are taken from the request body as given.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/payout-engine/agents"
	"github.com/warp/payout-engine/engine"
	"github.com/warp/payout-engine/factory"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/housekeeping"
	"github.com/warp/payout-engine/payout"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine       *engine.Engine
	Plans        *factory.PlanFactory
	Audit        generic.AuditQuerier    // nil disables GET /api/admin/audit
	Housekeeping *housekeeping.Scheduler // nil disables POST /api/admin/purge
	Logger       logrus.FieldLogger

	// Track the last loaded scenario
	currentScenario string
}

// NewHandler creates a handler over the engine. When the engine's store also
// keeps the audit trail it is used for audit queries.
func NewHandler(e *engine.Engine, logger logrus.FieldLogger) *Handler {
	h := &Handler{
		Engine: e,
		Plans:  factory.NewPlanFactory(),
		Logger: logger,
	}
	if q, ok := e.Store().(generic.AuditQuerier); ok {
		h.Audit = q
	}
	if h.Logger == nil {
		h.Logger = logrus.StandardLogger()
	}
	return h
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns every plan.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Engine.Store().ListPlans(r.Context())
	if err != nil {
		h.fail(w, "Failed to list plans", err)
		return
	}
	if plans == nil {
		plans = []payout.Plan{}
	}
	writeJSON(w, http.StatusOK, plans)
}

// CreatePlan accepts a PlanJSON body.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req factory.PlanJSON
	if !decode(w, r, &req) {
		return
	}
	plan, err := h.Plans.FromJSON(req)
	if err != nil {
		h.fail(w, "Invalid plan", err)
		return
	}
	plan, err = h.Engine.CreatePlan(r.Context(), plan)
	if err != nil {
		h.fail(w, "Failed to create plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

// PreviewSchedule computes a schedule for a plan without persisting it.
func (h *Handler) PreviewSchedule(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Anchor.IsZero() {
		req.Anchor = generic.Today()
	}
	events, err := h.Engine.Preview(r.Context(), generic.PlanID(req.PlanID), req.Principal, req.Anchor)
	if err != nil {
		h.fail(w, "Failed to preview schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(events))
}

// =============================================================================
// SUBSCRIPTION HANDLERS
// =============================================================================

func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriptionRequest
	if !decode(w, r, &req) {
		return
	}
	sub, err := h.Engine.CreateSubscription(r.Context(), payout.Subscription{
		ID:             generic.SubscriptionID(req.ID),
		PlanID:         generic.PlanID(req.PlanID),
		AgentID:        generic.AgentID(req.AgentID),
		InvestorName:   req.InvestorName,
		InvestorEmail:  req.InvestorEmail,
		Principal:      req.Amount,
		InvestmentDate: req.InvestmentDate,
		SubmittedBy:    req.SubmittedBy,
	})
	if err != nil {
		h.fail(w, "Failed to create subscription", err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := h.Engine.Store().GetSubscription(r.Context(), generic.SubscriptionID(id))
	if err != nil {
		h.fail(w, "Failed to get subscription", err)
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "Subscription not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// ApproveSubscription approves a pending subscription. The response carries
// the generated schedule, commission payments and rewards.
func (h *Handler) ApproveSubscription(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.Engine.ApproveSubscription(r.Context(), generic.SubscriptionID(chi.URLParam(r, "id")), req.Reviewer, req.Comments)
	if err != nil {
		h.fail(w, "Failed to approve subscription", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) RejectSubscription(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if !decode(w, r, &req) {
		return
	}
	sub, err := h.Engine.RejectSubscription(r.Context(), generic.SubscriptionID(chi.URLParam(r, "id")), req.Reviewer, req.Comments)
	if err != nil {
		h.fail(w, "Failed to reject subscription", err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) SettleSubscription(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if !decode(w, r, &req) {
		return
	}
	sub, err := h.Engine.SettleSubscription(r.Context(), generic.SubscriptionID(chi.URLParam(r, "id")), req.Actor)
	if err != nil {
		h.fail(w, "Failed to settle subscription", err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	events, err := h.Engine.Schedule(r.Context(), generic.SubscriptionID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, "Failed to get schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(events))
}

// =============================================================================
// PAYOUT HANDLERS
// =============================================================================

// ListDuePayouts returns unpaid payouts due on ?date=, defaulting to today.
func (h *Handler) ListDuePayouts(w http.ResponseWriter, r *http.Request) {
	day := generic.Today()
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := generic.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		day = d
	}
	events, err := h.Engine.DuePayouts(r.Context(), day)
	if err != nil {
		h.fail(w, "Failed to list due payouts", err)
		return
	}
	if events == nil {
		events = []payout.PayoutEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// MarkPayoutPaid marks one payout paid. Marking the last unpaid payout of a
// subscription settles the subscription.
func (h *Handler) MarkPayoutPaid(w http.ResponseWriter, r *http.Request) {
	var req MarkPaidRequest
	if !decode(w, r, &req) {
		return
	}
	info := payout.PaymentInfo{
		Method:        payout.PaymentMethod(req.PaymentMethod),
		TransactionID: req.TransactionID,
	}
	event, err := h.Engine.MarkPayoutPaid(r.Context(), generic.EventID(chi.URLParam(r, "id")), info, req.Actor)
	if err != nil {
		h.fail(w, "Failed to mark payout paid", err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// =============================================================================
// COMPANY INVESTMENT HANDLERS
// =============================================================================

func (h *Handler) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	var req CreateInvestmentRequest
	if !decode(w, r, &req) {
		return
	}
	inv, err := h.Engine.CreateInvestment(r.Context(), payout.CompanyInvestment{
		ID:               generic.InvestmentID(req.ID),
		Name:             req.Name,
		Description:      req.Description,
		Principal:        req.Amount,
		ExpectedReturn:   req.ExpectedReturn,
		ReturnPercentage: req.ReturnPercentage,
		InvestmentDate:   req.InvestmentDate,
		DurationMonths:   req.DurationMonths,
		SubmittedBy:      req.SubmittedBy,
	})
	if err != nil {
		h.fail(w, "Failed to create investment", err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *Handler) ApproveInvestment(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.Engine.ApproveInvestment(r.Context(), generic.InvestmentID(chi.URLParam(r, "id")), req.Reviewer, req.Comments)
	if err != nil {
		h.fail(w, "Failed to approve investment", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) RejectInvestment(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if !decode(w, r, &req) {
		return
	}
	inv, err := h.Engine.RejectInvestment(r.Context(), generic.InvestmentID(chi.URLParam(r, "id")), req.Reviewer, req.Comments)
	if err != nil {
		h.fail(w, "Failed to reject investment", err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *Handler) GetInvestmentPayouts(w http.ResponseWriter, r *http.Request) {
	events, err := h.Engine.InvestmentPayouts(r.Context(), generic.InvestmentID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, "Failed to get investment payouts", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(events))
}

// =============================================================================
// AGENT HANDLERS
// =============================================================================

func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if !decode(w, r, &req) {
		return
	}
	agent, err := h.Engine.CreateAgent(r.Context(), agents.Agent{
		ID:                   generic.AgentID(req.ID),
		Name:                 req.Name,
		Email:                req.Email,
		Type:                 agents.AgentType(req.AgentType),
		ParentID:             generic.AgentID(req.ParentAgentID),
		CommissionPercentage: req.CommissionPercentage,
	})
	if err != nil {
		h.fail(w, "Failed to create agent", err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func (h *Handler) ApproveAgent(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if !decode(w, r, &req) {
		return
	}
	agent, err := h.Engine.ApproveAgent(r.Context(), generic.AgentID(chi.URLParam(r, "id")), req.Reviewer)
	if err != nil {
		h.fail(w, "Failed to approve agent", err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (h *Handler) GetAgentPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Engine.AgentPayments(r.Context(), generic.AgentID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, "Failed to get agent payments", err)
		return
	}
	if payments == nil {
		payments = []agents.AgentPayment{}
	}
	writeJSON(w, http.StatusOK, payments)
}

func (h *Handler) GetAgentRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.Engine.AgentRewards(r.Context(), generic.AgentID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, "Failed to get agent rewards", err)
		return
	}
	if rewards == nil {
		rewards = []agents.AgentReward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

// CreateGiftPlan accepts a GiftPlanJSON body.
func (h *Handler) CreateGiftPlan(w http.ResponseWriter, r *http.Request) {
	var req factory.GiftPlanJSON
	if !decode(w, r, &req) {
		return
	}
	plan, err := h.Plans.GiftPlanFromJSON(req)
	if err != nil {
		h.fail(w, "Invalid gift plan", err)
		return
	}
	plan, err = h.Engine.CreateGiftPlan(r.Context(), plan)
	if err != nil {
		h.fail(w, "Failed to create gift plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerPurge runs the rejected-record purge immediately.
func (h *Handler) TriggerPurge(w http.ResponseWriter, r *http.Request) {
	if h.Housekeeping == nil {
		writeError(w, http.StatusServiceUnavailable, "Housekeeping is not configured", nil)
		return
	}
	result, err := h.Housekeeping.RunNow(r.Context())
	if err != nil {
		h.fail(w, "Purge failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subscriptions_deleted": result.Subscriptions,
		"investments_deleted":   result.Investments,
		"next_run":              h.Housekeeping.NextRunTime(),
	})
}

// QueryAudit filters the audit trail by ?table=, ?record_id=, ?action=
// (repeatable or comma separated), ?from= and ?to= (RFC 3339).
func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeError(w, http.StatusServiceUnavailable, "Audit trail is not queryable", nil)
		return
	}
	q := r.URL.Query()
	filter := generic.AuditFilter{
		Table:    q.Get("table"),
		RecordID: q.Get("record_id"),
	}
	for _, v := range q["action"] {
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				filter.Actions = append(filter.Actions, generic.AuditAction(strings.ToUpper(a)))
			}
		}
	}
	for key, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		s := q.Get(key)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid "+key+" time", err)
			return
		}
		*dst = &t
	}

	entries, err := h.Audit.QueryAudit(r.Context(), filter)
	if err != nil {
		h.fail(w, "Failed to query audit trail", err)
		return
	}
	if entries == nil {
		entries = []generic.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// fail maps an engine error to its HTTP status and writes it.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.Logger.WithError(err).Error(message)
	}
	resp := ErrorResponse{Error: message, Code: code, Details: err.Error()}
	var verr *generic.ValidationError
	if errors.As(err, &verr) {
		resp.Details = map[string]string{"field": verr.Field, "reason": verr.Reason}
	}
	writeJSON(w, status, resp)
}

func statusOf(err error) (int, string) {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound, "NOT_FOUND"
	case generic.IsConflict(err):
		return http.StatusConflict, "CONFLICT"
	case generic.IsClientError(err):
		return http.StatusBadRequest, "VALIDATION"
	case generic.IsRetryable(err):
		return http.StatusServiceUnavailable, "RETRYABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
