package payout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// PAYMENT SCHEDULE GENERATOR
// =============================================================================

// ScheduleGenerator computes a subscription's schedule, persists it in one
// batch and records one audit entry.
//
// NOT IDEMPOTENT: every call persists a new schedule. Calling Generate twice
// for the same subscription leaves two schedules behind. The approval
// workflow is responsible for invoking it at most once per subscription
// (engine.ApproveSubscription only does so on the pending -> approved
// transition).
type ScheduleGenerator struct {
	Events EventWriter
	Audit  generic.AuditRecorder
	Logger logrus.FieldLogger
	NewID  generic.IDFunc
	Now    func() time.Time
}

func NewScheduleGenerator(events EventWriter, audit generic.AuditRecorder, logger logrus.FieldLogger) *ScheduleGenerator {
	return &ScheduleGenerator{Events: events, Audit: audit, Logger: logger}
}

// Generate builds and persists the schedule for subscriptionID. Validation
// errors fail before anything is written; a failed batch write surfaces as a
// PersistenceError with no rows visible.
func (g *ScheduleGenerator) Generate(ctx context.Context, subscriptionID generic.SubscriptionID, principal decimal.Decimal, anchor generic.TimePoint, plan Plan) ([]PayoutEvent, error) {
	if subscriptionID == "" {
		return nil, generic.Invalid("subscription_id", "required")
	}
	events, err := Calculate(principal, plan, anchor)
	if err != nil {
		return nil, err
	}

	newID := g.NewID.OrDefault()
	now := g.now()
	for i := range events {
		events[i].ID = generic.EventID(newID())
		events[i].SubscriptionID = subscriptionID
		events[i].CreatedAt = now
	}

	if err := g.Events.InsertEvents(ctx, events); err != nil {
		return nil, generic.Persist("insert payment schedule", err)
	}

	first := FirstPayoutDate(anchor)
	g.logger().WithFields(logrus.Fields{
		"subscription_id": subscriptionID,
		"plan_id":         plan.ID,
		"segment":         plan.Segment,
		"count":           len(events),
		"first_payment":   first.String(),
	}).Info("payment schedule generated")

	g.audit().Record(generic.AuditEntry{
		Table:    "payment_schedules",
		RecordID: string(subscriptionID),
		Action:   generic.AuditGenerateSchedule,
		After:    map[string]any{"count": len(events), "first_payment": first.String()},
	})
	return events, nil
}

func (g *ScheduleGenerator) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

func (g *ScheduleGenerator) logger() logrus.FieldLogger {
	if g.Logger == nil {
		return logrus.StandardLogger()
	}
	return g.Logger
}

func (g *ScheduleGenerator) audit() generic.AuditRecorder {
	if g.Audit == nil {
		return generic.Discard{}
	}
	return g.Audit
}
