package engine

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

// MarkPayoutPaid records an operator's payment of one payout event. Payment
// metadata is only written on the unpaid -> paid transition. When the event
// completes its subscription's schedule, the subscription is settled.
func (e *Engine) MarkPayoutPaid(ctx context.Context, id generic.EventID, info payout.PaymentInfo, actor string) (*payout.PayoutEvent, error) {
	var out payout.PayoutEvent
	var settled generic.SubscriptionID
	now := e.clock()

	err := e.inTx(ctx, func(s Store, audit generic.AuditRecorder) error {
		event, err := s.GetEvent(ctx, id)
		if err != nil {
			return generic.Persist("get payout event", err)
		}
		if event == nil {
			return generic.NotFound("payout event", string(id))
		}
		if err := event.MarkPaid(info, now); err != nil {
			return err
		}
		if err := s.MarkEventPaid(ctx, *event); err != nil {
			return generic.Persist("mark payout paid", err)
		}
		audit.Record(generic.AuditEntry{
			ActorID:  actor,
			Table:    "payment_schedules",
			RecordID: string(id),
			Action:   generic.AuditPaymentMarked,
			Before:   map[string]any{"is_paid": false},
			After:    map[string]any{"is_paid": true, "payment_method": event.Method, "transaction_id": event.TransactionID},
		})
		out = *event

		if event.SubscriptionID == "" {
			return nil
		}
		done, err := e.settleIfComplete(ctx, s, audit, event.SubscriptionID)
		if err != nil {
			return err
		}
		if done {
			settled = event.SubscriptionID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if settled != "" {
		e.logger.WithField("subscription_id", settled).Info("subscription settled, all payouts paid")
	}
	return &out, nil
}

// settleIfComplete moves an approved subscription to settled once every one
// of its payout events is paid.
func (e *Engine) settleIfComplete(ctx context.Context, s Store, audit generic.AuditRecorder, id generic.SubscriptionID) (bool, error) {
	events, err := s.EventsForSubscription(ctx, id)
	if err != nil {
		return false, generic.Persist("load schedule", err)
	}
	if !payout.AllPaid(events) {
		return false, nil
	}
	sub, err := s.GetSubscription(ctx, id)
	if err != nil {
		return false, generic.Persist("get subscription", err)
	}
	if sub == nil || sub.Status != generic.StatusApproved {
		return false, nil
	}
	sub.Status = generic.StatusSettled
	sub.UpdatedAt = e.clock()
	if err := s.SaveSubscription(ctx, *sub); err != nil {
		return false, generic.Persist("save subscription", err)
	}
	audit.Record(generic.AuditEntry{
		ActorID:  "system",
		Table:    "subscriptions",
		RecordID: string(id),
		Action:   generic.AuditAutoSettled,
		Before:   map[string]any{"approval_status": generic.StatusApproved},
		After:    map[string]any{"approval_status": generic.StatusSettled},
	})
	return true, nil
}

// DuePayouts lists unpaid payout events scheduled on the given day.
func (e *Engine) DuePayouts(ctx context.Context, day generic.TimePoint) ([]payout.PayoutEvent, error) {
	if day.IsZero() {
		return nil, generic.Invalid("date", "required")
	}
	events, err := e.store.DueEvents(ctx, day)
	if err != nil {
		return nil, generic.Persist("list due payouts", err)
	}
	e.logger.WithFields(logrus.Fields{"date": day.String(), "count": len(events)}).Debug("due payouts listed")
	return events, nil
}
