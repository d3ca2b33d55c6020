package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/payout-engine/generic"
)

// PurgeResult counts what PurgeRejected removed.
type PurgeResult struct {
	Subscriptions int `json:"subscriptions"`
	Investments   int `json:"investments"`
}

// PurgeRejected deletes rejected subscriptions and investments last updated
// before the cutoff.
func (e *Engine) PurgeRejected(ctx context.Context, before time.Time) (PurgeResult, error) {
	var res PurgeResult
	err := e.inTx(ctx, func(s Store, audit generic.AuditRecorder) error {
		var err error
		if res.Subscriptions, err = s.DeleteRejectedSubscriptions(ctx, before); err != nil {
			return generic.Persist("delete rejected subscriptions", err)
		}
		if res.Investments, err = s.DeleteRejectedInvestments(ctx, before); err != nil {
			return generic.Persist("delete rejected investments", err)
		}
		if res.Subscriptions+res.Investments > 0 {
			audit.Record(generic.AuditEntry{
				ActorID: "system",
				Table:   "subscriptions",
				Action:  generic.AuditDeleteRejected,
				After: map[string]any{
					"subscriptions": res.Subscriptions,
					"investments":   res.Investments,
					"before":        before.UTC().Format(time.RFC3339),
				},
			})
		}
		return nil
	})
	if err != nil {
		return PurgeResult{}, err
	}
	e.logger.WithFields(logrus.Fields{
		"subscriptions": res.Subscriptions,
		"investments":   res.Investments,
	}).Info("rejected records purged")
	return res, nil
}
