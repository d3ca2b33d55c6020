/*
Package engine is the approval workflow around the payout core.

PURPOSE:
  Owns the lifecycle transitions that trigger generation and guarantees each
  generator runs at most once per record: a subscription or investment is
  only generated on its pending -> approved transition, inside one store
  transaction together with the status change.

LIFECYCLE:
  Subscription: pending -> approved -> settled
                pending -> rejected
  Investment:   pending -> approved
                pending -> rejected
  Agent:        pending -> approved

  approved -> settled happens either explicitly (SettleSubscription forces
  every payout event to paid) or automatically when the last unpaid payout
  event of a subscription is marked paid.

AUDIT:
  Entries produced inside a transaction are buffered and forwarded to the
  audit recorder only after commit. A rolled back approval leaves no trail.

SEE ALSO:
  - payout/schedule.go: Schedule generator (not idempotent on its own)
  - agents/commission.go: Commission cascade
  - agents/rewards.go: Reward engine
*/
package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/payout-engine/generic"
)

// Engine applies approval workflow operations to a Store.
type Engine struct {
	store  Store
	audit  generic.AuditRecorder
	logger logrus.FieldLogger
	now    func() time.Time
	newID  generic.IDFunc
	dedupe bool
}

type Option func(*Engine)

// WithAudit sets where committed audit entries go.
func WithAudit(r generic.AuditRecorder) Option {
	return func(e *Engine) { e.audit = r }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock pins the engine's notion of "now".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDs(f generic.IDFunc) Option {
	return func(e *Engine) { e.newID = f }
}

// WithRewardDedupe skips reward triples that were already recorded.
func WithRewardDedupe(on bool) Option {
	return func(e *Engine) { e.dedupe = on }
}

func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		audit:  generic.Discard{},
		logger: logrus.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.newID = e.newID.OrDefault()
	return e
}

// Store returns the underlying store for read-only views.
func (e *Engine) Store() Store { return e.store }

func (e *Engine) clock() time.Time { return e.now().UTC() }

// inTx runs fn inside a store transaction when the store supports one. The
// recorder handed to fn buffers entries until the transaction commits.
func (e *Engine) inTx(ctx context.Context, fn func(s Store, audit generic.AuditRecorder) error) error {
	buf := &generic.AuditBuffer{}

	var err error
	if tx, ok := e.store.(TxStore); ok {
		err = tx.WithTx(ctx, func(s Store) error { return fn(s, buf) })
	} else {
		err = fn(e.store, buf)
	}
	if err != nil {
		return err
	}
	buf.Flush(e.audit)
	return nil
}

func statusTransition(kind, id string, from, to generic.ApprovalStatus) error {
	return &generic.TransitionError{Kind: kind, ID: id, From: string(from), To: string(to)}
}
