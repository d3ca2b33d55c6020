package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// FAKES
// =============================================================================

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	published  []published
	publishErr error
	closed     bool
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.declared = append(c.declared, name+":"+kind)
	return nil
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type memLog struct {
	entries []generic.AuditEntry
	err     error
}

func (l *memLog) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, entry)
	return nil
}

var entry = generic.AuditEntry{
	ID:        "a1",
	Timestamp: time.Date(2025, time.March, 18, 11, 0, 0, 0, time.UTC),
	Table:     "payment_schedules",
	RecordID:  "sub-1",
	Action:    generic.AuditGenerateSchedule,
	After:     map[string]any{"count": 12},
}

// =============================================================================
// PUBLISHER
// =============================================================================

func TestPublisher_PublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "payout.audit", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"payout.audit:topic"}, ch.declared)

	require.NoError(t, p.AppendAudit(context.Background(), entry))
	require.Len(t, ch.published, 1)

	msg := ch.published[0]
	assert.Equal(t, "payout.audit", msg.exchange)
	assert.Equal(t, "audit.payment_schedules.generate_schedule", msg.key)
	assert.Equal(t, amqp.Persistent, msg.msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.msg.ContentType)
	assert.Equal(t, "a1", msg.msg.MessageId)

	var decoded generic.AuditEntry
	require.NoError(t, json.Unmarshal(msg.msg.Body, &decoded))
	assert.Equal(t, entry.RecordID, decoded.RecordID)
	assert.Equal(t, entry.Action, decoded.Action)
}

func TestPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	p, err := newPublisher(ch, "payout.audit", nil)
	require.NoError(t, err)

	assert.Error(t, p.AppendAudit(context.Background(), entry))

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "audit.subscriptions.approve",
		RoutingKey(generic.AuditEntry{Table: "subscriptions", Action: generic.AuditApprove}))
	assert.Equal(t, "audit.unknown.delete_rejected",
		RoutingKey(generic.AuditEntry{Action: generic.AuditDeleteRejected}))
}

// =============================================================================
// MULTI LOG
// =============================================================================

func TestMultiLog_WritesToEveryLog(t *testing.T) {
	// GIVEN: Two logs, the first of which fails
	// WHEN: Appending an entry
	// THEN: The second log still receives it and the error is reported

	failing := &memLog{err: errors.New("broker down")}
	healthy := &memLog{}
	multi := MultiLog{failing, nil, healthy}

	err := multi.AppendAudit(context.Background(), entry)
	assert.ErrorContains(t, err, "broker down")
	require.Len(t, healthy.entries, 1)
	assert.Equal(t, "a1", healthy.entries[0].ID)
}

func TestMultiLog_ThroughSink(t *testing.T) {
	a, b := &memLog{}, &memLog{}
	sink := generic.NewAuditSink(MultiLog{a, b}, nil, 4)
	sink.Record(entry)
	sink.Close()

	assert.Len(t, a.entries, 1)
	assert.Len(t, b.entries, 1)
}
