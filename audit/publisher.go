/*
Package audit carries audit entries beyond the primary database.

PURPOSE:
  The engine writes every audit entry to the store's audit_trail through
  generic.AuditSink. Deployments that feed other systems (reporting,
  compliance archives) also publish each entry to a RabbitMQ topic exchange.
  MultiLog fans one entry out to several logs.

ROUTING KEYS:
  audit.<table>.<action>, lower-cased, e.g. audit.payment_schedules.generate_schedule

SEE ALSO:
  - generic/audit.go: AuditSink (async, best-effort writer)
  - generic/store.go: AuditEntry, AuditLog
*/
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/warp/payout-engine/generic"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes audit entries as persistent JSON messages.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  channel
	exchange string
	logger   logrus.FieldLogger
}

// Dial connects to url, retrying a few times, and declares exchange as a
// durable topic exchange.
func Dial(url, exchange string, logger logrus.FieldLogger) (*Publisher, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	maxRetries := 5
	retryDelay := 2 * time.Second

	var conn *amqp.Connection
	var err error
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		if i < maxRetries-1 {
			logger.WithError(err).Warnf("failed to connect to RabbitMQ (attempt %d/%d), retrying in %v", i+1, maxRetries, retryDelay)
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p, err := newPublisher(ch, exchange, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	logger.WithField("exchange", exchange).Info("audit publisher connected")
	return p, nil
}

func newPublisher(ch channel, exchange string, logger logrus.FieldLogger) (*Publisher, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &Publisher{channel: ch, exchange: exchange, logger: logger}, nil
}

// AppendAudit implements generic.AuditLog.
func (p *Publisher) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	key := RoutingKey(entry)
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		key,        // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    entry.ID,
			Timestamp:    entry.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish audit entry: %w", err)
	}

	p.logger.WithFields(logrus.Fields{"routing_key": key, "record_id": entry.RecordID}).Debug("audit entry published")
	return nil
}

// Close closes the channel and, when Dial opened it, the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// RoutingKey builds audit.<table>.<action>.
func RoutingKey(entry generic.AuditEntry) string {
	table := entry.Table
	if table == "" {
		table = "unknown"
	}
	return strings.ToLower("audit." + table + "." + string(entry.Action))
}
