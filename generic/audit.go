package generic

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AuditRecorder accepts audit entries without reporting failure. The primary
// operation never depends on the audit write succeeding.
type AuditRecorder interface {
	Record(entry AuditEntry)
}

// =============================================================================
// AUDIT SINK - Async, best-effort writes to an AuditLog
// =============================================================================

// AuditSink queues entries and writes them to an AuditLog from a background
// goroutine. A full queue drops the entry with a warning; write failures are
// logged and swallowed.
type AuditSink struct {
	log     AuditLog
	logger  logrus.FieldLogger
	timeout time.Duration

	mu      sync.Mutex
	closed  bool
	entries chan AuditEntry
	done    chan struct{}
}

// NewAuditSink starts the writer goroutine. Call Close to drain it.
func NewAuditSink(log AuditLog, logger logrus.FieldLogger, buffer int) *AuditSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if buffer <= 0 {
		buffer = 256
	}
	s := &AuditSink{
		log:     log,
		logger:  logger,
		timeout: 5 * time.Second,
		entries: make(chan AuditEntry, buffer),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Record enqueues the entry. Safe on a nil sink.
func (s *AuditSink) Record(entry AuditEntry) {
	if s == nil {
		return
	}
	stamp(&entry)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.WithField("action", entry.Action).Warn("audit sink closed, entry dropped")
		return
	}
	select {
	case s.entries <- entry:
	default:
		s.logger.WithFields(logrus.Fields{
			"action":    entry.Action,
			"table":     entry.Table,
			"record_id": entry.RecordID,
		}).Warn("audit queue full, entry dropped")
	}
}

// Close stops accepting entries and waits for queued ones to be written.
func (s *AuditSink) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.entries)
	s.mu.Unlock()
	<-s.done
}

func (s *AuditSink) run() {
	defer close(s.done)
	for entry := range s.entries {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.log.AppendAudit(ctx, entry)
		cancel()
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"action":    entry.Action,
				"table":     entry.Table,
				"record_id": entry.RecordID,
			}).Error("audit write failed")
		}
	}
}

// =============================================================================
// AUDIT BUFFER - Holds entries until a transaction commits
// =============================================================================

// AuditBuffer collects entries produced inside a transaction. Flush forwards
// them once the transaction has committed; a rolled back transaction simply
// discards the buffer.
type AuditBuffer struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (b *AuditBuffer) Record(entry AuditEntry) {
	stamp(&entry)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry)
}

// Entries returns a copy of the buffered entries.
func (b *AuditBuffer) Entries() []AuditEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]AuditEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Flush forwards buffered entries to r and empties the buffer.
func (b *AuditBuffer) Flush(r AuditRecorder) {
	b.mu.Lock()
	entries := b.entries
	b.entries = nil
	b.mu.Unlock()
	if r == nil {
		return
	}
	for _, e := range entries {
		r.Record(e)
	}
}

// Discard is an AuditRecorder that drops everything.
type Discard struct{}

func (Discard) Record(AuditEntry) {}

func stamp(entry *AuditEntry) {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
}
