package generic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (l *recordingLog) AppendAudit(_ context.Context, entry AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, entry)
	return nil
}

func TestAuditSink_WritesInOrderAndDrainsOnClose(t *testing.T) {
	log := &recordingLog{}
	sink := NewAuditSink(log, nil, 8)

	sink.Record(AuditEntry{Table: "plans", Action: AuditCreate})
	sink.Record(AuditEntry{Table: "subscriptions", Action: AuditApprove})
	sink.Close()

	require.Len(t, log.entries, 2)
	assert.Equal(t, AuditCreate, log.entries[0].Action)
	assert.Equal(t, AuditApprove, log.entries[1].Action)
	assert.NotEmpty(t, log.entries[0].ID)
	assert.False(t, log.entries[0].Timestamp.IsZero())

	// Closed sinks drop entries instead of panicking.
	sink.Record(AuditEntry{Action: AuditSettle})
	sink.Close()
	assert.Len(t, log.entries, 2)
}

func TestAuditSink_WriteFailureIsLoggedNotReturned(t *testing.T) {
	// GIVEN: An audit log that always fails
	// WHEN: Recording through the sink
	// THEN: The caller never sees the error, the logger does

	logger, hook := test.NewNullLogger()
	sink := NewAuditSink(&recordingLog{err: errors.New("disk full")}, logger, 1)
	sink.Record(AuditEntry{Table: "payment_schedules", Action: AuditPaymentMarked})
	sink.Close()

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "audit write failed", hook.LastEntry().Message)
}

func TestAuditSink_NilIsSafe(t *testing.T) {
	var sink *AuditSink
	sink.Record(AuditEntry{})
	sink.Close()
}

func TestAuditBuffer_FlushAfterCommit(t *testing.T) {
	buf := &AuditBuffer{}
	buf.Record(AuditEntry{Action: AuditApprove})
	buf.Record(AuditEntry{Action: AuditGenerateSchedule, Timestamp: time.Unix(0, 0)})
	require.Len(t, buf.Entries(), 2)

	target := &AuditBuffer{}
	buf.Flush(target)
	assert.Empty(t, buf.Entries())

	got := target.Entries()
	require.Len(t, got, 2)
	assert.Equal(t, AuditGenerateSchedule, got[1].Action)
	assert.Equal(t, time.Unix(0, 0), got[1].Timestamp)

	// Flushing to nil discards.
	buf.Record(AuditEntry{Action: AuditReject})
	buf.Flush(nil)
	assert.Empty(t, buf.Entries())

	Discard{}.Record(AuditEntry{})
}

func TestAuditFilter_Matches(t *testing.T) {
	at := time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC)
	entry := AuditEntry{Table: "subscriptions", RecordID: "s1", Action: AuditApprove, Timestamp: at}
	before, after := at.Add(-time.Hour), at.Add(time.Hour)

	tests := []struct {
		name   string
		filter AuditFilter
		want   bool
	}{
		{"empty", AuditFilter{}, true},
		{"table", AuditFilter{Table: "subscriptions"}, true},
		{"other table", AuditFilter{Table: "plans"}, false},
		{"record", AuditFilter{RecordID: "s2"}, false},
		{"action in set", AuditFilter{Actions: []AuditAction{AuditReject, AuditApprove}}, true},
		{"action not in set", AuditFilter{Actions: []AuditAction{AuditReject}}, false},
		{"window", AuditFilter{From: &before, To: &after}, true},
		{"after window", AuditFilter{To: &before}, false},
		{"before window", AuditFilter{From: &after}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(entry))
		})
	}
}

var _ AuditLog = (*recordingLog)(nil)
