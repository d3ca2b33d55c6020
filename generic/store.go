/*
store.go - Persistence contracts shared by every domain package

PURPOSE:
  Defines the audit log interface and the filter used to query it, plus the
  action vocabulary used by the engine. Domain packages (payout, agents)
  declare their own narrow read/append interfaces next to the code that
  uses them; this file only holds what is common to all of them.

APPEND-ONLY CONTRACT:
  The audit log is append-only. No Update, no Delete. Entries record
  (table, record id, action, before, after, actor).

IMPLEMENTATIONS:
  - store/memory: In-memory for testing
  - store/sqlite: audit_trail table
  - store/postgres: audit_trails table via gorm
  - audit.Publisher: RabbitMQ exchange (fire-and-forget)

SEE ALSO:
  - audit.go: Best-effort async sink that never fails the caller
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// AUDIT LOG - Separate from the schedule rows, tracks who did what when
// =============================================================================

// AuditEntry records who did what when.
type AuditEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	ActorID   string         `json:"actor_id,omitempty"` // who performed the action; empty = system
	Table     string         `json:"table"`              // e.g., "payment_schedules"
	RecordID  string         `json:"record_id,omitempty"`
	Action    AuditAction    `json:"action"`
	Before    map[string]any `json:"before,omitempty"`
	After     map[string]any `json:"after,omitempty"`
}

type AuditAction string

const (
	AuditCreate            AuditAction = "CREATE"
	AuditApprove           AuditAction = "APPROVE"
	AuditReject            AuditAction = "REJECT"
	AuditSettle            AuditAction = "SETTLE"
	AuditAutoSettled       AuditAction = "SETTLED"
	AuditPaymentMarked     AuditAction = "PAYMENT_MARKED"
	AuditGenerateSchedule  AuditAction = "GENERATE_SCHEDULE"
	AuditGeneratePayments  AuditAction = "GENERATE_PAYMENTS"
	AuditGenerateRewards   AuditAction = "GENERATE_REWARDS"
	AuditInvestmentPayouts AuditAction = "AUTO_GENERATE_MONTHLY_PAYMENTS"
	AuditDeleteRejected    AuditAction = "DELETE_REJECTED"
)

// AuditLog stores audit entries. Also append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
}

// AuditQuerier reads audit entries back (admin views, tests).
type AuditQuerier interface {
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	Table    string
	RecordID string
	Actions  []AuditAction
	From     *time.Time
	To       *time.Time
}

// Matches reports whether the entry passes the filter.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.Table != "" && e.Table != f.Table {
		return false
	}
	if f.RecordID != "" && e.RecordID != f.RecordID {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if a == e.Action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}
