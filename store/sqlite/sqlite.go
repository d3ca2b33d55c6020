/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements engine.TxStore and the audit log using SQLite. In production,
  the same patterns apply to PostgreSQL (see store/postgres).

INTERFACES IMPLEMENTED:
  engine.TxStore:       Plans, subscriptions, investments, payout events,
                        agents, agent payments, gift plans, agent rewards
  generic.AuditLog:     audit_trail append
  generic.AuditQuerier: audit_trail reads

APPEND-ONLY ENFORCEMENT:
  - payment_schedules rows are never deleted; only the paid-state columns
    (is_paid, paid_at, payment_method, transaction_id) are ever updated
  - agent_payments, agent_rewards and audit_trail are insert-only

KEY TABLES:
  plans:               Terms snapshots
  subscriptions:       Customer investments and their approval state
  company_investments: Direct company investments
  payment_schedules:   Payout events, owned by a subscription XOR an investment
  agents:              Agent hierarchy (parent_agent_id)
  agent_payments:      Differential commission per tier
  gift_plans:          Reward programs
  agent_rewards:       Eligibility per (agent, gift plan, month)
  audit_trail:         Who did what when

STORAGE FORMATS:
  - Money and rates are TEXT decimal strings, never REAL
  - Calendar dates are TEXT "2006-01-02"
  - Timestamps are fixed-width UTC TEXT so that string order is time order

CONCURRENCY:
  Transactions are opened with BEGIN IMMEDIATE (_txlock=immediate), so two
  approvals of the same subscription are serialized and the second one sees
  the first one's status change. ":memory:" databases are limited to one
  connection so every caller sees the same database.

USAGE:
  store, err := sqlite.New("./data/payouts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  eng := engine.New(store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - engine/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/engine"
	"github.com/warp/payout-engine/generic"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements every store operation against a querier. Outside a
// transaction db is set so batch writes can open their own transaction.
type conn struct {
	q  querier
	db *sql.DB
}

// Store implements all storage interfaces using SQLite.
type Store struct {
	conn
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{conn: conn{q: db, db: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Plans (terms snapshots)
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		segment TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		return_percentage TEXT NOT NULL,
		discount_percentage TEXT NOT NULL DEFAULT '0',
		duration_months INTEGER NOT NULL,
		is_active BOOLEAN DEFAULT TRUE,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Subscriptions
	CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		agent_id TEXT,
		investor_name TEXT NOT NULL DEFAULT '',
		investor_email TEXT,
		investment_amount TEXT NOT NULL,
		investment_date TEXT,
		approval_status TEXT NOT NULL DEFAULT 'pending',
		submitted_by TEXT,
		reviewed_by TEXT,
		review_comments TEXT,
		approved_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Reward aggregation: direct sales of an agent approved in a window
	CREATE INDEX IF NOT EXISTS idx_subscriptions_agent_approved
		ON subscriptions(agent_id, approval_status, approved_at);
	CREATE INDEX IF NOT EXISTS idx_subscriptions_status_updated
		ON subscriptions(approval_status, updated_at);

	-- Company investments
	CREATE TABLE IF NOT EXISTS company_investments (
		id TEXT PRIMARY KEY,
		investment_name TEXT NOT NULL,
		description TEXT,
		investment_amount TEXT NOT NULL,
		expected_return TEXT,
		return_percentage TEXT,
		investment_date TEXT NOT NULL,
		duration_months INTEGER NOT NULL DEFAULT 0,
		approval_status TEXT NOT NULL DEFAULT 'pending',
		submitted_by TEXT,
		reviewed_by TEXT,
		review_comments TEXT,
		approved_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_investments_status_updated
		ON company_investments(approval_status, updated_at);

	-- Payout events
	-- CRITICAL: an event belongs to exactly one subscription or one investment
	CREATE TABLE IF NOT EXISTS payment_schedules (
		id TEXT PRIMARY KEY,
		subscription_id TEXT,
		investment_id TEXT,
		amount TEXT NOT NULL,
		interest_amount TEXT NOT NULL,
		principal_amount TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		start_date TEXT,
		payout_month INTEGER NOT NULL,
		is_principal BOOLEAN DEFAULT FALSE,
		payment_type TEXT NOT NULL,
		is_paid BOOLEAN DEFAULT FALSE,
		paid_at TEXT,
		payment_method TEXT NOT NULL DEFAULT 'None',
		transaction_id TEXT,
		created_at TEXT NOT NULL,
		CHECK ((subscription_id IS NULL) <> (investment_id IS NULL))
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_subscription
		ON payment_schedules(subscription_id, payout_month) WHERE subscription_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_schedules_investment
		ON payment_schedules(investment_id, payout_month) WHERE investment_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_schedules_due
		ON payment_schedules(payment_date, is_paid);

	-- Agents
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		agent_type TEXT,
		parent_agent_id TEXT,
		commission_percentage TEXT NOT NULL DEFAULT '0',
		approval_status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Agent payments (differential commission)
	CREATE TABLE IF NOT EXISTS agent_payments (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		subscription_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		commission_percentage TEXT NOT NULL,
		differential_percentage TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		is_paid BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_agent_payments_agent
		ON agent_payments(agent_id);

	-- Gift plans (reward programs)
	CREATE TABLE IF NOT EXISTS gift_plans (
		id TEXT PRIMARY KEY,
		plan_name TEXT NOT NULL,
		target_investors INTEGER NOT NULL DEFAULT 0,
		target_amount TEXT NOT NULL DEFAULT '0',
		reward_type TEXT,
		reward_value TEXT NOT NULL DEFAULT '0',
		reward_description TEXT,
		duration_months INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Agent rewards
	CREATE TABLE IF NOT EXISTS agent_rewards (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		gift_plan_id TEXT NOT NULL,
		performance_month TEXT NOT NULL,
		achieved_investors INTEGER NOT NULL,
		achieved_amount TEXT NOT NULL,
		is_rewarded BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_agent_rewards_triple
		ON agent_rewards(agent_id, gift_plan_id, performance_month);

	-- Audit trail (append-only)
	CREATE TABLE IF NOT EXISTS audit_trail (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		actor_id TEXT,
		table_name TEXT NOT NULL,
		record_id TEXT,
		action TEXT NOT NULL,
		old_values TEXT,
		new_values TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_trail_record
		ON audit_trail(table_name, record_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (engine.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store engine.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// batch runs fn in the surrounding transaction, or in a new one when the
// conn is not transactional.
func (c *conn) batch(ctx context.Context, fn func(q querier) error) error {
	if c.db == nil {
		return fn(c.q)
	}
	sqlTx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

var (
	_ engine.TxStore    = (*Store)(nil)
	_ engine.AuditStore = (*Store)(nil)
	_ engine.Store      = (*conn)(nil)
)

// =============================================================================
// HELPERS
// =============================================================================

// timeLayout is fixed-width so that lexical order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t.UTC()
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func formatDate(tp generic.TimePoint) sql.NullString {
	if tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func parseDate(s sql.NullString) generic.TimePoint {
	if !s.Valid || s.String == "" {
		return generic.TimePoint{}
	}
	tp, _ := generic.ParseDate(s.String)
	return tp
}

// decimalColumns parses TEXT money columns of one row and keeps the first
// malformed value as err. A corrupt column fails the read instead of
// reading as zero.
type decimalColumns struct {
	err error
}

func (d *decimalColumns) parse(column, s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("corrupt %s value %q: %w", column, s, err)
	}
	return v
}

func (d *decimalColumns) parsePtr(column string, s sql.NullString) *decimal.Decimal {
	if !s.Valid || s.String == "" {
		return nil
	}
	v := d.parse(column, s.String)
	return &v
}

func decimalPtr(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
