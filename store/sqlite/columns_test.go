package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
)

func TestDecimalColumns_KeepsFirstError(t *testing.T) {
	var dec decimalColumns
	assert.Equal(t, "12.50", dec.parse("amount", "12.50").StringFixed(2))
	assert.Nil(t, dec.parsePtr("expected_return", sql.NullString{}))
	require.NoError(t, dec.err)

	dec.parse("amount", "12,50")
	dec.parse("interest_amount", "n/a")
	require.Error(t, dec.err)
	assert.Contains(t, dec.err.Error(), `corrupt amount value "12,50"`)
}

func TestStore_CorruptMoneyColumnFailsRead(t *testing.T) {
	// GIVEN: A plan row whose return_percentage was overwritten with garbage
	// WHEN: Reading the plan back
	// THEN: The read fails instead of returning a 0.00 rate

	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	now := time.Date(2025, time.March, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.SavePlan(ctx, payout.Plan{
		ID:               "plan-1",
		Segment:          payout.SegmentDirect,
		PaymentType:      payout.PaymentMonthly,
		ReturnPercentage: generic.MustParseDecimal("3"),
		DurationMonths:   12,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}))
	_, err = store.db.ExecContext(ctx, `UPDATE plans SET return_percentage = 'three' WHERE id = 'plan-1'`)
	require.NoError(t, err)

	got, err := store.GetPlan(ctx, "plan-1")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "return_percentage")

	_, err = store.ListPlans(ctx)
	assert.Error(t, err)
}
