package housekeeping

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/engine"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payout"
	"github.com/warp/payout-engine/store/memory"
)

type recordingPurger struct {
	cutoffs []time.Time
	result  engine.PurgeResult
	err     error
	panics  bool
}

func (p *recordingPurger) PurgeRejected(ctx context.Context, before time.Time) (engine.PurgeResult, error) {
	if p.panics {
		panic("store closed")
	}
	p.cutoffs = append(p.cutoffs, before)
	return p.result, p.err
}

var now = time.Date(2025, time.March, 18, 0, 0, 0, 0, time.UTC)

func TestNew_RejectsBadSpec(t *testing.T) {
	_, err := New(&recordingPurger{}, Config{Spec: "every tuesday"}, nil)
	assert.Error(t, err)
}

func TestRunNow_UsesTTLCutoff(t *testing.T) {
	// GIVEN: A 48h TTL
	// WHEN: Running a purge
	// THEN: Records last updated before now-48h are targeted

	purger := &recordingPurger{result: engine.PurgeResult{Subscriptions: 2, Investments: 1}}
	s, err := New(purger, Config{Spec: "0 0 * * *", TTL: 48 * time.Hour}, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return now }

	res, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Subscriptions)
	require.Len(t, purger.cutoffs, 1)
	assert.Equal(t, now.Add(-48*time.Hour), purger.cutoffs[0])

	at, last := s.LastRun()
	assert.Equal(t, now, at)
	assert.Equal(t, 1, last.Investments)
}

func TestRunNow_FailureKeepsLastRun(t *testing.T) {
	purger := &recordingPurger{err: errors.New("db locked")}
	s, err := New(purger, Config{}, nil)
	require.NoError(t, err)

	_, err = s.RunNow(context.Background())
	assert.Error(t, err)

	at, _ := s.LastRun()
	assert.True(t, at.IsZero())
}

func TestScheduledRun_PanicIsRecoveredIntoLogger(t *testing.T) {
	// GIVEN: A purger that panics and a scheduler with a captured logger
	// WHEN: The scheduled job runs through the cron chain
	// THEN: The panic is recovered and reported through that logger

	logger, hook := test.NewNullLogger()
	s, err := New(&recordingPurger{panics: true}, Config{Spec: "0 0 * * *"}, logger)
	require.NoError(t, err)

	job := s.cron.Entry(s.entryID).WrappedJob
	require.NotNil(t, job)
	assert.NotPanics(t, job.Run)

	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "panic")
	assert.Equal(t, "housekeeping", hook.LastEntry().Data["component"])
}

func TestStartStop(t *testing.T) {
	s, err := New(&recordingPurger{}, Config{Spec: "0 0 * * *"}, nil)
	require.NoError(t, err)

	s.Start()
	s.Start()
	assert.False(t, s.NextRunTime().IsZero())
	s.Stop()
	s.Stop()
}

func TestRunNow_AgainstEngine(t *testing.T) {
	// GIVEN: A subscription rejected three days ago
	// WHEN: Housekeeping runs with a 24h TTL
	// THEN: The rejected subscription is gone

	store := memory.New()
	rejectedAt := now.Add(-72 * time.Hour)
	eng := engine.New(store, engine.WithClock(func() time.Time { return rejectedAt }))
	ctx := context.Background()

	plan, err := eng.CreatePlan(ctx, payout.Plan{
		Name: "Direct", Segment: payout.SegmentDirect, PaymentType: payout.PaymentMonthly,
		ReturnPercentage: generic.MustParseDecimal("3"), DurationMonths: 12, Active: true,
	})
	require.NoError(t, err)
	sub, err := eng.CreateSubscription(ctx, payout.Subscription{
		PlanID: plan.ID, InvestorName: "Investor", Principal: generic.NewMoneyFromInt(1000),
		InvestmentDate: generic.MustParseDate("2025-03-01"),
	})
	require.NoError(t, err)
	_, err = eng.RejectSubscription(ctx, sub.ID, "reviewer", "incomplete KYC")
	require.NoError(t, err)

	s, err := New(eng, Config{TTL: 24 * time.Hour}, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return now }

	res, err := s.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Subscriptions)

	gone, err := store.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
