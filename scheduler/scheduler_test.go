package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeTarget struct {
	table string
	calls atomic.Int32
	n     int64
	err   error
	seen  atomic.Value
}

func (f *fakeTarget) Table() string { return f.table }

func (f *fakeTarget) Expire(_ context.Context, now time.Time) (int64, error) {
	f.calls.Add(1)
	f.seen.Store(now)
	return f.n, f.err
}

func TestSweepVisitsEveryTarget(t *testing.T) {
	statuses := &fakeTarget{table: "standup_statuses", err: errors.New("database is locked")}
	lots := &fakeTarget{table: "parking_lots", n: 3}

	s := NewSweeper(zaptest.NewLogger(t), statuses, lots)
	fixed := time.Date(2020, 10, 21, 0, 1, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	err := s.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.EqualValues(t, 1, statuses.calls.Load())
	assert.EqualValues(t, 1, lots.calls.Load())
	assert.Equal(t, fixed, lots.seen.Load())
}

func TestStartRunsOnSchedule(t *testing.T) {
	target := &fakeTarget{table: "standup_statuses"}
	s := NewSweeper(zaptest.NewLogger(t), target)

	require.NoError(t, s.Start("@every 1s"))
	require.Eventually(t, func() bool { return target.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewSweeper(zaptest.NewLogger(t))
	assert.Error(t, s.Start("every now and then"))
	s.Stop()
}
