package db

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var errBackendDown = errors.New("connection reset by peer")

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := Open("sqlite", filepath.Join(t.TempDir(), "standup.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))
	t.Cleanup(func() { _ = Close(gdb) })
	return gdb
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStatuses(t *testing.T, c *clock) *Statuses {
	return NewStatuses(NewGormBackend(newTestDB(t), StatusKind), zaptest.NewLogger(t), WithClock(c.Now))
}

// failingBackend reads fail; writes go to the embedded backend.
type failingBackend[R any] struct {
	Backend[R]
}

func (failingBackend[R]) Get(context.Context, Key) (*R, error) { return nil, errBackendDown }

func (failingBackend[R]) Query(context.Context, Key) ([]R, error) { return nil, errBackendDown }

// gatedBackend holds the first n Get calls until all n have read, so n
// read-modify-write cycles start from the same snapshot.
type gatedBackend[R any] struct {
	Backend[R]
	mu      sync.Mutex
	armed   int
	barrier sync.WaitGroup
}

func newGatedBackend[R any](inner Backend[R], n int) *gatedBackend[R] {
	g := &gatedBackend[R]{Backend: inner, armed: n}
	g.barrier.Add(n)
	return g
}

func (g *gatedBackend[R]) Get(ctx context.Context, key Key) (*R, error) {
	r, err := g.Backend.Get(ctx, key)

	g.mu.Lock()
	gate := g.armed > 0
	if gate {
		g.armed--
	}
	g.mu.Unlock()

	if gate {
		g.barrier.Done()
		g.barrier.Wait()
	}
	return r, err
}
