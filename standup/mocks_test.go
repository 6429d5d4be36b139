package standup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"standupbot/db"
)

var errRejected = errors.New("channel_not_found")

type scheduledCall struct {
	ChannelID string
	Text      string
	PostAt    time.Time
}

// fakePlatform records every call and hands out sequential message ids.
type fakePlatform struct {
	mu sync.Mutex

	users   map[string]*User
	members map[string][]string

	posted    []string
	updated   []string
	scheduled []scheduledCall
	deleted   []string
	modals    []Modal
	notices   []Notice

	failPost, failUpdate, failSchedule, failDelete, failLookup bool

	nextID int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		users: map[string]*User{
			"U1": {ID: "U1", Name: "ada", Timezone: "America/Denver"},
			"U2": {ID: "U2", Name: "grace", Timezone: "UTC"},
			"U3": {ID: "U3", Name: "linus", Timezone: "Europe/Helsinki"},
			"B1": {ID: "B1", Name: "standupbot", IsBot: true},
		},
		members: map[string][]string{},
	}
}

func (f *fakePlatform) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *fakePlatform) PostMessage(_ context.Context, channelID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPost {
		return "", errRejected
	}
	f.posted = append(f.posted, text)
	return f.id("P"), nil
}

func (f *fakePlatform) UpdateMessage(_ context.Context, channelID, messageID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return "", errRejected
	}
	f.updated = append(f.updated, messageID)
	return messageID, nil
}

func (f *fakePlatform) ScheduleMessage(_ context.Context, channelID, text string, postAt time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSchedule {
		return "", errRejected
	}
	f.scheduled = append(f.scheduled, scheduledCall{ChannelID: channelID, Text: text, PostAt: postAt})
	return f.id("Q"), nil
}

func (f *fakePlatform) DeleteScheduledMessage(_ context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("invalid_scheduled_message_id")
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakePlatform) OpenModalView(_ context.Context, triggerID string, modal Modal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modals = append(f.modals, modal)
	return nil
}

func (f *fakePlatform) LookupUser(_ context.Context, userID string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLookup {
		return nil, errors.New("user_not_found")
	}
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return &User{ID: userID, Timezone: "UTC"}, nil
}

func (f *fakePlatform) ListChannelMembers(_ context.Context, channelID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[channelID], nil
}

func (f *fakePlatform) PostEphemeral(_ context.Context, notice Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice)
	return nil
}

func (f *fakePlatform) lastNotice(t *testing.T) Notice {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.notices)
	return f.notices[len(f.notices)-1]
}

// statusBackend lets a test fail writes to the status table.
type statusBackend struct {
	db.Backend[db.StatusRecord]
	failPut bool
}

func (b *statusBackend) Put(ctx context.Context, r *db.StatusRecord) error {
	if b.failPut {
		return errors.New("disk I/O error")
	}
	return b.Backend.Put(ctx, r)
}

type fixture struct {
	platform    *fakePlatform
	backend     *statusBackend
	statuses    *db.Statuses
	parkingLots *db.ParkingLots
	orch        *Orchestrator
	now         time.Time
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	gdb, err := db.Open("sqlite", filepath.Join(t.TempDir(), "standup.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	log := zaptest.NewLogger(t)
	clock := func() time.Time { return now }
	backend := &statusBackend{Backend: db.NewGormBackend(gdb, db.StatusKind)}
	f := &fixture{
		platform:    newFakePlatform(),
		backend:     backend,
		statuses:    db.NewStatuses(backend, log, db.WithClock(clock)),
		parkingLots: db.NewParkingLots(db.NewGormBackend(gdb, db.ParkingLotKind), log, db.WithClock(clock)),
		now:         now,
	}
	f.orch = NewOrchestrator(f.platform, f.statuses, f.parkingLots, log, WithClock(clock))
	return f
}
