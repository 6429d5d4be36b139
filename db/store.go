package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"standupbot/utils"
)

const (
	statusTable     = "standup_statuses"
	parkingLotTable = "parking_lots"

	recordLifetime = 24 * time.Hour
)

var ErrNotFound = errors.New("record not found")

// Key maps column (and document field) names to values. The same names are
// used by every backend.
type Key map[string]any

// Kind is the schema of one record shape: where it lives, how it is keyed and
// where its Lifetime is.
type Kind[R any] struct {
	Table            string
	KeyColumns       []string
	PartitionColumns []string
	Lifetime         func(*R) *Lifetime
	Key              func(*R) Key
}

// Partition reduces a full key to the partition columns.
func (k Kind[R]) Partition(key Key) Key {
	out := make(Key, len(k.PartitionColumns))
	for _, c := range k.PartitionColumns {
		out[c] = key[c]
	}
	return out
}

var StatusKind = Kind[StatusRecord]{
	Table:            statusTable,
	KeyColumns:       []string{"channel_id", "standup_date", "user_id"},
	PartitionColumns: []string{"channel_id", "standup_date"},
	Lifetime:         func(r *StatusRecord) *Lifetime { return &r.Lifetime },
	Key: func(r *StatusRecord) Key {
		return StatusKey(r.ChannelID, r.StandupDate, r.UserID)
	},
}

var ParkingLotKind = Kind[ParkingLotRecord]{
	Table:            parkingLotTable,
	KeyColumns:       []string{"channel_id", "standup_date"},
	PartitionColumns: []string{"channel_id", "standup_date"},
	Lifetime:         func(r *ParkingLotRecord) *Lifetime { return &r.Lifetime },
	Key: func(r *ParkingLotRecord) Key {
		return ParkingLotKey(r.ChannelID, r.StandupDate)
	},
}

func StatusKey(channelID string, date time.Time, userID string) Key {
	return Key{"channel_id": channelID, "standup_date": utils.ZeroUTC(date), "user_id": userID}
}

func ParkingLotKey(channelID string, date time.Time) Key {
	return Key{"channel_id": channelID, "standup_date": utils.ZeroUTC(date)}
}

// Backend is the persistence collaborator behind a Store.
type Backend[R any] interface {
	// Put writes r unconditionally, replacing any record with the same key.
	Put(ctx context.Context, r *R) error
	// Update writes only the non-zero fields of r onto the record at key,
	// creating it when absent.
	Update(ctx context.Context, key Key, r *R) error
	// Get returns ErrNotFound when no record has key.
	Get(ctx context.Context, key Key) (*R, error)
	Query(ctx context.Context, partition Key) ([]R, error)
	Delete(ctx context.Context, key Key) error
}

// Expirer is implemented by backends that cannot expire items on their own.
type Expirer interface {
	Expire(ctx context.Context, now time.Time) (int64, error)
}

type Option func(*storeOptions)

type storeOptions struct {
	now func() time.Time
}

// WithClock replaces time.Now for CreatedAt/UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) { o.now = now }
}

// Store enforces the date and expiry invariants on every write and hides
// read failures from callers.
type Store[R any] struct {
	backend Backend[R]
	kind    Kind[R]
	now     func() time.Time
	log     *zap.Logger
}

func NewStore[R any](backend Backend[R], kind Kind[R], log *zap.Logger, opts ...Option) *Store[R] {
	o := storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[R]{
		backend: backend,
		kind:    kind,
		now:     o.now,
		log:     log.Named("store").With(zap.String("table", kind.Table)),
	}
}

// normalize zeroes the standup date and derives the expiry from it.
func normalize(l *Lifetime) {
	l.StandupDate = utils.ZeroUTC(l.StandupDate)
	l.TimeToLive = l.StandupDate.Add(recordLifetime)
}

// Put replaces the record with r. CreatedAt is carried over from a record
// already stored under the same key.
func (s *Store[R]) Put(ctx context.Context, r R) (*R, error) {
	l := s.kind.Lifetime(&r)
	normalize(l)
	now := s.now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
		if existing, err := s.backend.Get(ctx, s.kind.Key(&r)); err == nil {
			l.CreatedAt = s.kind.Lifetime(existing).CreatedAt
		}
	}
	l.UpdatedAt = now

	if err := s.backend.Put(ctx, &r); err != nil {
		return nil, fmt.Errorf("Put: %s: %w", s.kind.Table, err)
	}
	return &r, nil
}

// Update merges the present fields of r into the stored record and returns
// the result. CreatedAt is only set when the record did not exist.
func (s *Store[R]) Update(ctx context.Context, r R) (*R, error) {
	l := s.kind.Lifetime(&r)
	normalize(l)
	now := s.now().UTC()
	l.UpdatedAt = now
	l.CreatedAt = time.Time{}

	key := s.kind.Key(&r)
	if _, err := s.backend.Get(ctx, key); errors.Is(err, ErrNotFound) {
		l.CreatedAt = now
	}

	if err := s.backend.Update(ctx, key, &r); err != nil {
		return nil, fmt.Errorf("Update: %s: %w", s.kind.Table, err)
	}

	stored, err := s.backend.Get(ctx, key)
	if err != nil {
		s.log.Warn("Update: re-read after write failed", zap.Error(err))
		return &r, nil
	}
	return stored, nil
}

// Get never fails: a missing record and a backend error both read as absent.
func (s *Store[R]) Get(ctx context.Context, key Key) (*R, bool) {
	r, err := s.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.Debug("Get: no record", zap.Any("key", key))
		} else {
			s.log.Warn("Get: lookup failed, treating as not found", zap.Any("key", key), zap.Error(err))
		}
		return nil, false
	}
	return r, true
}

// Query returns every record in the partition, or an empty slice.
func (s *Store[R]) Query(ctx context.Context, partition Key) []R {
	rows, err := s.backend.Query(ctx, partition)
	if err != nil {
		s.log.Warn("Query: scan failed, returning no records", zap.Any("partition", partition), zap.Error(err))
		return []R{}
	}
	if rows == nil {
		return []R{}
	}
	return rows
}

// Delete removes the record at key and returns it, or nil when there was none.
func (s *Store[R]) Delete(ctx context.Context, key Key) (*R, error) {
	existing, ok := s.Get(ctx, key)
	if !ok {
		return nil, nil
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("Delete: %s: %w", s.kind.Table, err)
	}
	return existing, nil
}

// Expire deletes records whose TimeToLive is not after now. Backends with
// native expiry report zero.
func (s *Store[R]) Expire(ctx context.Context, now time.Time) (int64, error) {
	expirer, ok := s.backend.(Expirer)
	if !ok {
		return 0, nil
	}
	n, err := expirer.Expire(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("Expire: %s: %w", s.kind.Table, err)
	}
	return n, nil
}

func (s *Store[R]) Table() string { return s.kind.Table }
