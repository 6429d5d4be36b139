package db

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Statuses is the StatusRecord store addressed by channel, day and user.
type Statuses struct {
	*Store[StatusRecord]
}

func NewStatuses(backend Backend[StatusRecord], log *zap.Logger, opts ...Option) *Statuses {
	return &Statuses{Store: NewStore(backend, StatusKind, log, opts...)}
}

func (s *Statuses) Find(ctx context.Context, channelID string, date time.Time, userID string) (*StatusRecord, bool) {
	return s.Get(ctx, StatusKey(channelID, date, userID))
}

// ForChannel returns every user's status in channelID on date.
func (s *Statuses) ForChannel(ctx context.Context, channelID string, date time.Time) []StatusRecord {
	return s.Query(ctx, StatusKind.Partition(StatusKey(channelID, date, "")))
}

func (s *Statuses) Remove(ctx context.Context, channelID string, date time.Time, userID string) (*StatusRecord, error) {
	return s.Delete(ctx, StatusKey(channelID, date, userID))
}
