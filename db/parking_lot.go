package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ParkingLots merges individual contributions into the shared per-channel,
// per-day record. The read-modify-write is not guarded: concurrent writers to
// the same channel and day race and the later write wins.
type ParkingLots struct {
	*Store[ParkingLotRecord]
	log *zap.Logger
}

func NewParkingLots(backend Backend[ParkingLotRecord], log *zap.Logger, opts ...Option) *ParkingLots {
	return &ParkingLots{
		Store: NewStore(backend, ParkingLotKind, log, opts...),
		log:   log.Named("parking_lot"),
	}
}

func (p *ParkingLots) Find(ctx context.Context, channelID string, date time.Time) (*ParkingLotRecord, bool) {
	return p.Get(ctx, ParkingLotKey(channelID, date))
}

// Upsert sets userID's item. Empty content with no attendees is a no-op and
// returns nil.
func (p *ParkingLots) Upsert(ctx context.Context, channelID string, date time.Time, userID, content string, attendees []string) (*ParkingLotRecord, error) {
	if strings.TrimSpace(content) == "" && len(attendees) == 0 {
		return nil, nil
	}

	item := ParkingLotItem{UserID: userID, Content: content, Attendees: attendees}
	if item.Attendees == nil {
		item.Attendees = []string{}
	}

	existing, ok := p.Find(ctx, channelID, date)
	if !ok {
		record := ParkingLotRecord{ChannelID: channelID, Items: []ParkingLotItem{item}}
		record.StandupDate = date
		saved, err := p.Put(ctx, record)
		if err != nil {
			return nil, fmt.Errorf("Upsert: failed to create parking lot for %s: %w", channelID, err)
		}
		return saved, nil
	}

	if i := existing.Item(userID); i >= 0 {
		existing.Items[i] = item
	} else {
		existing.Items = append(existing.Items, item)
	}

	saved, err := p.Update(ctx, *existing)
	if err != nil {
		return nil, fmt.Errorf("Upsert: failed to update parking lot for %s: %w", channelID, err)
	}
	return saved, nil
}

// Remove drops userID's item. A missing record or item is not an error and
// returns nil.
func (p *ParkingLots) Remove(ctx context.Context, channelID string, date time.Time, userID string) (*ParkingLotRecord, error) {
	existing, ok := p.Find(ctx, channelID, date)
	if !ok {
		p.log.Info("Remove: no parking lot", zap.String("channel", channelID), zap.Time("date", date))
		return nil, nil
	}
	i := existing.Item(userID)
	if i < 0 {
		p.log.Info("Remove: no item for user", zap.String("channel", channelID), zap.String("user", userID))
		return nil, nil
	}

	items := make([]ParkingLotItem, 0, len(existing.Items)-1)
	items = append(items, existing.Items[:i]...)
	items = append(items, existing.Items[i+1:]...)
	existing.Items = items

	saved, err := p.Update(ctx, *existing)
	if err != nil {
		return nil, fmt.Errorf("Remove: failed to update parking lot for %s: %w", channelID, err)
	}
	return saved, nil
}
