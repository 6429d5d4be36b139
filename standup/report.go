package standup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"standupbot/utils"
)

const lookupConcurrency = 8

// Pending lists channel members who have no standup for today.
func (o *Orchestrator) Pending(ctx context.Context, channelID string) ([]string, error) {
	members, err := o.platform.ListChannelMembers(ctx, channelID)
	if err != nil {
		return nil, &PlatformError{Op: "listChannelMembers", Err: err}
	}

	done := map[string]bool{}
	for _, status := range o.statuses.ForChannel(ctx, channelID, o.now()) {
		done[status.UserID] = true
	}

	users, err := o.lookupUsers(ctx, members)
	if err != nil {
		return nil, err
	}

	pending := []string{}
	for _, id := range members {
		if u := users[id]; done[id] || (u != nil && u.IsBot) {
			continue
		}
		pending = append(pending, id)
	}
	return pending, nil
}

// ParkingLotSummary renders today's parking lot with display names.
func (o *Orchestrator) ParkingLotSummary(ctx context.Context, channelID string) (string, error) {
	today := o.now()
	record, ok := o.parkingLots.Find(ctx, channelID, today)
	if !ok || len(record.Items) == 0 {
		return "No parking lot items today.", nil
	}

	var ids []string
	for _, item := range record.Items {
		ids = append(ids, item.UserID)
		ids = append(ids, item.Attendees...)
	}
	users, err := o.lookupUsers(ctx, ids)
	if err != nil {
		return "", err
	}

	name := func(id string) string {
		if u := users[id]; u != nil && u.Name != "" {
			return u.Name
		}
		return mention(id)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Parking lot for %s*\n", utils.ZeroUTC(today).Format(utils.DateLayout))
	for _, item := range record.Items {
		fmt.Fprintf(&b, "• *%s*", name(item.UserID))
		if content := strings.TrimSpace(item.Content); content != "" {
			fmt.Fprintf(&b, ": %s", content)
		}
		if len(item.Attendees) > 0 {
			attendees := make([]string, len(item.Attendees))
			for i, id := range item.Attendees {
				attendees[i] = name(id)
			}
			fmt.Fprintf(&b, " (with %s)", strings.Join(attendees, ", "))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// lookupUsers resolves each distinct id concurrently.
func (o *Orchestrator) lookupUsers(ctx context.Context, ids []string) (map[string]*User, error) {
	unique := map[string]struct{}{}
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	sorted := make([]string, 0, len(unique))
	for id := range unique {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	var mu sync.Mutex
	users := make(map[string]*User, len(sorted))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for _, id := range sorted {
		id := id
		g.Go(func() error {
			user, err := o.platform.LookupUser(gctx, id)
			if err != nil {
				return &PlatformError{Op: "lookupUser", Err: fmt.Errorf("%s: %w", id, err)}
			}
			mu.Lock()
			users[id] = user
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.log.Warn("user lookup failed", zap.Int("users", len(sorted)), zap.Error(err))
		return nil, err
	}
	return users, nil
}
