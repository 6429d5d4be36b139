package standup

import (
	"fmt"
	"strings"
	"time"

	"standupbot/db"
	"standupbot/utils"
)

func mention(userID string) string { return "<@" + userID + ">" }

func mentions(userIDs []string) string {
	out := make([]string, len(userIDs))
	for i, id := range userIDs {
		out[i] = mention(id)
	}
	return strings.Join(out, ", ")
}

// FormatStatus renders a standup as mrkdwn.
func FormatStatus(userID string, sub Submission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Standup from %s*\n", mention(userID))
	fmt.Fprintf(&b, "\n*Yesterday*\n%s\n", strings.TrimSpace(sub.Yesterday))
	fmt.Fprintf(&b, "\n*Today*\n%s\n", strings.TrimSpace(sub.Today))
	if pl := strings.TrimSpace(sub.ParkingLot); pl != "" {
		fmt.Fprintf(&b, "\n*Parking lot*\n%s\n", pl)
	}
	if len(sub.ParkingLotAttendees) > 0 {
		fmt.Fprintf(&b, "\n*Parking lot attendees*\n%s\n", mentions(sub.ParkingLotAttendees))
	}
	if prs := strings.TrimSpace(sub.PullRequests); prs != "" {
		fmt.Fprintf(&b, "\n*Pull requests*\n%s\n", prs)
	}
	return b.String()
}

func confirmation(messageType string, postAt time.Time, zone string) string {
	if messageType != db.MessageTypeScheduled {
		return "Your standup was posted."
	}
	loc, err := utils.LoadZone(zone)
	if err != nil {
		loc = time.UTC
	}
	return fmt.Sprintf("Your standup is scheduled for %s.", utils.PrintInZone(postAt, loc))
}
