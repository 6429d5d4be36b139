package standup

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"standupbot/db"
)

// State is where a submission sits in the status lifecycle.
type State int

const (
	StateNew State = iota
	StateEditingScheduled
	StateEditingPosted
)

func (s State) String() string {
	switch s {
	case StateEditingScheduled:
		return "editing_scheduled"
	case StateEditingPosted:
		return "editing_posted"
	}
	return "new"
}

// TransitMetadata rides along in the modal's private metadata between opening
// the form and handling its submission. MessageID and MessageDate are only set
// when an existing message is being edited.
type TransitMetadata struct {
	ChannelID   string `json:"channelId"`
	UserID      string `json:"userId"`
	MessageType string `json:"messageType"`
	MessageID   string `json:"messageId,omitempty"`
	MessageDate int64  `json:"messageDate,omitempty"`
}

func (m TransitMetadata) State() State {
	if m.MessageID == "" {
		return StateNew
	}
	if m.MessageType == db.MessageTypeScheduled {
		return StateEditingScheduled
	}
	return StateEditingPosted
}

// Date is the standup date of the message being edited.
func (m TransitMetadata) Date() time.Time {
	return time.Unix(m.MessageDate, 0).UTC()
}

func (m TransitMetadata) Encode() string {
	b, _ := json.Marshal(m)
	return string(b)
}

func DecodeTransitMetadata(s string) (TransitMetadata, error) {
	var m TransitMetadata
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return TransitMetadata{}, fmt.Errorf("DecodeTransitMetadata: %w", err)
	}
	if m.ChannelID == "" || m.UserID == "" {
		return TransitMetadata{}, fmt.Errorf("DecodeTransitMetadata: channel and user are required")
	}
	return m, nil
}

const commandSeparator = "#"

// ChangeMessageCommand names one message for the edit and delete buttons.
// PostAt is the unix second the message was or will be posted. Fields must not
// contain "#"; there is no escaping.
type ChangeMessageCommand struct {
	MessageID string
	ChannelID string
	PostAt    int64
	UserID    string
}

func (c ChangeMessageCommand) Format() string {
	return strings.Join([]string{c.MessageID, c.ChannelID, strconv.FormatInt(c.PostAt, 10), c.UserID}, commandSeparator)
}

func (c ChangeMessageCommand) Date() time.Time {
	return time.Unix(c.PostAt, 0).UTC()
}

// ParseChangeMessageCommand reports false when s does not hold exactly four
// fields or postAt is not an integer.
func ParseChangeMessageCommand(s string) (ChangeMessageCommand, bool) {
	fields := strings.Split(s, commandSeparator)
	if len(fields) != 4 {
		return ChangeMessageCommand{}, false
	}
	postAt, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return ChangeMessageCommand{}, false
	}
	return ChangeMessageCommand{
		MessageID: fields[0],
		ChannelID: fields[1],
		PostAt:    postAt,
		UserID:    fields[3],
	}, true
}
