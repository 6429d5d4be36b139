package standup

import (
	"context"
	"fmt"
	"time"
)

// Platform is the chat service the bot talks to. Calls are not retried.
type Platform interface {
	PostMessage(ctx context.Context, channelID, text string) (messageID string, err error)
	// UpdateMessage may return an empty id when the message keeps its id.
	UpdateMessage(ctx context.Context, channelID, messageID, text string) (string, error)
	ScheduleMessage(ctx context.Context, channelID, text string, postAt time.Time) (string, error)
	DeleteScheduledMessage(ctx context.Context, channelID, messageID string) error
	OpenModalView(ctx context.Context, triggerID string, modal Modal) error
	LookupUser(ctx context.Context, userID string) (*User, error)
	ListChannelMembers(ctx context.Context, channelID string) ([]string, error)
	PostEphemeral(ctx context.Context, notice Notice) error
}

type User struct {
	ID       string
	Name     string
	Timezone string
	IsBot    bool
}

// Action is a button on an ephemeral notice.
type Action struct {
	ID    string
	Label string
	Value string
	Style string
}

const (
	ActionEdit   = "standup_edit"
	ActionDelete = "standup_delete"
)

// Notice is a message only UserID sees.
type Notice struct {
	ChannelID string
	UserID    string
	Text      string
	Actions   []Action
}

// Modal is the standup form, optionally prefilled for an edit.
type Modal struct {
	Metadata TransitMetadata
	Prefill  Submission
}

// PlatformError is a rejected platform call.
type PlatformError struct {
	Op  string
	Err error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }
