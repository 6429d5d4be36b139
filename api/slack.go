package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"standupbot/standup"
)

const (
	membersPageSize   = 200
	scheduledPageSize = 100
)

var errScheduledMessageMissing = errors.New("scheduled message not found in chat.scheduledMessages.list")

// SlackPlatform is the standup.Platform backed by the Slack Web API.
type SlackPlatform struct {
	client *slack.Client
	log    *zap.Logger
}

func NewSlackPlatform(token string, log *zap.Logger, opts ...slack.Option) *SlackPlatform {
	return &SlackPlatform{client: slack.New(token, opts...), log: log.Named("slack")}
}

func (s *SlackPlatform) PostMessage(ctx context.Context, channelID, text string) (string, error) {
	_, ts, err := s.client.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("PostMessage: %w", err)
	}
	return ts, nil
}

func (s *SlackPlatform) UpdateMessage(ctx context.Context, channelID, messageID, text string) (string, error) {
	_, ts, _, err := s.client.UpdateMessageContext(ctx, channelID, messageID, slack.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("UpdateMessage: %w", err)
	}
	return ts, nil
}

// ScheduleMessage returns the scheduled message id. The client only surfaces
// ts, which chat.scheduleMessage does not send, so the id is read back from
// chat.scheduledMessages.list.
func (s *SlackPlatform) ScheduleMessage(ctx context.Context, channelID, text string, postAt time.Time) (string, error) {
	at := postAt.Unix()
	if _, _, err := s.client.ScheduleMessageContext(ctx, channelID, strconv.FormatInt(at, 10), slack.MsgOptionText(text, false)); err != nil {
		return "", fmt.Errorf("ScheduleMessage: %w", err)
	}
	id, err := s.scheduledMessageID(ctx, channelID, text, at)
	if err != nil {
		s.log.Warn("ScheduleMessage: message scheduled but its id is unknown",
			zap.String("channel", channelID), zap.Int64("post_at", at), zap.Error(err))
		return "", fmt.Errorf("ScheduleMessage: %w", err)
	}
	return id, nil
}

// scheduledMessageID picks the newest message due at postAt, preferring one
// whose text matches.
func (s *SlackPlatform) scheduledMessageID(ctx context.Context, channelID, text string, postAt int64) (string, error) {
	params := &slack.GetScheduledMessagesParameters{
		Channel: channelID,
		Oldest:  strconv.FormatInt(postAt-1, 10),
		Latest:  strconv.FormatInt(postAt+1, 10),
		Limit:   scheduledPageSize,
	}
	var sameText, sameTime *slack.ScheduledMessage
	for {
		page, cursor, err := s.client.GetScheduledMessagesContext(ctx, params)
		if err != nil {
			return "", err
		}
		for i := range page {
			m := &page[i]
			if int64(m.PostAt) != postAt {
				continue
			}
			if sameTime == nil || m.DateCreated >= sameTime.DateCreated {
				sameTime = m
			}
			if m.Text == text && (sameText == nil || m.DateCreated >= sameText.DateCreated) {
				sameText = m
			}
		}
		if cursor == "" {
			break
		}
		params.Cursor = cursor
	}
	switch {
	case sameText != nil:
		return sameText.ID, nil
	case sameTime != nil:
		return sameTime.ID, nil
	}
	return "", errScheduledMessageMissing
}

func (s *SlackPlatform) DeleteScheduledMessage(ctx context.Context, channelID, messageID string) error {
	_, err := s.client.DeleteScheduledMessageContext(ctx, &slack.DeleteScheduledMessageParameters{
		Channel:            channelID,
		ScheduledMessageID: messageID,
	})
	if err != nil {
		return fmt.Errorf("DeleteScheduledMessage: %w", err)
	}
	return nil
}

func (s *SlackPlatform) OpenModalView(ctx context.Context, triggerID string, modal standup.Modal) error {
	if _, err := s.client.OpenViewContext(ctx, triggerID, buildModal(modal)); err != nil {
		return fmt.Errorf("OpenModalView: %w", err)
	}
	return nil
}

func (s *SlackPlatform) LookupUser(ctx context.Context, userID string) (*standup.User, error) {
	u, err := s.client.GetUserInfoContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("LookupUser: %w", err)
	}
	name := u.Profile.DisplayName
	if name == "" {
		name = u.RealName
	}
	if name == "" {
		name = u.Name
	}
	return &standup.User{ID: u.ID, Name: name, Timezone: u.TZ, IsBot: u.IsBot}, nil
}

func (s *SlackPlatform) ListChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	var members []string
	params := &slack.GetUsersInConversationParameters{ChannelID: channelID, Limit: membersPageSize}
	for {
		page, cursor, err := s.client.GetUsersInConversationContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("ListChannelMembers: %w", err)
		}
		members = append(members, page...)
		if cursor == "" {
			return members, nil
		}
		params.Cursor = cursor
	}
}

func (s *SlackPlatform) PostEphemeral(ctx context.Context, notice standup.Notice) error {
	_, err := s.client.PostEphemeralContext(ctx, notice.ChannelID, notice.UserID, noticeOptions(notice)...)
	if err != nil {
		return fmt.Errorf("PostEphemeral: %w", err)
	}
	return nil
}

func noticeOptions(notice standup.Notice) []slack.MsgOption {
	if len(notice.Actions) == 0 {
		return []slack.MsgOption{slack.MsgOptionText(notice.Text, false)}
	}
	buttons := make([]slack.BlockElement, len(notice.Actions))
	for i, a := range notice.Actions {
		btn := slack.NewButtonBlockElement(a.ID, a.Value, slack.NewTextBlockObject(slack.PlainTextType, a.Label, false, false))
		if a.Style != "" {
			btn = btn.WithStyle(slack.Style(a.Style))
		}
		buttons[i] = btn
	}
	return []slack.MsgOption{
		slack.MsgOptionText(notice.Text, false),
		slack.MsgOptionBlocks(
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, notice.Text, false, false), nil, nil),
			slack.NewActionBlock(actionsBlockID, buttons...),
		),
	}
}
