package standup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"standupbot/db"
	"standupbot/utils"
)

var (
	ErrStatusNotFound = errors.New("standup not found")
	ErrNotAuthor      = errors.New("only the author can change this standup")
	ErrNotScheduled   = errors.New("only scheduled standups can be deleted")
)

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator moves a standup through its lifecycle: it talks to the
// platform first and only persists once the platform call succeeded.
type Orchestrator struct {
	platform    Platform
	statuses    *db.Statuses
	parkingLots *db.ParkingLots
	now         func() time.Time
	log         *zap.Logger
}

func NewOrchestrator(platform Platform, statuses *db.Statuses, parkingLots *db.ParkingLots, log *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		platform:    platform,
		statuses:    statuses,
		parkingLots: parkingLots,
		now:         time.Now,
		log:         log.Named("lifecycle"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit handles a completed standup form.
func (o *Orchestrator) Submit(ctx context.Context, meta TransitMetadata, sub Submission) (*db.StatusRecord, error) {
	log := o.log.With(
		zap.String("channel", meta.ChannelID),
		zap.String("user", meta.UserID),
		zap.Stringer("state", meta.State()),
	)

	if err := sub.validate(); err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}

	user, err := o.platform.LookupUser(ctx, meta.UserID)
	if err != nil {
		return nil, &PlatformError{Op: "lookupUser", Err: err}
	}

	now := o.now().UTC()
	var postAt time.Time
	if sub.Scheduled() && meta.State() != StateEditingPosted {
		postAt, err = utils.CombineDateTimeInZone(sub.ScheduleDate, sub.ScheduleTime, user.Timezone)
		if err != nil {
			return nil, fmt.Errorf("Submit: %w", err)
		}
		if !postAt.After(now) {
			return nil, fmt.Errorf("Submit: %w: %s %s is in the past", utils.ErrInvalidDateTime, sub.ScheduleDate, sub.ScheduleTime)
		}
	}

	text := FormatStatus(meta.UserID, sub)
	record := db.StatusRecord{
		ChannelID:           meta.ChannelID,
		UserID:              meta.UserID,
		Yesterday:           sub.Yesterday,
		Today:               sub.Today,
		ParkingLot:          &sub.ParkingLot,
		PullRequests:        &sub.PullRequests,
		ParkingLotAttendees: datatypes.JSONSlice[string](append([]string{}, sub.ParkingLotAttendees...)),
		Timezone:            user.Timezone,
	}

	var saved *db.StatusRecord
	switch meta.State() {
	case StateEditingPosted:
		saved, err = o.editPosted(ctx, meta, record, text)
		postAt = meta.Date()
	case StateEditingScheduled:
		if err := o.platform.DeleteScheduledMessage(ctx, meta.ChannelID, meta.MessageID); err != nil {
			log.Info("Submit: prior scheduled message not deleted", zap.String("message", meta.MessageID), zap.Error(err))
		}
		fallthrough
	default:
		if postAt.IsZero() {
			postAt = now
		}
		saved, err = o.create(ctx, meta, record, sub, text, postAt)
	}
	if err != nil {
		return nil, err
	}
	log.Info("Submit: standup saved", zap.String("message", saved.MessageID), zap.String("type", saved.MessageType))

	o.mergeParkingLot(ctx, meta, saved.StandupDate, sub)

	cmd := ChangeMessageCommand{MessageID: saved.MessageID, ChannelID: saved.ChannelID, PostAt: postAt.Unix(), UserID: saved.UserID}
	o.confirm(ctx, saved, cmd, postAt)
	return saved, nil
}

func (o *Orchestrator) editPosted(ctx context.Context, meta TransitMetadata, record db.StatusRecord, text string) (*db.StatusRecord, error) {
	messageID, err := o.platform.UpdateMessage(ctx, meta.ChannelID, meta.MessageID, text)
	if err != nil {
		return nil, &PlatformError{Op: "updateMessage", Err: err}
	}
	if messageID == "" {
		messageID = meta.MessageID
	}

	record.StandupDate = meta.Date()
	record.MessageID = messageID
	record.MessageType = db.MessageTypePosted
	saved, err := o.statuses.Update(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("Submit: failed to update status: %w", err)
	}
	return saved, nil
}

// create posts or schedules a new message and stores the full record,
// replacing whatever an edited scheduled standup left behind.
func (o *Orchestrator) create(ctx context.Context, meta TransitMetadata, record db.StatusRecord, sub Submission, text string, postAt time.Time) (*db.StatusRecord, error) {
	if sub.Scheduled() {
		messageID, err := o.platform.ScheduleMessage(ctx, meta.ChannelID, text, postAt)
		if err != nil {
			return nil, &PlatformError{Op: "scheduleMessage", Err: err}
		}
		record.MessageID = messageID
		record.MessageType = db.MessageTypeScheduled
		record.ScheduleDateStr = sub.ScheduleDate
		record.ScheduleTimeStr = sub.ScheduleTime
	} else {
		messageID, err := o.platform.PostMessage(ctx, meta.ChannelID, text)
		if err != nil {
			return nil, &PlatformError{Op: "postMessage", Err: err}
		}
		record.MessageID = messageID
		record.MessageType = db.MessageTypePosted
	}
	record.StandupDate = postAt

	var prior *db.StatusRecord
	if meta.State() == StateEditingScheduled {
		if p, ok := o.statuses.Find(ctx, meta.ChannelID, meta.Date(), meta.UserID); ok {
			prior = p
			record.CreatedAt = prior.CreatedAt
		}
	}

	saved, err := o.statuses.Put(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("Submit: failed to save status: %w", err)
	}

	// The old-date record goes only once the new one is stored.
	if prior != nil && !utils.ZeroUTC(prior.StandupDate).Equal(saved.StandupDate) {
		if _, err := o.statuses.Remove(ctx, meta.ChannelID, meta.Date(), meta.UserID); err != nil {
			o.log.Warn("Submit: failed to remove status under previous date", zap.Error(err))
		}
	}
	return saved, nil
}

// mergeParkingLot is best effort: the standup is already out.
func (o *Orchestrator) mergeParkingLot(ctx context.Context, meta TransitMetadata, date time.Time, sub Submission) {
	log := o.log.With(zap.String("channel", meta.ChannelID), zap.String("user", meta.UserID))

	if meta.State() != StateNew && !utils.ZeroUTC(meta.Date()).Equal(date) {
		if _, err := o.parkingLots.Remove(ctx, meta.ChannelID, meta.Date(), meta.UserID); err != nil {
			log.Warn("Submit: failed to remove parking lot item under previous date", zap.Error(err))
		}
	}

	var err error
	switch {
	case sub.HasParkingLot():
		_, err = o.parkingLots.Upsert(ctx, meta.ChannelID, date, meta.UserID, sub.ParkingLot, sub.ParkingLotAttendees)
	case meta.State() != StateNew:
		_, err = o.parkingLots.Remove(ctx, meta.ChannelID, date, meta.UserID)
	}
	if err != nil {
		log.Warn("Submit: failed to save parking lot", zap.Error(err))
	}
}

func (o *Orchestrator) confirm(ctx context.Context, record *db.StatusRecord, cmd ChangeMessageCommand, postAt time.Time) {
	actions := []Action{{ID: ActionEdit, Label: "Edit", Value: cmd.Format()}}
	if record.IsScheduled() {
		actions = append(actions, Action{ID: ActionDelete, Label: "Delete", Value: cmd.Format(), Style: "danger"})
	}
	notice := Notice{
		ChannelID: record.ChannelID,
		UserID:    record.UserID,
		Text:      confirmation(record.MessageType, postAt, record.Timezone),
		Actions:   actions,
	}
	if err := o.platform.PostEphemeral(ctx, notice); err != nil {
		o.log.Warn("Submit: failed to send confirmation", zap.String("user", record.UserID), zap.Error(err))
	}
}

// Delete cancels a scheduled standup and forgets it.
func (o *Orchestrator) Delete(ctx context.Context, actingUser string, cmd ChangeMessageCommand) error {
	record, err := o.authorRecord(ctx, actingUser, cmd)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if !record.IsScheduled() {
		return fmt.Errorf("Delete: %w", ErrNotScheduled)
	}

	if err := o.platform.DeleteScheduledMessage(ctx, cmd.ChannelID, cmd.MessageID); err != nil {
		return &PlatformError{Op: "deleteScheduledMessage", Err: err}
	}
	if _, err := o.statuses.Remove(ctx, cmd.ChannelID, record.StandupDate, cmd.UserID); err != nil {
		return fmt.Errorf("Delete: failed to remove status: %w", err)
	}
	if _, err := o.parkingLots.Remove(ctx, cmd.ChannelID, record.StandupDate, cmd.UserID); err != nil {
		o.log.Warn("Delete: failed to remove parking lot item", zap.String("user", cmd.UserID), zap.Error(err))
	}

	o.log.Info("Delete: scheduled standup removed", zap.String("channel", cmd.ChannelID), zap.String("message", cmd.MessageID))
	if err := o.platform.PostEphemeral(ctx, Notice{ChannelID: cmd.ChannelID, UserID: actingUser, Text: "Your scheduled standup was deleted."}); err != nil {
		o.log.Warn("Delete: failed to send confirmation", zap.Error(err))
	}
	return nil
}

// OpenEditor opens the form prefilled with the stored standup.
func (o *Orchestrator) OpenEditor(ctx context.Context, triggerID, actingUser string, cmd ChangeMessageCommand) error {
	record, err := o.authorRecord(ctx, actingUser, cmd)
	if err != nil {
		return fmt.Errorf("OpenEditor: %w", err)
	}

	modal := Modal{
		Metadata: TransitMetadata{
			ChannelID:   record.ChannelID,
			UserID:      record.UserID,
			MessageType: record.MessageType,
			MessageID:   record.MessageID,
			MessageDate: record.StandupDate.Unix(),
		},
		Prefill: Submission{
			Yesterday:           record.Yesterday,
			Today:               record.Today,
			ParkingLot:          deref(record.ParkingLot),
			PullRequests:        deref(record.PullRequests),
			ParkingLotAttendees: record.ParkingLotAttendees,
			ScheduleDate:        record.ScheduleDateStr,
			ScheduleTime:        record.ScheduleTimeStr,
		},
	}
	if err := o.platform.OpenModalView(ctx, triggerID, modal); err != nil {
		return &PlatformError{Op: "openModalView", Err: err}
	}
	return nil
}

// OpenNew opens an empty form for a first standup.
func (o *Orchestrator) OpenNew(ctx context.Context, triggerID, channelID, userID string) error {
	modal := Modal{Metadata: TransitMetadata{ChannelID: channelID, UserID: userID, MessageType: db.MessageTypePosted}}
	if err := o.platform.OpenModalView(ctx, triggerID, modal); err != nil {
		return &PlatformError{Op: "openModalView", Err: err}
	}
	return nil
}

func (o *Orchestrator) authorRecord(ctx context.Context, actingUser string, cmd ChangeMessageCommand) (*db.StatusRecord, error) {
	if actingUser != cmd.UserID {
		return nil, ErrNotAuthor
	}
	record, ok := o.statuses.Find(ctx, cmd.ChannelID, cmd.Date(), cmd.UserID)
	if !ok || record.MessageID != cmd.MessageID {
		return nil, ErrStatusNotFound
	}
	return record, nil
}

// Notify tells the user why their last action failed.
func (o *Orchestrator) Notify(ctx context.Context, channelID, userID string, cause error) {
	o.log.Error("action failed", zap.String("channel", channelID), zap.String("user", userID), zap.Error(cause))
	if err := o.platform.PostEphemeral(ctx, Notice{ChannelID: channelID, UserID: userID, Text: ErrorText(cause)}); err != nil {
		o.log.Warn("Notify: failed to send notice", zap.String("user", userID), zap.Error(err))
	}
}

// ErrorText is the user-facing description of err.
func ErrorText(err error) string {
	var platformErr *PlatformError
	switch {
	case errors.Is(err, utils.ErrUnknownTimezone):
		return "I couldn't work out your timezone. Set one in your profile and try again."
	case errors.Is(err, utils.ErrInvalidDateTime):
		return "That schedule doesn't work. Pick a date and time in the future, or leave both empty to post now."
	case errors.Is(err, ErrIncompleteSubmission):
		return "Yesterday and today are both required."
	case errors.Is(err, ErrNotAuthor):
		return "Only the author can change this standup."
	case errors.Is(err, ErrNotScheduled):
		return "That standup was already posted, so it can only be edited."
	case errors.Is(err, ErrStatusNotFound):
		return "I couldn't find that standup. It may have already expired."
	case errors.As(err, &platformErr):
		return fmt.Sprintf("Slack rejected the request (%s). Nothing was saved.", platformErr.Op)
	}
	return "Something went wrong saving your standup. Please try again."
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
