package standup

import (
	"errors"
	"fmt"
	"strings"

	"standupbot/utils"
)

var ErrIncompleteSubmission = errors.New("incomplete submission")

// Submission is the content of the standup form.
type Submission struct {
	Yesterday           string
	Today               string
	ParkingLot          string
	PullRequests        string
	ParkingLotAttendees []string
	ScheduleDate        string
	ScheduleTime        string
}

func (s Submission) Scheduled() bool {
	return s.ScheduleDate != "" || s.ScheduleTime != ""
}

// HasParkingLot reports whether the submission contributes to the parking lot.
func (s Submission) HasParkingLot() bool {
	return strings.TrimSpace(s.ParkingLot) != "" || len(s.ParkingLotAttendees) > 0
}

// Validate checks everything that can be checked without a timezone. Field
// names in the returned error match the form's block ids.
func (s Submission) Validate() map[string]error {
	problems := map[string]error{}
	if strings.TrimSpace(s.Yesterday) == "" {
		problems[FieldYesterday] = fmt.Errorf("%w: yesterday is required", ErrIncompleteSubmission)
	}
	if strings.TrimSpace(s.Today) == "" {
		problems[FieldToday] = fmt.Errorf("%w: today is required", ErrIncompleteSubmission)
	}
	switch {
	case s.ScheduleDate != "" && s.ScheduleTime == "":
		problems[FieldScheduleTime] = fmt.Errorf("%w: pick a time to go with the date", utils.ErrInvalidDateTime)
	case s.ScheduleDate == "" && s.ScheduleTime != "":
		problems[FieldScheduleDate] = fmt.Errorf("%w: pick a date to go with the time", utils.ErrInvalidDateTime)
	case s.Scheduled():
		if err := utils.ValidateDateTime(s.ScheduleDate, s.ScheduleTime); err != nil {
			problems[FieldScheduleDate] = err
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}

func (s Submission) validate() error {
	problems := s.Validate()
	for _, field := range formFields {
		if err, ok := problems[field]; ok {
			return err
		}
	}
	return nil
}

// Form block ids, in display order.
const (
	FieldYesterday           = "yesterday"
	FieldToday               = "today"
	FieldParkingLot          = "parking_lot"
	FieldParkingLotAttendees = "parking_lot_attendees"
	FieldPullRequests        = "pull_requests"
	FieldScheduleDate        = "schedule_date"
	FieldScheduleTime        = "schedule_time"
)

var formFields = []string{
	FieldYesterday,
	FieldToday,
	FieldParkingLot,
	FieldParkingLotAttendees,
	FieldPullRequests,
	FieldScheduleDate,
	FieldScheduleTime,
}
