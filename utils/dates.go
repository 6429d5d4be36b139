package utils

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/jinzhu/now"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
	printLayout = "1/2/2006 at 3:04 PM"
)

var (
	ErrUnknownTimezone = errors.New("unknown timezone")
	ErrInvalidDateTime = errors.New("invalid date or time")
)

// ZeroUTC returns midnight UTC of the day t falls on in UTC.
func ZeroUTC(t time.Time) time.Time {
	return now.With(t.UTC()).BeginningOfDay()
}

// LoadZone resolves an IANA zone name. Empty names are rejected rather than
// silently mapped to UTC.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		return nil, fmt.Errorf("LoadZone: %w: empty name", ErrUnknownTimezone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("LoadZone: %w: %q", ErrUnknownTimezone, name)
	}
	return loc, nil
}

// OffsetForZone returns the zone's current offset from UTC in minutes.
func OffsetForZone(name string) (int, error) {
	return offsetForZoneAt(name, time.Now())
}

func offsetForZoneAt(name string, at time.Time) (int, error) {
	loc, err := LoadZone(name)
	if err != nil {
		return 0, err
	}
	_, seconds := at.In(loc).Zone()
	return seconds / 60, nil
}

// ValidateDateTime checks the picker formats without resolving any zone.
func ValidateDateTime(date, clock string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("ValidateDateTime: %w: date %q", ErrInvalidDateTime, date)
	}
	if _, err := time.Parse(ClockLayout, clock); err != nil || len(clock) != len(ClockLayout) {
		return fmt.Errorf("ValidateDateTime: %w: time %q", ErrInvalidDateTime, clock)
	}
	return nil
}

// CombineDateTimeInZone reads date ("YYYY-MM-DD") and clock ("HH:mm") as wall
// time in zone and returns the matching UTC instant.
func CombineDateTimeInZone(date, clock, zone string) (time.Time, error) {
	if err := ValidateDateTime(date, clock); err != nil {
		return time.Time{}, err
	}
	loc, err := LoadZone(zone)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("CombineDateTimeInZone: %w: %v", ErrInvalidDateTime, err)
	}
	return t.UTC(), nil
}

// FixedZone builds a location for a bare offset in minutes east of UTC.
func FixedZone(offsetMinutes int) *time.Location {
	sign, minutes := '+', offsetMinutes
	if minutes < 0 {
		sign, minutes = '-', -minutes
	}
	return time.FixedZone(fmt.Sprintf("UTC%c%02d:%02d", sign, minutes/60, minutes%60), offsetMinutes*60)
}

// PrintInZone renders t as "M/D/YYYY at h:mm AM/PM" in loc.
func PrintInZone(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(printLayout)
}
