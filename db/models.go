package db

import (
	"time"

	"gorm.io/datatypes"
)

const (
	MessageTypePosted    = "posted"
	MessageTypeScheduled = "scheduled"
)

// Lifetime carries the day a record belongs to and its expiry. StandupDate is
// always UTC midnight and TimeToLive is always StandupDate plus one day.
type Lifetime struct {
	StandupDate time.Time `gorm:"primaryKey" bson:"standup_date,omitempty" json:"standup_date"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false" bson:"created_at,omitempty" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false" bson:"updated_at,omitempty" json:"updated_at"`
	TimeToLive  time.Time `gorm:"index" bson:"time_to_live,omitempty" json:"time_to_live"`
}

// StatusRecord is one user's standup for one channel and day.
//
// Zero values mean "absent" for partial updates. ParkingLot and PullRequests
// are pointers so an edit can clear them; nil sets are left untouched.
type StatusRecord struct {
	ChannelID string `gorm:"primaryKey" bson:"channel_id,omitempty" json:"channel_id"`
	Lifetime  `bson:",inline"`
	UserID    string `gorm:"primaryKey" bson:"user_id,omitempty" json:"user_id"`

	Yesterday           string                     `bson:"yesterday,omitempty" json:"yesterday"`
	Today               string                     `bson:"today,omitempty" json:"today"`
	ParkingLot          *string                    `bson:"parking_lot" json:"parking_lot,omitempty"`
	PullRequests        *string                    `bson:"pull_requests" json:"pull_requests,omitempty"`
	ParkingLotAttendees datatypes.JSONSlice[string] `bson:"parking_lot_attendees" json:"parking_lot_attendees,omitempty"`

	ScheduleDateStr string `bson:"schedule_date_str,omitempty" json:"schedule_date_str,omitempty"`
	ScheduleTimeStr string `bson:"schedule_time_str,omitempty" json:"schedule_time_str,omitempty"`
	Timezone        string `bson:"timezone,omitempty" json:"timezone,omitempty"`

	MessageID   string `bson:"message_id,omitempty" json:"message_id"`
	MessageType string `bson:"message_type,omitempty" json:"message_type"`
}

func (StatusRecord) TableName() string { return statusTable }

func (r *StatusRecord) IsScheduled() bool { return r.MessageType == MessageTypeScheduled }

// ParkingLotItem is one contributor's entry in a shared parking lot.
type ParkingLotItem struct {
	UserID    string   `bson:"user_id" json:"user_id"`
	Content   string   `bson:"content" json:"content"`
	Attendees []string `bson:"attendees" json:"attendees"`
}

// ParkingLotRecord is shared by everyone posting in a channel on a day.
type ParkingLotRecord struct {
	ChannelID string `gorm:"primaryKey" bson:"channel_id,omitempty" json:"channel_id"`
	Lifetime  `bson:",inline"`

	Items datatypes.JSONSlice[ParkingLotItem] `bson:"items" json:"items"`
}

func (ParkingLotRecord) TableName() string { return parkingLotTable }

// Item returns the index of userID's item, or -1.
func (r *ParkingLotRecord) Item(userID string) int {
	for i, item := range r.Items {
		if item.UserID == userID {
			return i
		}
	}
	return -1
}
