package record

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the receipt-time format persisted with every record.
// Microseconds are zero-padded so the field stays fixed-width and
// sortable as text.
const DateLayout = "2006-01-02 15:04:05.000000"

// Payload is the wire shape the intake server forwards to the relay.
// It carries no date: the date is assigned at the relay, at receipt
// time.
type Payload struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// Record is the persisted entity.
type Record struct {
	ID       string `bson:"_id" json:"id"`
	Username string `bson:"username" json:"username"`
	Message  string `bson:"message" json:"message"`
	Date     string `bson:"date" json:"date"`
}

// FromPayload stamps a payload with a fresh ID and the receipt time.
func FromPayload(p Payload, receivedAt time.Time) *Record {
	return &Record{
		ID:       uuid.NewString(),
		Username: p.Username,
		Message:  p.Message,
		Date:     receivedAt.Format(DateLayout),
	}
}

// ParseDate validates a date string against DateLayout.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.Local)
}
