package chatlog

import (
	"time"

	"github.com/google/uuid"
)

// TimeLayout is the human-readable timestamp format written to the durable
// log and shown to clients.
const TimeLayout = "2006-01-02 15:04:05"

// Message is a single immutable chat message. The JSON field names are part
// of the wire contract with existing web clients and must not change.
type Message struct {
	ID         string  `json:"id"`
	Text       string  `json:"message"`
	SenderName string  `json:"client_name"`
	SenderAddr string  `json:"client_ip"`
	Timestamp  float64 `json:"timestamp"`
	TimeString string  `json:"time_str"`
}

// NewMessage builds a message for text sent from addr, stamped with the
// current time and a random 128-bit id.
func NewMessage(text, addr, name string) Message {
	now := time.Now()
	return Message{
		ID:         uuid.NewString(),
		Text:       text,
		SenderName: name,
		SenderAddr: addr,
		Timestamp:  float64(now.UnixNano()) / float64(time.Second),
		TimeString: now.Format(TimeLayout),
	}
}
