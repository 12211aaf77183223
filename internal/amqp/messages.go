package amqp

import (
	"encoding/json"
	"time"
)

// RolloverMessage announces that one user's budget history was captured for
// a month. Downstream consumers fetch the rows from the database; the
// message carries only the key and a row count.
type RolloverMessage struct {
	UserID     string    `json:"user_id"`
	Month      string    `json:"month"`
	Categories int       `json:"categories"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewRolloverMessage creates a message for a completed rollover.
func NewRolloverMessage(userID, month string, categories int) *RolloverMessage {
	return &RolloverMessage{
		UserID:     userID,
		Month:      month,
		Categories: categories,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RolloverMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RolloverMessageFromJSON creates a message from JSON bytes
func RolloverMessageFromJSON(data []byte) (*RolloverMessage, error) {
	var msg RolloverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
