package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ResourceChangedMessage tells consumers that a user's data changed.
// It carries identifiers only; consumers reload whatever they need.
type ResourceChangedMessage struct {
	UserID    string    `json:"user_id"`
	Resource  string    `json:"resource"`
	Operation string    `json:"operation"`
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewResourceChangedMessage creates a message stamped with the current time
func NewResourceChangedMessage(userID, resource, operation, id string) *ResourceChangedMessage {
	return &ResourceChangedMessage{
		UserID:    userID,
		Resource:  resource,
		Operation: operation,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ResourceChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ResourceChangedMessageFromJSON decodes a message and rejects one without a user
func ResourceChangedMessageFromJSON(data []byte) (*ResourceChangedMessage, error) {
	var msg ResourceChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errors.New("message has no user_id")
	}
	return &msg, nil
}
