package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"crnumbers/internal/core"
)

// StagingCleanupMessage asks the worker to clear staging entries for a finalized date.
type StagingCleanupMessage struct {
	Date      core.Date `json:"date"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
}

func NewStagingCleanupMessage(date core.Date, attempt int) *StagingCleanupMessage {
	return &StagingCleanupMessage{
		Date:      date,
		Attempt:   attempt,
		Timestamp: time.Now(),
	}
}

func (m *StagingCleanupMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// StagingCleanupMessageFromJSON decodes a message body; a missing date is an error.
func StagingCleanupMessageFromJSON(data []byte) (*StagingCleanupMessage, error) {
	var msg StagingCleanupMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Date.IsZero() {
		return nil, errors.New("cleanup message has no date")
	}
	return &msg, nil
}
