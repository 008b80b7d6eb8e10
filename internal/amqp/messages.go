package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidMessage = errors.New("invalid transaction sync message")

// TransactionSyncMessage asks the sync worker to export one transaction.
// Only the ID and version travel; the worker loads the row from the database,
// so a message never carries amounts or account names.
type TransactionSyncMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionSyncMessage announces that transaction id was booked. version
// is the row's sync version at booking time, which the worker logs to tell a
// redelivery from a fresh booking.
func NewTransactionSyncMessage(id, version int64) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSyncMessageFromJSON decodes a message body. Bodies that do not
// name a stored transaction fail with ErrInvalidMessage and are dropped by
// the consumer instead of being requeued forever.
func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("%w: missing transaction id", ErrInvalidMessage)
	}
	return &msg, nil
}
