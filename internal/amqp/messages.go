package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventTransactionRecorded = "transaction.recorded"
	EventTransactionUpdated  = "transaction.updated"
	EventRuleSaved           = "rule.saved"
	EventBudgetDeleted       = "budget.deleted"
)

// LedgerEventMessage is a lightweight notification about a ledger write.
// Consumers fetch the full record from the database; the message carries only
// identities.
type LedgerEventMessage struct {
	Kind      string    `json:"kind"`
	ID        uuid.UUID `json:"id"`
	BudgetID  uuid.UUID `json:"budget_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEventMessage creates an event for the given record identities.
func NewLedgerEventMessage(kind string, id, budgetID uuid.UUID) *LedgerEventMessage {
	return &LedgerEventMessage{
		Kind:      kind,
		ID:        id,
		BudgetID:  budgetID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
