package amqp

import (
	"testing"

	"github.com/google/uuid"
)

func TestLedgerEventMessageRoundTrip(t *testing.T) {
	id := uuid.New()
	budgetID := uuid.New()
	msg := NewLedgerEventMessage(EventTransactionRecorded, id, budgetID)

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	got, err := LedgerEventMessageFromJSON(body)
	if err != nil {
		t.Fatalf("LedgerEventMessageFromJSON() error = %v", err)
	}
	if got.Kind != EventTransactionRecorded {
		t.Errorf("Kind = %q, want %q", got.Kind, EventTransactionRecorded)
	}
	if got.ID != id || got.BudgetID != budgetID {
		t.Errorf("identities mismatch: got (%s, %s), want (%s, %s)", got.ID, got.BudgetID, id, budgetID)
	}
	if got.Timestamp.IsZero() {
		t.Error("Timestamp should survive the round trip")
	}
}

func TestLedgerEventMessageFromJSONRejectsGarbage(t *testing.T) {
	if _, err := LedgerEventMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("expected error for malformed payload")
	}
}
