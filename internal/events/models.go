package events

import "time"

// EventType is the provider-defined event vocabulary. The set is open:
// unrecognized types are logged and ignored, never dropped into business
// logic.
type EventType string

const (
	EventSent      EventType = "sent"
	EventViewed    EventType = "viewed"
	EventSigned    EventType = "signed"
	EventAllSigned EventType = "all_signed"
	EventDeclined  EventType = "declined"
	EventError     EventType = "error"
	EventTest      EventType = "test"
)

// Event is one asynchronous notification from the signing provider.
type Event struct {
	Type       EventType       `json:"event_type"`
	OccurredAt time.Time       `json:"event_time"`
	RequestID  string          `json:"signature_request_id"`
	Signers    []SignerOutcome `json:"signers,omitempty"`
}

// SignerOutcome is one per-signer result carried by an event.
type SignerOutcome struct {
	ProviderSignerID string     `json:"signer_id"`
	Email            string     `json:"email,omitempty"`
	Status           string     `json:"status"`
	DeclineReason    string     `json:"decline_reason,omitempty"`
	SignedAt         *time.Time `json:"signed_at,omitempty"`
}
