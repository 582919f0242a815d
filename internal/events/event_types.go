package events

import (
	"time"

	"github.com/spec-kit/dig-ticket-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated          EventType = "ticket_created"
	EventTicketUpdated          EventType = "ticket_updated"
	EventTicketStatusChanged    EventType = "ticket_status_changed"
	EventTicketResponseRecorded EventType = "ticket_response_recorded"
)

// AllTypes lists every event type in publication order.
var AllTypes = []EventType{
	EventTicketCreated,
	EventTicketUpdated,
	EventTicketStatusChanged,
	EventTicketResponseRecorded,
}

// Event represents a domain event emitted after a ticket is saved.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     string      `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	SessionID    string              `json:"session_id"`
	Status       domain.TicketStatus `json:"status"`
	RequiredGaps int                 `json:"required_gaps"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	ChangedFields []domain.FieldName  `json:"changed_fields"`
	Status        domain.TicketStatus `json:"status"`
	RequiredGaps  int                 `json:"required_gaps"`
	NotesAdded    int                 `json:"notes_added,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Reason    string              `json:"reason,omitempty"`
}

// TicketResponseRecordedPayload payload.
type TicketResponseRecordedPayload struct {
	UtilityCode string                `json:"utility_code"`
	Status      domain.ResponseStatus `json:"status"`
	Clearance   domain.ClearanceState `json:"clearance"`
	Unexpected  bool                  `json:"unexpected,omitempty"`
	Pending     []string              `json:"pending"`
}
