package domain

import "time"

// TicketStatus enumerates lifecycle states for excavation tickets.
type TicketStatus string

const (
	TicketStatusDraft       TicketStatus = "DRAFT"
	TicketStatusValidated   TicketStatus = "VALIDATED"
	TicketStatusConfirmed   TicketStatus = "CONFIRMED"
	TicketStatusSubmitted   TicketStatus = "SUBMITTED"
	TicketStatusInProgress  TicketStatus = "IN_PROGRESS"
	TicketStatusResponsesIn TicketStatus = "RESPONSES_IN"
	TicketStatusReadyToDig  TicketStatus = "READY_TO_DIG"
	TicketStatusExpired     TicketStatus = "EXPIRED"
	TicketStatusCancelled   TicketStatus = "CANCELLED"
)

var statusRank = map[TicketStatus]int{
	TicketStatusDraft:       0,
	TicketStatusValidated:   1,
	TicketStatusConfirmed:   2,
	TicketStatusSubmitted:   3,
	TicketStatusInProgress:  4,
	TicketStatusResponsesIn: 5,
	TicketStatusReadyToDig:  6,
	TicketStatusExpired:     7,
	TicketStatusCancelled:   7,
}

// ParseTicketStatus maps a raw string onto a known status.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	status := TicketStatus(raw)
	_, ok := statusRank[status]
	return status, ok
}

// IsTerminal reports whether the status accepts no further mutation.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusExpired || s == TicketStatusCancelled
}

// FieldsLocked reports whether packet fields are frozen (confirmed or later).
func (s TicketStatus) FieldsLocked() bool {
	return statusRank[s] >= statusRank[TicketStatusConfirmed]
}

// AtMost reports whether s sits at or before other in the lifecycle order.
func (s TicketStatus) AtMost(other TicketStatus) bool {
	return statusRank[s] <= statusRank[other]
}

// ActorSystem identifies automatic, time or response driven changes.
const ActorSystem = "system"

// Ticket is the aggregate for an excavation notification.
type Ticket struct {
	ID                  string              `json:"id"`
	SessionID           string              `json:"session_id"`
	Status              TicketStatus        `json:"status"`
	Fields              Fields              `json:"fields"`
	Notes               []Note              `json:"notes"`
	LawfulStartDate     *time.Time          `json:"lawful_start_date,omitempty"`
	ResponsesCompleteAt *time.Time          `json:"responses_complete_at,omitempty"`
	ExpiresDate         *time.Time          `json:"expires_date,omitempty"`
	Packet              *Packet             `json:"packet,omitempty"`
	ExpectedResponders  []ExpectedResponder `json:"expected_responders"`
	Responses           []Response          `json:"responses"`
	Audit               []AuditEntry        `json:"audit"`
	Enrichment          *Enrichment         `json:"enrichment,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// Note is an append-only free text remark attached to a ticket.
type Note struct {
	At     time.Time `json:"at"`
	Author string    `json:"author"`
	Body   string    `json:"body"`
}

// AuditEntry is an immutable record of one status transition.
type AuditEntry struct {
	At     time.Time    `json:"at"`
	Actor  string       `json:"actor"`
	From   TicketStatus `json:"from"`
	To     TicketStatus `json:"to"`
	Reason string       `json:"reason,omitempty"`
}

// Packet is the submission snapshot frozen at confirmation.
type Packet struct {
	TicketID           string              `json:"ticket_id"`
	ConfirmedAt        time.Time           `json:"confirmed_at"`
	LawfulStartDate    time.Time           `json:"lawful_start_date"`
	Fields             Fields              `json:"fields"`
	ExpectedResponders []ExpectedResponder `json:"expected_responders"`
	Text               string              `json:"text"`
}

// Enrichment carries geocoder output. It never feeds gap evaluation.
type Enrichment struct {
	Latitude   float64           `json:"latitude"`
	Longitude  float64           `json:"longitude"`
	Confidence float64           `json:"confidence"`
	Parcel     map[string]string `json:"parcel,omitempty"`
	ResolvedAt time.Time         `json:"resolved_at"`
}

// Clone returns a deep copy so that callers can mutate freely and
// discard the copy on failure.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	out.Fields = t.Fields.Clone()
	out.Notes = cloneSlice(t.Notes)
	out.LawfulStartDate = clonePtr(t.LawfulStartDate)
	out.ResponsesCompleteAt = clonePtr(t.ResponsesCompleteAt)
	out.ExpiresDate = clonePtr(t.ExpiresDate)
	if t.Packet != nil {
		packet := *t.Packet
		packet.Fields = t.Packet.Fields.Clone()
		packet.ExpectedResponders = cloneSlice(t.Packet.ExpectedResponders)
		out.Packet = &packet
	}
	out.ExpectedResponders = cloneSlice(t.ExpectedResponders)
	out.Responses = cloneSlice(t.Responses)
	for i := range out.Responses {
		out.Responses[i].Facilities = cloneSlice(out.Responses[i].Facilities)
	}
	out.Audit = cloneSlice(t.Audit)
	if t.Enrichment != nil {
		enrichment := *t.Enrichment
		if t.Enrichment.Parcel != nil {
			enrichment.Parcel = make(map[string]string, len(t.Enrichment.Parcel))
			for k, v := range t.Enrichment.Parcel {
				enrichment.Parcel[k] = v
			}
		}
		out.Enrichment = &enrichment
	}
	return &out
}

// cloneSlice copies s, keeping nil and empty slices distinct.
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
