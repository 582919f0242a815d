// Package lifecycle owns ticket status: the legal transition table,
// the guards on each edge, field locking and the audit trail.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/spec-kit/dig-ticket-service/internal/clock"
	"github.com/spec-kit/dig-ticket-service/internal/compliance"
	"github.com/spec-kit/dig-ticket-service/internal/domain"
	apperrors "github.com/spec-kit/dig-ticket-service/pkg/util/errorutil"
)

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusDraft:       {domain.TicketStatusValidated, domain.TicketStatusCancelled, domain.TicketStatusExpired},
	domain.TicketStatusValidated:   {domain.TicketStatusConfirmed, domain.TicketStatusDraft, domain.TicketStatusCancelled, domain.TicketStatusExpired},
	domain.TicketStatusConfirmed:   {domain.TicketStatusSubmitted, domain.TicketStatusCancelled, domain.TicketStatusExpired},
	domain.TicketStatusSubmitted:   {domain.TicketStatusInProgress, domain.TicketStatusCancelled, domain.TicketStatusExpired},
	domain.TicketStatusInProgress:  {domain.TicketStatusResponsesIn, domain.TicketStatusCancelled, domain.TicketStatusExpired},
	domain.TicketStatusResponsesIn: {domain.TicketStatusReadyToDig, domain.TicketStatusCancelled, domain.TicketStatusExpired},
	domain.TicketStatusReadyToDig:  {domain.TicketStatusCancelled},
	domain.TicketStatusExpired:     {},
	domain.TicketStatusCancelled:   {},
}

// systemOnly targets are reached by automatic transitions only.
var systemOnly = map[domain.TicketStatus]bool{
	domain.TicketStatusDraft:   true,
	domain.TicketStatusExpired: true,
}

// CanTransition reports whether from -> to is an edge of the table.
func CanTransition(from, to domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// AllowedFrom lists the statuses reachable from status.
func AllowedFrom(status domain.TicketStatus) []domain.TicketStatus {
	return append([]domain.TicketStatus(nil), allowedTransitions[status]...)
}

// IsSystemOnly reports whether callers may not request to directly.
func IsSystemOnly(to domain.TicketStatus) bool {
	return systemOnly[to]
}

// Request describes one status change.
type Request struct {
	To     domain.TicketStatus
	Actor  string
	Reason string
	// Gaps is the current gap list; consulted on edges into Validated and Confirmed.
	Gaps []domain.Gap
}

// Transition records one status change with its audit entry.
type Transition struct {
	From   domain.TicketStatus
	To     domain.TicketStatus
	Actor  string
	Reason string
}

// Machine applies transitions to tickets. It holds no per-ticket state.
type Machine struct {
	calendar *compliance.Calendar
	clock    clock.Clock
}

// NewMachine builds a machine using calendar for date guards.
func NewMachine(calendar *compliance.Calendar, c clock.Clock) *Machine {
	return &Machine{calendar: calendar, clock: c}
}

// Transition checks every guard first and only then mutates the ticket,
// so a failed call leaves it untouched.
func (m *Machine) Transition(t *domain.Ticket, req Request) (Transition, error) {
	from := t.Status
	if !CanTransition(from, req.To) {
		return Transition{}, apperrors.NewInvalidTransition(string(from), string(req.To), "")
	}
	now := m.clock.Now()

	switch req.To {
	case domain.TicketStatusValidated:
		if n := len(domain.RequiredGaps(req.Gaps)); n > 0 {
			return Transition{}, apperrors.NewInvalidTransition(string(from), string(req.To), fmt.Sprintf("%d required gaps remain", n))
		}
	case domain.TicketStatusConfirmed:
		if n := len(domain.RequiredGaps(req.Gaps)); n > 0 {
			return Transition{}, apperrors.NewInvalidTransition(string(from), string(req.To), fmt.Sprintf("%d required gaps remain", n))
		}
		if t.LawfulStartDate == nil {
			return Transition{}, apperrors.NewInvalidDate("lawful start date has not been computed", nil)
		}
		if !m.calendar.GivesFullNotice(*t.LawfulStartDate, now) {
			return Transition{}, apperrors.NewInvalidDate("lawful start date no longer gives full notice; re-validate the ticket", map[string]any{
				"lawful_start_date":  compliance.FormatDate(*t.LawfulStartDate),
				"minimum_start_date": compliance.FormatDate(m.calendar.LawfulStartDate(now)),
				"confirmed_at":       now,
			})
		}
	case domain.TicketStatusReadyToDig:
		if t.LawfulStartDate != nil && m.calendar.Date(now).Before(m.calendar.Date(*t.LawfulStartDate)) {
			return Transition{}, apperrors.NewInvalidDate("digging may not begin before the lawful start date", map[string]any{
				"lawful_start_date": compliance.FormatDate(*t.LawfulStartDate),
			})
		}
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = defaultReason(req.To)
	}
	actor := req.Actor
	if actor == "" {
		actor = domain.ActorSystem
	}

	switch req.To {
	case domain.TicketStatusConfirmed:
		packet := BuildPacket(t, now)
		t.Packet = &packet
	case domain.TicketStatusResponsesIn:
		completeAt := now
		expires := m.calendar.ExpiresDate(completeAt)
		t.ResponsesCompleteAt = &completeAt
		t.ExpiresDate = &expires
	}

	t.Status = req.To
	t.UpdatedAt = now
	t.Audit = append(t.Audit, domain.AuditEntry{
		At:     now,
		Actor:  actor,
		From:   from,
		To:     req.To,
		Reason: reason,
	})
	return Transition{From: from, To: req.To, Actor: actor, Reason: reason}, nil
}

// ExpireIfDue moves a ticket whose response window has passed to
// Expired. Tickets already ReadyToDig do not expire.
func (m *Machine) ExpireIfDue(t *domain.Ticket) (*Transition, error) {
	if t.Status.IsTerminal() || t.Status == domain.TicketStatusReadyToDig || t.ExpiresDate == nil {
		return nil, nil
	}
	if !m.calendar.IsPast(*t.ExpiresDate, m.clock.Now()) {
		return nil, nil
	}
	tr, err := m.Transition(t, Request{
		To:     domain.TicketStatusExpired,
		Actor:  domain.ActorSystem,
		Reason: "response validity window ended " + compliance.FormatDate(*t.ExpiresDate),
	})
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

// SyncValidation promotes a gap-free Draft to Validated, or demotes a
// Validated ticket whose required gaps reappeared.
func (m *Machine) SyncValidation(t *domain.Ticket, gaps []domain.Gap) (*Transition, error) {
	required := len(domain.RequiredGaps(gaps))
	var req Request
	switch {
	case t.Status == domain.TicketStatusDraft && required == 0:
		req = Request{To: domain.TicketStatusValidated, Actor: domain.ActorSystem, Reason: "no required gaps remain", Gaps: gaps}
	case t.Status == domain.TicketStatusValidated && required > 0:
		req = Request{To: domain.TicketStatusDraft, Actor: domain.ActorSystem, Reason: fmt.Sprintf("%d required gaps reappeared", required)}
	default:
		return nil, nil
	}
	tr, err := m.Transition(t, req)
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

// ApplyClearance performs the response-driven transition: complete
// clearance moves InProgress to ResponsesIn. Submitted to InProgress stays
// an operator action.
func (m *Machine) ApplyClearance(t *domain.Ticket, state domain.ClearanceState) (*Transition, error) {
	if t.Status != domain.TicketStatusInProgress || state != domain.ClearanceComplete {
		return nil, nil
	}
	tr, err := m.Transition(t, Request{To: domain.TicketStatusResponsesIn, Actor: domain.ActorSystem, Reason: "all expected utilities responded"})
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

// CheckFieldsMutable rejects changes to locked packet fields.
func CheckFieldsMutable(t *domain.Ticket, changed []domain.FieldName) error {
	if len(changed) == 0 || !t.Status.FieldsLocked() {
		return nil
	}
	names := make([]string, len(changed))
	for i, f := range changed {
		names[i] = string(f)
	}
	return apperrors.NewFieldLocked(string(t.Status), names)
}

// CheckNotTerminal rejects any mutation of a terminal ticket.
func CheckNotTerminal(t *domain.Ticket, what string) error {
	if t.Status.IsTerminal() {
		return apperrors.NewFieldLocked(string(t.Status), []string{what})
	}
	return nil
}

func defaultReason(to domain.TicketStatus) string {
	switch to {
	case domain.TicketStatusCancelled:
		return "cancelled"
	case domain.TicketStatusConfirmed:
		return "confirmed by caller"
	}
	return "status changed to " + strings.ToLower(string(to))
}
