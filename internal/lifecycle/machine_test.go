package lifecycle

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/dig-ticket-service/internal/clock"
	"github.com/spec-kit/dig-ticket-service/internal/compliance"
	"github.com/spec-kit/dig-ticket-service/internal/domain"
	apperrors "github.com/spec-kit/dig-ticket-service/pkg/util/errorutil"
)

var allStatuses = []domain.TicketStatus{
	domain.TicketStatusDraft,
	domain.TicketStatusValidated,
	domain.TicketStatusConfirmed,
	domain.TicketStatusSubmitted,
	domain.TicketStatusInProgress,
	domain.TicketStatusResponsesIn,
	domain.TicketStatusReadyToDig,
	domain.TicketStatusExpired,
	domain.TicketStatusCancelled,
}

func newMachine(t *testing.T, now time.Time) (*Machine, *clock.FakeClock, *compliance.Calendar) {
	t.Helper()
	cal := compliance.DefaultCalendar()
	fake := clock.Fake(now)
	return NewMachine(cal, fake), fake, cal
}

func wednesday(cal *compliance.Calendar) time.Time {
	return time.Date(2026, time.October, 14, 10, 0, 0, 0, cal.Location())
}

func TestDisallowedTransitionsLeaveTicketUntouched(t *testing.T) {
	cal := compliance.DefaultCalendar()
	m := NewMachine(cal, clock.Fake(wednesday(cal)))
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if CanTransition(from, to) {
				continue
			}
			ticket := &domain.Ticket{ID: "t", Status: from, Audit: []domain.AuditEntry{{To: from}}}
			before := ticket.Clone()
			_, err := m.Transition(ticket, Request{To: to, Actor: "operator:ops"})
			if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
				t.Fatalf("%s -> %s: err = %v, want INVALID_TRANSITION", from, to, err)
			}
			if !strings.Contains(err.Error(), string(from)) || !strings.Contains(err.Error(), string(to)) {
				t.Fatalf("%s -> %s: error %q should name both states", from, to, err)
			}
			if !reflect.DeepEqual(ticket, before) {
				t.Fatalf("%s -> %s: ticket mutated on failure", from, to)
			}
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []domain.TicketStatus{domain.TicketStatusExpired, domain.TicketStatusCancelled} {
		if len(AllowedFrom(s)) != 0 {
			t.Fatalf("%s should be terminal, allows %v", s, AllowedFrom(s))
		}
	}
	for _, s := range allStatuses {
		if s.IsTerminal() {
			continue
		}
		if !CanTransition(s, domain.TicketStatusCancelled) {
			t.Fatalf("%s should allow cancellation", s)
		}
	}
}

func TestValidatedRequiresNoRequiredGaps(t *testing.T) {
	m, _, _ := newMachine(t, time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC))
	ticket := &domain.Ticket{Status: domain.TicketStatusDraft}
	gaps := []domain.Gap{
		{Field: domain.FieldCallerPhone, Severity: domain.GapRequired},
		{Field: domain.FieldCrossStreet, Severity: domain.GapRecommended},
	}
	if _, err := m.Transition(ticket, Request{To: domain.TicketStatusValidated, Gaps: gaps}); !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("err = %v, want INVALID_TRANSITION", err)
	}
	if ticket.Status != domain.TicketStatusDraft || len(ticket.Audit) != 0 {
		t.Fatalf("ticket changed on failure: %+v", ticket)
	}

	tr, err := m.Transition(ticket, Request{To: domain.TicketStatusValidated, Gaps: gaps[1:]})
	if err != nil {
		t.Fatalf("recommended gaps must not block: %v", err)
	}
	if tr.Actor != domain.ActorSystem || ticket.Status != domain.TicketStatusValidated || len(ticket.Audit) != 1 {
		t.Fatalf("transition = %+v, ticket = %+v", tr, ticket)
	}
}

func TestConfirmFreezesPacketAndRejectsStaleDates(t *testing.T) {
	cal := compliance.DefaultCalendar()
	now := wednesday(cal)
	m := NewMachine(cal, clock.Fake(now))
	lawful := cal.LawfulStartDate(now)
	city := "Austin"
	ticket := &domain.Ticket{
		ID:                 "t-9",
		Status:             domain.TicketStatusValidated,
		Fields:             domain.Fields{City: &city},
		LawfulStartDate:    &lawful,
		ExpectedResponders: []domain.ExpectedResponder{{Code: "ATT"}},
	}
	if _, err := m.Transition(ticket, Request{To: domain.TicketStatusConfirmed, Actor: "agent:a1"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if ticket.Packet == nil || ticket.Packet.TicketID != "t-9" || !ticket.Packet.LawfulStartDate.Equal(lawful) {
		t.Fatalf("packet = %+v", ticket.Packet)
	}
	if !strings.Contains(ticket.Packet.Text, "Austin") || !strings.Contains(ticket.Packet.Text, "ATT") {
		t.Fatalf("packet text missing content:\n%s", ticket.Packet.Text)
	}
	city = "Dallas"
	if *ticket.Packet.Fields.City != "Austin" {
		t.Fatalf("packet aliases live fields")
	}
	if got := ticket.Audit[0]; got.Actor != "agent:a1" || got.From != domain.TicketStatusValidated || got.To != domain.TicketStatusConfirmed {
		t.Fatalf("audit = %+v", got)
	}

	// Lawful start computed on Wednesday is Friday; confirming the following Monday is stale.
	stale := &domain.Ticket{ID: "t-10", Status: domain.TicketStatusValidated, LawfulStartDate: &lawful}
	later := NewMachine(cal, clock.Fake(time.Date(2026, time.October, 19, 9, 0, 0, 0, cal.Location())))
	if _, err := later.Transition(stale, Request{To: domain.TicketStatusConfirmed}); !apperrors.HasCode(err, apperrors.CodeInvalidDate) {
		t.Fatalf("err = %v, want INVALID_DATE", err)
	}
	if stale.Status != domain.TicketStatusValidated || stale.Packet != nil || len(stale.Audit) != 0 {
		t.Fatalf("stale ticket mutated: %+v", stale)
	}

	// A day later Friday is still in the future but gives only one business day of notice.
	short := &domain.Ticket{ID: "t-11", Status: domain.TicketStatusValidated, LawfulStartDate: &lawful}
	thursday := NewMachine(cal, clock.Fake(now.Add(24*time.Hour)))
	if _, err := thursday.Transition(short, Request{To: domain.TicketStatusConfirmed}); !apperrors.HasCode(err, apperrors.CodeInvalidDate) {
		t.Fatalf("err = %v, want INVALID_DATE for short notice", err)
	}
	if short.Status != domain.TicketStatusValidated || short.Packet != nil {
		t.Fatalf("short-notice ticket mutated: %+v", short)
	}

	missing := &domain.Ticket{Status: domain.TicketStatusValidated}
	if _, err := m.Transition(missing, Request{To: domain.TicketStatusConfirmed}); !apperrors.HasCode(err, apperrors.CodeInvalidDate) {
		t.Fatalf("err = %v, want INVALID_DATE for missing lawful date", err)
	}
}

func TestResponsesInStampsExpiry(t *testing.T) {
	m, _, cal := newMachine(t, time.Date(2026, time.October, 22, 15, 0, 0, 0, time.UTC))
	ticket := &domain.Ticket{Status: domain.TicketStatusInProgress}
	if _, err := m.Transition(ticket, Request{To: domain.TicketStatusResponsesIn}); err != nil {
		t.Fatal(err)
	}
	if ticket.ResponsesCompleteAt == nil || ticket.ExpiresDate == nil {
		t.Fatalf("dates not stamped: %+v", ticket)
	}
	if got, want := *ticket.ExpiresDate, cal.Date(*ticket.ResponsesCompleteAt).AddDate(0, 0, 14); !got.Equal(want) {
		t.Fatalf("expires = %v, want %v", got, want)
	}
}

func TestReadyToDigWaitsForLawfulStart(t *testing.T) {
	cal := compliance.DefaultCalendar()
	lawful := time.Date(2026, time.October, 16, 0, 0, 0, 0, cal.Location())
	m, fake, _ := newMachine(t, time.Date(2026, time.October, 15, 12, 0, 0, 0, cal.Location()))
	ticket := &domain.Ticket{Status: domain.TicketStatusResponsesIn, LawfulStartDate: &lawful}

	if _, err := m.Transition(ticket, Request{To: domain.TicketStatusReadyToDig}); !apperrors.HasCode(err, apperrors.CodeInvalidDate) {
		t.Fatalf("err = %v, want INVALID_DATE", err)
	}
	fake.Set(time.Date(2026, time.October, 16, 7, 0, 0, 0, cal.Location()))
	if _, err := m.Transition(ticket, Request{To: domain.TicketStatusReadyToDig}); err != nil {
		t.Fatalf("on the lawful start date: %v", err)
	}
}

func TestExpireIfDue(t *testing.T) {
	m, fake, _ := newMachine(t, time.Date(2026, time.October, 22, 15, 0, 0, 0, time.UTC))
	ticket := &domain.Ticket{Status: domain.TicketStatusInProgress}
	if _, err := m.Transition(ticket, Request{To: domain.TicketStatusResponsesIn}); err != nil {
		t.Fatal(err)
	}
	ready := ticket.Clone()
	if _, err := m.Transition(ready, Request{To: domain.TicketStatusReadyToDig, Actor: "operator:o"}); err != nil {
		t.Fatal(err)
	}

	// On the expiry date itself the ticket is still valid.
	fake.Set(ticket.ExpiresDate.Add(12 * time.Hour))
	if tr, err := m.ExpireIfDue(ticket); err != nil || tr != nil {
		t.Fatalf("expired too early: %v %v", tr, err)
	}

	fake.Set(ticket.ExpiresDate.AddDate(0, 0, 1).Add(time.Hour))
	tr, err := m.ExpireIfDue(ticket)
	if err != nil || tr == nil {
		t.Fatalf("ExpireIfDue = %v, %v", tr, err)
	}
	if ticket.Status != domain.TicketStatusExpired || ticket.Audit[len(ticket.Audit)-1].Actor != domain.ActorSystem {
		t.Fatalf("ticket = %+v", ticket)
	}
	if tr, _ := m.ExpireIfDue(ticket); tr != nil {
		t.Fatalf("already expired ticket transitioned again")
	}

	if tr, _ := m.ExpireIfDue(ready); tr != nil || ready.Status != domain.TicketStatusReadyToDig {
		t.Fatalf("ReadyToDig must not expire")
	}
}

func TestSyncValidation(t *testing.T) {
	m, _, _ := newMachine(t, time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC))
	required := []domain.Gap{{Field: domain.FieldCity, Severity: domain.GapRequired}}
	ticket := &domain.Ticket{Status: domain.TicketStatusDraft}

	if tr, err := m.SyncValidation(ticket, required); err != nil || tr != nil {
		t.Fatalf("draft with gaps should stay draft: %v %v", tr, err)
	}
	if tr, err := m.SyncValidation(ticket, nil); err != nil || tr == nil || ticket.Status != domain.TicketStatusValidated {
		t.Fatalf("gap-free draft should validate: %v %v", tr, err)
	}
	if tr, err := m.SyncValidation(ticket, nil); err != nil || tr != nil {
		t.Fatalf("validated ticket re-validated: %v %v", tr, err)
	}
	if tr, err := m.SyncValidation(ticket, required); err != nil || tr == nil || ticket.Status != domain.TicketStatusDraft {
		t.Fatalf("reappearing gaps should demote: %v %v", tr, err)
	}
	if len(ticket.Audit) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(ticket.Audit))
	}
}

func TestApplyClearance(t *testing.T) {
	m, _, _ := newMachine(t, time.Date(2026, time.October, 20, 10, 0, 0, 0, time.UTC))

	tests := []struct {
		name   string
		status domain.TicketStatus
		state  domain.ClearanceState
		want   domain.TicketStatus
	}{
		{name: "complete on in progress", status: domain.TicketStatusInProgress, state: domain.ClearanceComplete, want: domain.TicketStatusResponsesIn},
		{name: "partial on in progress", status: domain.TicketStatusInProgress, state: domain.ClearancePartial, want: domain.TicketStatusInProgress},
		{name: "submitted is never advanced automatically", status: domain.TicketStatusSubmitted, state: domain.ClearanceComplete, want: domain.TicketStatusSubmitted},
		{name: "ready to dig is left alone", status: domain.TicketStatusReadyToDig, state: domain.ClearanceComplete, want: domain.TicketStatusReadyToDig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := &domain.Ticket{Status: tt.status}
			tr, err := m.ApplyClearance(ticket, tt.state)
			if err != nil {
				t.Fatal(err)
			}
			if ticket.Status != tt.want {
				t.Fatalf("status = %s, want %s", ticket.Status, tt.want)
			}
			moved := tt.want != tt.status
			wantAudit := 0
			if moved {
				wantAudit = 1
			}
			if (tr != nil) != moved || len(ticket.Audit) != wantAudit {
				t.Fatalf("transition = %v, audit = %v", tr, ticket.Audit)
			}
			if moved && tr.Actor != domain.ActorSystem {
				t.Fatalf("actor = %s", tr.Actor)
			}
		})
	}
}

func TestCheckFieldsMutable(t *testing.T) {
	changed := []domain.FieldName{domain.FieldCity}
	if err := CheckFieldsMutable(&domain.Ticket{Status: domain.TicketStatusValidated}, changed); err != nil {
		t.Fatalf("validated fields should be mutable: %v", err)
	}
	if err := CheckFieldsMutable(&domain.Ticket{Status: domain.TicketStatusConfirmed}, nil); err != nil {
		t.Fatalf("no-op patch on confirmed ticket should pass: %v", err)
	}
	err := CheckFieldsMutable(&domain.Ticket{Status: domain.TicketStatusSubmitted}, changed)
	if !apperrors.HasCode(err, apperrors.CodeFieldLocked) {
		t.Fatalf("err = %v, want FIELD_LOCKED", err)
	}
	if fields := apperrors.ToDomainError(err).Details["fields"].([]string); len(fields) != 1 || fields[0] != "city" {
		t.Fatalf("locked fields = %v", fields)
	}
	if err := CheckNotTerminal(&domain.Ticket{Status: domain.TicketStatusCancelled}, "notes"); !apperrors.HasCode(err, apperrors.CodeFieldLocked) {
		t.Fatalf("terminal ticket should be locked: %v", err)
	}
}
