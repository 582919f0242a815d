package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/dig-ticket-service/internal/compliance"
	"github.com/spec-kit/dig-ticket-service/internal/domain"
)

// BuildPacket freezes the submission snapshot of t at confirmation time.
func BuildPacket(t *domain.Ticket, confirmedAt time.Time) domain.Packet {
	packet := domain.Packet{
		TicketID:           t.ID,
		ConfirmedAt:        confirmedAt,
		Fields:             t.Fields.Clone(),
		ExpectedResponders: append([]domain.ExpectedResponder(nil), t.ExpectedResponders...),
	}
	if t.LawfulStartDate != nil {
		packet.LawfulStartDate = *t.LawfulStartDate
	}
	packet.Text = renderPacket(packet)
	return packet
}

func renderPacket(p domain.Packet) string {
	var b strings.Builder
	line := func(label string, value any) {
		fmt.Fprintf(&b, "%-22s %v\n", label+":", value)
	}
	f := p.Fields
	fmt.Fprintf(&b, "EXCAVATION NOTICE %s\n", p.TicketID)
	line("Ticket type", f.EffectiveType())
	if f.ReferenceTicket != nil {
		line("Original ticket", *f.ReferenceTicket)
	}
	line("Excavator", deref(f.ExcavatorCompany))
	line("Contact", deref(f.CallerName))
	line("Phone", deref(f.CallerPhone))
	if f.CallerEmail != nil {
		line("Email", *f.CallerEmail)
	}
	line("Type of work", deref(f.WorkDescription))
	line("Work done for", deref(f.WorkDoneFor))
	line("Address", deref(f.StreetAddress))
	if f.CrossStreet != nil {
		line("Cross street", *f.CrossStreet)
	}
	line("City / County", deref(f.City)+" / "+deref(f.County))
	if f.Latitude != nil && f.Longitude != nil {
		line("GPS", fmt.Sprintf("%.6f, %.6f", *f.Latitude, *f.Longitude))
	}
	if f.WorkDurationDays != nil {
		line("Duration (days)", *f.WorkDurationDays)
	}
	line("Trenchless", yesNo(f.Trenchless))
	line("Explosives", yesNo(f.Explosives))
	if f.Geometry != nil {
		line("Dig area", fmt.Sprintf("%s (%d points) %s", f.Geometry.Kind, len(f.Geometry.Coordinates), f.Geometry.Description))
	}
	if f.MarkingInstructions != nil {
		line("Marking instructions", *f.MarkingInstructions)
	}
	line("Lawful start", compliance.FormatDate(p.LawfulStartDate))
	if len(p.ExpectedResponders) > 0 {
		codes := make([]string, len(p.ExpectedResponders))
		for i, r := range p.ExpectedResponders {
			codes[i] = r.Code
		}
		line("Members notified", strings.Join(codes, ", "))
	}
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b *bool) string {
	switch {
	case b == nil:
		return "unknown"
	case *b:
		return "yes"
	}
	return "no"
}
