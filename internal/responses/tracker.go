// Package responses keeps per-utility clearance responses for a ticket
// and derives the aggregate clearance state. It never changes ticket
// status; callers feed the returned state to the lifecycle machine.
package responses

import (
	"strings"

	"github.com/spec-kit/dig-ticket-service/internal/clock"
	"github.com/spec-kit/dig-ticket-service/internal/domain"
	apperrors "github.com/spec-kit/dig-ticket-service/pkg/util/errorutil"
)

// Input is one utility member's response.
type Input struct {
	UtilityCode string
	UtilityName string
	Status      domain.ResponseStatus
	Comment     string
	Facilities  []string
	Respondent  string
}

// Result describes the outcome of recording a response.
type Result struct {
	State      domain.ClearanceState
	Unexpected bool
	Replaced   bool
}

// Tracker records responses on the ticket's response sub-collection.
type Tracker struct {
	clock clock.Clock
}

// NewTracker builds a tracker stamping responses with c.
func NewTracker(c clock.Clock) *Tracker {
	return &Tracker{clock: c}
}

// NormalizeCode canonicalizes a utility member code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Record stores the response for in.UtilityCode, replacing any earlier
// one, and returns the recomputed aggregate state.
func (t *Tracker) Record(ticket *domain.Ticket, in Input) (Result, error) {
	code := NormalizeCode(in.UtilityCode)
	if code == "" {
		return Result{}, apperrors.NewValidationError("utility_code required", nil)
	}
	status := domain.ResponseStatus(strings.ToUpper(strings.TrimSpace(string(in.Status))))
	if !status.Valid() {
		return Result{}, apperrors.NewValidationError("unknown response status", map[string]any{"status": in.Status})
	}

	now := t.clock.Now()
	var result Result
	if !isExpected(ticket, code) {
		ticket.ExpectedResponders = append(ticket.ExpectedResponders, domain.ExpectedResponder{
			Code:       code,
			Name:       strings.TrimSpace(in.UtilityName),
			Unexpected: true,
			AddedAt:    now,
		})
		result.Unexpected = true
	}

	response := domain.Response{
		UtilityCode: code,
		Status:      status,
		Comment:     strings.TrimSpace(in.Comment),
		Facilities:  append([]string(nil), in.Facilities...),
		Respondent:  strings.TrimSpace(in.Respondent),
		RecordedAt:  now,
	}
	for i := range ticket.Responses {
		if ticket.Responses[i].UtilityCode == code {
			ticket.Responses[i] = response
			result.Replaced = true
			break
		}
	}
	if !result.Replaced {
		ticket.Responses = append(ticket.Responses, response)
	}

	result.State = Summarize(ticket).State
	return result, nil
}

// AddExpected appends an expected responder if its code is new. Returns
// whether the list grew.
func (t *Tracker) AddExpected(ticket *domain.Ticket, code, name string) bool {
	code = NormalizeCode(code)
	if code == "" || isExpected(ticket, code) {
		return false
	}
	ticket.ExpectedResponders = append(ticket.ExpectedResponders, domain.ExpectedResponder{
		Code:    code,
		Name:    strings.TrimSpace(name),
		AddedAt: t.clock.Now(),
	})
	return true
}

// Summarize derives the aggregate clearance state.
func Summarize(ticket *domain.Ticket) domain.ResponseSummary {
	responded := make(map[string]bool, len(ticket.Responses))
	for _, r := range ticket.Responses {
		responded[r.UtilityCode] = true
	}
	summary := domain.ResponseSummary{Expected: len(ticket.ExpectedResponders), Pending: []string{}}
	for _, e := range ticket.ExpectedResponders {
		if responded[e.Code] {
			summary.Responded++
		} else {
			summary.Pending = append(summary.Pending, e.Code)
		}
	}
	switch {
	case summary.Responded == 0:
		summary.State = domain.ClearanceNone
	case len(summary.Pending) == 0:
		summary.State = domain.ClearanceComplete
	default:
		summary.State = domain.ClearancePartial
	}
	return summary
}

func isExpected(ticket *domain.Ticket, code string) bool {
	for _, e := range ticket.ExpectedResponders {
		if e.Code == code {
			return true
		}
	}
	return false
}
