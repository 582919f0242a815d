package domain

import "time"

// ResponseStatus is a utility member's positive response code.
type ResponseStatus string

const (
	ResponseClear           ResponseStatus = "CLEAR"
	ResponseMarked          ResponseStatus = "MARKED"
	ResponsePartiallyMarked ResponseStatus = "PARTIALLY_MARKED"
	ResponseConflict        ResponseStatus = "CONFLICT"
)

// Valid reports whether s is a known response code.
func (s ResponseStatus) Valid() bool {
	switch s {
	case ResponseClear, ResponseMarked, ResponsePartiallyMarked, ResponseConflict:
		return true
	}
	return false
}

// ClearanceState aggregates responses across expected responders.
type ClearanceState string

const (
	ClearanceNone     ClearanceState = "none"
	ClearancePartial  ClearanceState = "partial"
	ClearanceComplete ClearanceState = "complete"
)

// ExpectedResponder is a utility anticipated to clear or mark facilities.
type ExpectedResponder struct {
	Code       string    `json:"code"`
	Name       string    `json:"name,omitempty"`
	Unexpected bool      `json:"unexpected"`
	AddedAt    time.Time `json:"added_at"`
}

// Response is the latest clearance response recorded for one utility code.
type Response struct {
	UtilityCode string         `json:"utility_code"`
	Status      ResponseStatus `json:"status"`
	Comment     string         `json:"comment,omitempty"`
	Facilities  []string       `json:"facilities,omitempty"`
	Respondent  string         `json:"respondent,omitempty"`
	RecordedAt  time.Time      `json:"recorded_at"`
}

// ResponseSummary is the snapshot view of response tracking.
type ResponseSummary struct {
	State     ClearanceState `json:"state"`
	Expected  int            `json:"expected"`
	Responded int            `json:"responded"`
	Pending   []string       `json:"pending"`
}
