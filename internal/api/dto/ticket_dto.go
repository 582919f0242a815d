package dto

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/spec-kit/dig-ticket-service/internal/domain"
	apperrors "github.com/spec-kit/dig-ticket-service/pkg/util/errorutil"
)

// ResponderRequest names an expected utility member.
type ResponderRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	SessionID          string             `json:"session_id"`
	Fields             json.RawMessage    `json:"fields"`
	ExpectedResponders []ResponderRequest `json:"expected_responders"`
	Notes              []string           `json:"notes"`
}

// UpdateTicketRequest payload. Keys omitted from fields are left alone,
// explicit nulls clear.
type UpdateTicketRequest struct {
	Fields             json.RawMessage    `json:"fields"`
	ExpectedResponders []ResponderRequest `json:"expected_responders"`
	Notes              []string           `json:"notes"`
}

// RecordResponseRequest payload.
type RecordResponseRequest struct {
	UtilityCode string                `json:"utility_code"`
	UtilityName string                `json:"utility_name"`
	Status      domain.ResponseStatus `json:"status"`
	Comment     string                `json:"comment"`
	Facilities  []string              `json:"facilities"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Status domain.TicketStatus `json:"status"`
	Reason string              `json:"reason"`
}

// TokenRequest payload.
type TokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// TokenResponse is returned by the token endpoint.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Role        string    `json:"role"`
}

// TransitionResponse describes one status change made by a call.
type TransitionResponse struct {
	From   domain.TicketStatus `json:"from"`
	To     domain.TicketStatus `json:"to"`
	Actor  string              `json:"actor"`
	Reason string              `json:"reason,omitempty"`
}

// SnapshotResponse is the caller-facing ticket view.
type SnapshotResponse struct {
	Ticket          *domain.Ticket         `json:"ticket"`
	Gaps            []domain.Gap           `json:"gaps"`
	ReadyToConfirm  bool                   `json:"ready_to_confirm"`
	LawfulStartDate string                 `json:"lawful_start_date,omitempty"`
	ExpiresDate     string                 `json:"expires_date,omitempty"`
	Responses       domain.ResponseSummary `json:"responses"`
	Transitions     []TransitionResponse   `json:"transitions"`
	Warnings        []string               `json:"warnings"`
}

var patchableFields = map[string]domain.FieldName{}

func init() {
	for _, f := range []domain.FieldName{
		domain.FieldTicketType, domain.FieldExcavatorCompany, domain.FieldExcavatorAddress,
		domain.FieldCallerName, domain.FieldCallerPhone, domain.FieldCallerEmail,
		domain.FieldWorkDescription, domain.FieldWorkDoneFor, domain.FieldStreetAddress,
		domain.FieldCrossStreet, domain.FieldCity, domain.FieldCounty,
		domain.FieldLatitude, domain.FieldLongitude, domain.FieldWorkDurationDays,
		domain.FieldTrenchless, domain.FieldExplosives, domain.FieldGeometry,
		domain.FieldMarkingInstructions, domain.FieldRequestedStartDate, domain.FieldReferenceTicket,
	} {
		patchableFields[string(f)] = f
	}
	// "gps": null clears both coordinates.
	patchableFields[string(domain.FieldGPS)] = domain.FieldGPS
}

var nullLiteral = []byte("null")

// ParseFieldPatch decodes a JSON fields object into a patch. Unknown keys
// and mistyped values are rejected; an absent or null object is an empty patch.
func ParseFieldPatch(raw json.RawMessage) (domain.FieldPatch, error) {
	var patch domain.FieldPatch
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, nullLiteral) {
		return patch, nil
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return patch, apperrors.NewValidationError("fields must be a JSON object", nil)
	}

	var unknown []string
	values := make(map[string]json.RawMessage, len(entries))
	for key, value := range entries {
		name, ok := patchableFields[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		if bytes.Equal(bytes.TrimSpace(value), nullLiteral) {
			patch.Clear = append(patch.Clear, name)
			continue
		}
		if name == domain.FieldGPS {
			unknown = append(unknown, key)
			continue
		}
		values[key] = value
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return domain.FieldPatch{}, apperrors.NewValidationError("unknown fields", map[string]any{"fields": unknown})
	}
	sort.Slice(patch.Clear, func(i, j int) bool { return patch.Clear[i] < patch.Clear[j] })

	if len(values) > 0 {
		encoded, err := json.Marshal(values)
		if err != nil {
			return domain.FieldPatch{}, apperrors.NewValidationError("invalid fields", nil)
		}
		if err := json.Unmarshal(encoded, &patch.Set); err != nil {
			return domain.FieldPatch{}, apperrors.NewValidationError("invalid field value", map[string]any{"reason": err.Error()})
		}
	}
	return patch, nil
}
