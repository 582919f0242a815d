package validation

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/spec-kit/dig-ticket-service/internal/compliance"
	"github.com/spec-kit/dig-ticket-service/internal/domain"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int { return &i }
func ptrF(f float64) *float64 { return &f }
func typePtr(t domain.TicketType) *domain.TicketType { return &t }

func completeFields() domain.Fields {
	return domain.Fields{
		ExcavatorCompany: strPtr("Hill Country Fence Co"),
		CallerName:       strPtr("Dana Ruiz"),
		CallerPhone:      strPtr("(512) 555-0143"),
		WorkDescription:  strPtr("installing fence posts along rear lot line"),
		WorkDoneFor:      strPtr("homeowner"),
		StreetAddress:    strPtr("1200 Barton Springs Rd"),
		City:             strPtr("Austin"),
		County:           strPtr("Travis"),
		WorkDurationDays: intPtr(2),
		Trenchless:       boolPtr(false),
		Explosives:       boolPtr(false),
	}
}

func newValidator() *Validator {
	return NewValidator(compliance.DefaultCalendar())
}

func gapFields(gaps []domain.Gap) []domain.FieldName {
	out := []domain.FieldName{}
	for _, g := range gaps {
		out = append(out, g.Field)
	}
	return out
}

func TestCompleteFieldsHaveNoRequiredGaps(t *testing.T) {
	gaps := newValidator().Validate(Input{Fields: completeFields()})
	if req := domain.RequiredGaps(gaps); len(req) != 0 {
		t.Fatalf("required gaps = %+v", req)
	}
	want := []domain.FieldName{
		domain.FieldCallerEmail,
		domain.FieldCrossStreet,
		domain.FieldGPS,
		domain.FieldGeometry,
		domain.FieldMarkingInstructions,
		domain.FieldRequestedStartDate,
	}
	if got := gapFields(gaps); !reflect.DeepEqual(got, want) {
		t.Fatalf("recommended gaps = %v, want %v", got, want)
	}
	for _, g := range gaps {
		if g.Severity != domain.GapRecommended || g.Kind != domain.GapMissing || g.Prompt == "" {
			t.Fatalf("unexpected gap %+v", g)
		}
	}
}

func TestEmptyFieldsOrderIsStable(t *testing.T) {
	v := newValidator()
	first := v.Validate(Input{})
	for i := 0; i < 5; i++ {
		if again := v.Validate(Input{}); !reflect.DeepEqual(first, again) {
			t.Fatalf("gap list changed between calls")
		}
	}
	want := []domain.FieldName{
		domain.FieldExcavatorCompany,
		domain.FieldCallerName,
		domain.FieldCallerPhone,
		domain.FieldWorkDescription,
		domain.FieldWorkDoneFor,
		domain.FieldStreetAddress,
		domain.FieldCity,
		domain.FieldCounty,
		domain.FieldWorkDurationDays,
		domain.FieldTrenchless,
		domain.FieldExplosives,
	}
	if got := gapFields(domain.RequiredGaps(first)); !reflect.DeepEqual(got, want) {
		t.Fatalf("required gaps = %v, want %v", got, want)
	}
}

func TestInvalidValues(t *testing.T) {
	lawful := time.Date(2026, time.October, 16, 0, 0, 0, 0, compliance.DefaultCalendar().Location())
	tests := []struct {
		name   string
		mutate func(*domain.Fields)
		field  domain.FieldName
	}{
		{"malformed phone", func(f *domain.Fields) { f.CallerPhone = strPtr("555-01") }, domain.FieldCallerPhone},
		{"phone with bad area code", func(f *domain.Fields) { f.CallerPhone = strPtr("012-555-0143") }, domain.FieldCallerPhone},
		{"malformed email", func(f *domain.Fields) { f.CallerEmail = strPtr("dana.example.com") }, domain.FieldCallerEmail},
		{"vague work description", func(f *domain.Fields) { f.WorkDescription = strPtr("digging") }, domain.FieldWorkDescription},
		{"half gps", func(f *domain.Fields) { f.Latitude = ptrF(30.26) }, domain.FieldGPS},
		{"gps outside texas", func(f *domain.Fields) { f.Latitude, f.Longitude = ptrF(40.7), ptrF(-74.0) }, domain.FieldGPS},
		{"zero duration", func(f *domain.Fields) { f.WorkDurationDays = intPtr(0) }, domain.FieldWorkDurationDays},
		{"unknown geometry", func(f *domain.Fields) { f.Geometry = &domain.Geometry{Kind: "circle"} }, domain.FieldGeometry},
		{"short polygon", func(f *domain.Fields) {
			f.Geometry = &domain.Geometry{Kind: "polygon", Coordinates: [][2]float64{{30.1, -97.7}, {30.2, -97.7}}}
		}, domain.FieldGeometry},
		{"bad requested date", func(f *domain.Fields) { f.RequestedStartDate = strPtr("10/20/2026") }, domain.FieldRequestedStartDate},
		{"requested before lawful", func(f *domain.Fields) { f.RequestedStartDate = strPtr("2026-10-15") }, domain.FieldRequestedStartDate},
		{"unknown ticket type", func(f *domain.Fields) { f.TicketType = typePtr("emergency") }, domain.FieldTicketType},
	}
	v := newValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := completeFields()
			tt.mutate(&fields)
			req := domain.RequiredGaps(v.Validate(Input{Fields: fields, LawfulStart: &lawful}))
			if len(req) != 1 {
				t.Fatalf("required gaps = %+v, want exactly one", req)
			}
			if req[0].Field != tt.field || req[0].Kind != domain.GapInvalid {
				t.Fatalf("gap = %+v, want invalid %s", req[0], tt.field)
			}
		})
	}
}

func TestEmptyStringIsMissingNotInvalid(t *testing.T) {
	fields := completeFields()
	fields.CallerPhone = strPtr("")
	req := domain.RequiredGaps(newValidator().Validate(Input{Fields: fields}))
	if len(req) != 1 || req[0].Field != domain.FieldCallerPhone || req[0].Kind != domain.GapMissing {
		t.Fatalf("gaps = %+v, want missing caller_phone", req)
	}
}

func TestRequestedStartOnLawfulDateIsAccepted(t *testing.T) {
	cal := compliance.DefaultCalendar()
	lawful := time.Date(2026, time.October, 16, 0, 0, 0, 0, cal.Location())
	fields := completeFields()
	fields.RequestedStartDate = strPtr("2026-10-16")
	for _, g := range newValidator().Validate(Input{Fields: fields, LawfulStart: &lawful}) {
		if g.Field == domain.FieldRequestedStartDate {
			t.Fatalf("unexpected requested_start_date gap %+v", g)
		}
	}
}

func TestUpdateTicketRequiresReference(t *testing.T) {
	v := newValidator()
	fields := completeFields()
	fields.TicketType = typePtr(domain.TicketTypeUpdate)

	req := domain.RequiredGaps(v.Validate(Input{Fields: fields}))
	if len(req) != 1 || req[0].Field != domain.FieldReferenceTicket || req[0].Kind != domain.GapMissing {
		t.Fatalf("gaps = %+v, want missing reference ticket", req)
	}

	fields.ReferenceTicket = strPtr("24612")
	req = domain.RequiredGaps(v.Validate(Input{Fields: fields}))
	if len(req) != 1 || req[0].Kind != domain.GapInvalid {
		t.Fatalf("gaps = %+v, want invalid reference ticket", req)
	}

	fields.ReferenceTicket = strPtr("2461234567")
	if req := domain.RequiredGaps(v.Validate(Input{Fields: fields})); len(req) != 0 {
		t.Fatalf("gaps = %+v, want none", req)
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := map[string]struct {
		want string
		ok   bool
	}{
		"(512) 555-0143":  {"5125550143", true},
		"+1 512.555.0143": {"5125550143", true},
		"5125550143":      {"5125550143", true},
		"512-555-014":     {"", false},
		"112-555-0143":    {"", false},
		"512-155-0143":    {"", false},
	}
	for raw, tt := range tests {
		got, ok := NormalizePhone(raw)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizePhone(%q) = %q, %v; want %q, %v", raw, got, ok, tt.want, tt.ok)
		}
	}
}

func mustFingerprint(t *testing.T, in Input) string {
	t.Helper()
	key, err := Fingerprint(in)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	return key
}

func TestFingerprint(t *testing.T) {
	a := completeFields()
	b := completeFields()
	if mustFingerprint(t, Input{Fields: a}) != mustFingerprint(t, Input{Fields: b}) {
		t.Fatalf("equal inputs produced different fingerprints")
	}
	b.City = strPtr("Round Rock")
	if mustFingerprint(t, Input{Fields: a}) == mustFingerprint(t, Input{Fields: b}) {
		t.Fatalf("different inputs produced equal fingerprints")
	}
	lawful := time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC)
	if mustFingerprint(t, Input{Fields: a}) == mustFingerprint(t, Input{Fields: a, LawfulStart: &lawful}) {
		t.Fatalf("lawful start not part of fingerprint")
	}
}

func TestFingerprintRejectsUnencodableInput(t *testing.T) {
	f := completeFields()
	f.Latitude, f.Longitude = ptrF(math.NaN()), ptrF(-97.74)
	key, err := Fingerprint(Input{Fields: f})
	if err == nil {
		t.Fatalf("Fingerprint(NaN) = %q, want error", key)
	}
}

type memoryCache struct {
	entries map[string][]domain.Gap
	gets    int
	failGet bool
}

func (m *memoryCache) Get(_ context.Context, key string) ([]domain.Gap, bool, error) {
	m.gets++
	if m.failGet {
		return nil, false, errors.New("cache down")
	}
	gaps, ok := m.entries[key]
	return gaps, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, gaps []domain.Gap) error {
	m.entries[key] = gaps
	return nil
}

func TestCachedValidator(t *testing.T) {
	cache := &memoryCache{entries: map[string][]domain.Gap{}}
	cv := NewCachedValidator(newValidator(), cache, nil)
	in := Input{Fields: completeFields()}

	first := cv.Evaluate(context.Background(), in)
	if len(cache.entries) != 1 {
		t.Fatalf("cache entries = %d, want 1", len(cache.entries))
	}
	sentinel := []domain.Gap{{Field: "sentinel"}}
	cache.entries[mustFingerprint(t, in)] = sentinel
	if got := cv.Evaluate(context.Background(), in); !reflect.DeepEqual(got, sentinel) {
		t.Fatalf("cache hit not used")
	}

	cache.failGet = true
	if got := cv.Evaluate(context.Background(), in); !reflect.DeepEqual(got, first) {
		t.Fatalf("cache failure should fall back to direct evaluation")
	}
}

func TestCachedValidatorBypassesCacheForUnencodableInput(t *testing.T) {
	cache := &memoryCache{entries: map[string][]domain.Gap{}}
	cv := NewCachedValidator(newValidator(), cache, nil)
	f := completeFields()
	f.Latitude, f.Longitude = ptrF(math.NaN()), ptrF(-97.74)

	a := cv.Evaluate(context.Background(), Input{Fields: f})
	f.Latitude = ptrF(math.Inf(1))
	b := cv.Evaluate(context.Background(), Input{Fields: f})
	if cache.gets != 0 || len(cache.entries) != 0 {
		t.Fatalf("cache touched: gets=%d entries=%d", cache.gets, len(cache.entries))
	}
	for _, gaps := range [][]domain.Gap{a, b} {
		if !hasGap(gaps, domain.FieldGPS, domain.GapInvalid) {
			t.Fatalf("gaps = %+v, want invalid gps", gaps)
		}
	}
}

func hasGap(gaps []domain.Gap, field domain.FieldName, kind domain.GapKind) bool {
	for _, g := range gaps {
		if g.Field == field && g.Kind == kind {
			return true
		}
	}
	return false
}
