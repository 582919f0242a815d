package domain

import (
	"reflect"
	"testing"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int { return &i }

func TestMergeOverwritesAndReportsChanges(t *testing.T) {
	var f Fields
	changed := f.Merge(FieldPatch{Set: Fields{CallerName: strPtr(" Dana Ruiz "), Trenchless: boolPtr(false)}})
	if want := []FieldName{FieldCallerName, FieldTrenchless}; !reflect.DeepEqual(changed, want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	if *f.CallerName != "Dana Ruiz" {
		t.Fatalf("caller name not trimmed: %q", *f.CallerName)
	}
	if f.Trenchless == nil || *f.Trenchless {
		t.Fatalf("trenchless = %v, want explicit false", f.Trenchless)
	}

	changed = f.Merge(FieldPatch{Set: Fields{CallerName: strPtr("Sam Ortiz")}})
	if !reflect.DeepEqual(changed, []FieldName{FieldCallerName}) || *f.CallerName != "Sam Ortiz" {
		t.Fatalf("last write should win, got %v %q", changed, *f.CallerName)
	}
}

func TestMergeSameValueIsNoop(t *testing.T) {
	patch := FieldPatch{Set: Fields{
		City:             strPtr("Austin"),
		WorkDurationDays: intPtr(3),
		Geometry:         &Geometry{Kind: "Polygon", Coordinates: [][2]float64{{30.1, -97.7}, {30.2, -97.7}, {30.2, -97.8}}},
	}}
	var f Fields
	if changed := f.Merge(patch); len(changed) != 3 {
		t.Fatalf("first merge changed = %v", changed)
	}
	if changed := f.Merge(patch); len(changed) != 0 {
		t.Fatalf("second identical merge changed = %v, want none", changed)
	}
}

func TestMergeClearSemantics(t *testing.T) {
	f := Fields{City: strPtr("Austin"), Latitude: new(float64), Longitude: new(float64), County: strPtr("Travis")}

	// Omitted keys are untouched.
	if changed := f.Merge(FieldPatch{}); len(changed) != 0 {
		t.Fatalf("empty patch changed = %v", changed)
	}
	if f.City == nil {
		t.Fatalf("city cleared by omission")
	}

	// Explicit empty string clears.
	changed := f.Merge(FieldPatch{Set: Fields{City: strPtr("  ")}})
	if !reflect.DeepEqual(changed, []FieldName{FieldCity}) || f.City != nil {
		t.Fatalf("blank string should clear city, changed=%v city=%v", changed, f.City)
	}

	// Explicit clear of a non-string field, and the gps alias.
	changed = f.Merge(FieldPatch{Clear: []FieldName{FieldGPS, FieldCounty}})
	if want := []FieldName{FieldCounty, FieldLatitude, FieldLongitude}; !reflect.DeepEqual(changed, want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	if f.Latitude != nil || f.Longitude != nil || f.County != nil {
		t.Fatalf("fields not cleared: %+v", f)
	}
}

func TestMergeTicketTypeNormalized(t *testing.T) {
	var f Fields
	upd := TicketType(" UPDATE ")
	f.Merge(FieldPatch{Set: Fields{TicketType: &upd}})
	if f.EffectiveType() != TicketTypeUpdate {
		t.Fatalf("EffectiveType() = %q", f.EffectiveType())
	}
	blank := TicketType("")
	f.Merge(FieldPatch{Set: Fields{TicketType: &blank}})
	if f.TicketType != nil || f.EffectiveType() != TicketTypeNormal {
		t.Fatalf("blank type should clear back to normal, got %v", f.TicketType)
	}
}

func TestTicketCloneIsDeep(t *testing.T) {
	orig := &Ticket{
		ID:        "t-1",
		Fields:    Fields{City: strPtr("Austin"), Geometry: &Geometry{Kind: "point", Coordinates: [][2]float64{{1, 2}}}},
		Responses: []Response{{UtilityCode: "ATT", Facilities: []string{"fiber"}}},
		Audit:     []AuditEntry{{From: TicketStatusDraft, To: TicketStatusValidated}},
	}
	c := orig.Clone()
	*c.Fields.City = "Dallas"
	c.Fields.Geometry.Coordinates[0][0] = 9
	c.Responses[0].Facilities[0] = "gas"
	c.Audit = append(c.Audit, AuditEntry{})

	if *orig.Fields.City != "Austin" || orig.Fields.Geometry.Coordinates[0][0] != 1 {
		t.Fatalf("fields aliased: %+v", orig.Fields)
	}
	if orig.Responses[0].Facilities[0] != "fiber" || len(orig.Audit) != 1 {
		t.Fatalf("collections aliased")
	}
}

func TestStatusOrdering(t *testing.T) {
	if TicketStatusValidated.FieldsLocked() {
		t.Fatalf("validated must not lock fields")
	}
	for _, s := range []TicketStatus{TicketStatusConfirmed, TicketStatusSubmitted, TicketStatusReadyToDig, TicketStatusCancelled} {
		if !s.FieldsLocked() {
			t.Fatalf("%s should lock fields", s)
		}
	}
	if !TicketStatusSubmitted.AtMost(TicketStatusInProgress) || TicketStatusResponsesIn.AtMost(TicketStatusInProgress) {
		t.Fatalf("AtMost ordering wrong")
	}
	if _, ok := ParseTicketStatus("BOGUS"); ok {
		t.Fatalf("unknown status parsed")
	}
}
