package domain

import "strings"

// TicketType selects the rule table applied to a ticket.
type TicketType string

const (
	TicketTypeNormal TicketType = "normal"
	TicketTypeUpdate TicketType = "update"
)

// FieldName identifies a ticket field in gaps, clears and lock errors.
type FieldName string

const (
	FieldTicketType          FieldName = "ticket_type"
	FieldExcavatorCompany    FieldName = "excavator_company"
	FieldExcavatorAddress    FieldName = "excavator_address"
	FieldCallerName          FieldName = "caller_name"
	FieldCallerPhone         FieldName = "caller_phone"
	FieldCallerEmail         FieldName = "caller_email"
	FieldWorkDescription     FieldName = "work_description"
	FieldWorkDoneFor         FieldName = "work_done_for"
	FieldStreetAddress       FieldName = "street_address"
	FieldCrossStreet         FieldName = "cross_street"
	FieldCity                FieldName = "city"
	FieldCounty              FieldName = "county"
	FieldLatitude            FieldName = "latitude"
	FieldLongitude           FieldName = "longitude"
	FieldWorkDurationDays    FieldName = "work_duration_days"
	FieldTrenchless          FieldName = "trenchless"
	FieldExplosives          FieldName = "explosives"
	FieldGeometry            FieldName = "geometry"
	FieldMarkingInstructions FieldName = "marking_instructions"
	FieldRequestedStartDate  FieldName = "requested_start_date"
	FieldReferenceTicket     FieldName = "reference_ticket_number"

	// FieldGPS names the latitude/longitude pair in gaps.
	FieldGPS FieldName = "gps"
)

// Fields is the progressively filled ticket field set. Nil means unset.
type Fields struct {
	TicketType          *TicketType `json:"ticket_type,omitempty"`
	ExcavatorCompany    *string     `json:"excavator_company,omitempty"`
	ExcavatorAddress    *string     `json:"excavator_address,omitempty"`
	CallerName          *string     `json:"caller_name,omitempty"`
	CallerPhone         *string     `json:"caller_phone,omitempty"`
	CallerEmail         *string     `json:"caller_email,omitempty"`
	WorkDescription     *string     `json:"work_description,omitempty"`
	WorkDoneFor         *string     `json:"work_done_for,omitempty"`
	StreetAddress       *string     `json:"street_address,omitempty"`
	CrossStreet         *string     `json:"cross_street,omitempty"`
	City                *string     `json:"city,omitempty"`
	County              *string     `json:"county,omitempty"`
	Latitude            *float64    `json:"latitude,omitempty"`
	Longitude           *float64    `json:"longitude,omitempty"`
	WorkDurationDays    *int        `json:"work_duration_days,omitempty"`
	Trenchless          *bool       `json:"trenchless,omitempty"`
	Explosives          *bool       `json:"explosives,omitempty"`
	Geometry            *Geometry   `json:"geometry,omitempty"`
	MarkingInstructions *string     `json:"marking_instructions,omitempty"`
	RequestedStartDate  *string     `json:"requested_start_date,omitempty"`
	ReferenceTicket     *string     `json:"reference_ticket_number,omitempty"`
}

// Geometry describes the dig area.
type Geometry struct {
	Kind        string       `json:"kind"`
	Description string       `json:"description,omitempty"`
	Coordinates [][2]float64 `json:"coordinates,omitempty"`
}

// Equal compares two geometries by value.
func (g *Geometry) Equal(other *Geometry) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.Kind != other.Kind || g.Description != other.Description || len(g.Coordinates) != len(other.Coordinates) {
		return false
	}
	for i := range g.Coordinates {
		if g.Coordinates[i] != other.Coordinates[i] {
			return false
		}
	}
	return true
}

// FieldPatch is a partial update. Non-nil values in Set overwrite; a
// blank string in Set or a name in Clear resets the field.
type FieldPatch struct {
	Set   Fields
	Clear []FieldName
}

// EffectiveType returns the ticket type, defaulting to normal.
func (f *Fields) EffectiveType() TicketType {
	if f.TicketType == nil {
		return TicketTypeNormal
	}
	return *f.TicketType
}

// Clone returns a deep copy.
func (f Fields) Clone() Fields {
	out := Fields{
		TicketType:          clonePtr(f.TicketType),
		ExcavatorCompany:    clonePtr(f.ExcavatorCompany),
		ExcavatorAddress:    clonePtr(f.ExcavatorAddress),
		CallerName:          clonePtr(f.CallerName),
		CallerPhone:         clonePtr(f.CallerPhone),
		CallerEmail:         clonePtr(f.CallerEmail),
		WorkDescription:     clonePtr(f.WorkDescription),
		WorkDoneFor:         clonePtr(f.WorkDoneFor),
		StreetAddress:       clonePtr(f.StreetAddress),
		CrossStreet:         clonePtr(f.CrossStreet),
		City:                clonePtr(f.City),
		County:              clonePtr(f.County),
		Latitude:            clonePtr(f.Latitude),
		Longitude:           clonePtr(f.Longitude),
		WorkDurationDays:    clonePtr(f.WorkDurationDays),
		Trenchless:          clonePtr(f.Trenchless),
		Explosives:          clonePtr(f.Explosives),
		MarkingInstructions: clonePtr(f.MarkingInstructions),
		RequestedStartDate:  clonePtr(f.RequestedStartDate),
		ReferenceTicket:     clonePtr(f.ReferenceTicket),
	}
	if f.Geometry != nil {
		g := *f.Geometry
		g.Coordinates = cloneSlice(f.Geometry.Coordinates)
		out.Geometry = &g
	}
	return out
}

// Merge applies the patch field by field (last write wins) and returns
// the names of fields whose value actually changed, in declaration order.
func (f *Fields) Merge(patch FieldPatch) []FieldName {
	clear := make(map[FieldName]bool, len(patch.Clear))
	for _, name := range patch.Clear {
		clear[name] = true
	}
	set := patch.Set
	var changed []FieldName
	track := func(name FieldName, didChange bool) {
		if didChange {
			changed = append(changed, name)
		}
	}

	track(FieldTicketType, mergeType(&f.TicketType, set.TicketType, clear[FieldTicketType]))
	track(FieldExcavatorCompany, mergeString(&f.ExcavatorCompany, set.ExcavatorCompany, clear[FieldExcavatorCompany]))
	track(FieldExcavatorAddress, mergeString(&f.ExcavatorAddress, set.ExcavatorAddress, clear[FieldExcavatorAddress]))
	track(FieldCallerName, mergeString(&f.CallerName, set.CallerName, clear[FieldCallerName]))
	track(FieldCallerPhone, mergeString(&f.CallerPhone, set.CallerPhone, clear[FieldCallerPhone]))
	track(FieldCallerEmail, mergeString(&f.CallerEmail, set.CallerEmail, clear[FieldCallerEmail]))
	track(FieldWorkDescription, mergeString(&f.WorkDescription, set.WorkDescription, clear[FieldWorkDescription]))
	track(FieldWorkDoneFor, mergeString(&f.WorkDoneFor, set.WorkDoneFor, clear[FieldWorkDoneFor]))
	track(FieldStreetAddress, mergeString(&f.StreetAddress, set.StreetAddress, clear[FieldStreetAddress]))
	track(FieldCrossStreet, mergeString(&f.CrossStreet, set.CrossStreet, clear[FieldCrossStreet]))
	track(FieldCity, mergeString(&f.City, set.City, clear[FieldCity]))
	track(FieldCounty, mergeString(&f.County, set.County, clear[FieldCounty]))
	track(FieldLatitude, mergeValue(&f.Latitude, set.Latitude, clear[FieldLatitude] || clear[FieldGPS]))
	track(FieldLongitude, mergeValue(&f.Longitude, set.Longitude, clear[FieldLongitude] || clear[FieldGPS]))
	track(FieldWorkDurationDays, mergeValue(&f.WorkDurationDays, set.WorkDurationDays, clear[FieldWorkDurationDays]))
	track(FieldTrenchless, mergeValue(&f.Trenchless, set.Trenchless, clear[FieldTrenchless]))
	track(FieldExplosives, mergeValue(&f.Explosives, set.Explosives, clear[FieldExplosives]))
	track(FieldGeometry, mergeGeometry(&f.Geometry, set.Geometry, clear[FieldGeometry]))
	track(FieldMarkingInstructions, mergeString(&f.MarkingInstructions, set.MarkingInstructions, clear[FieldMarkingInstructions]))
	track(FieldRequestedStartDate, mergeString(&f.RequestedStartDate, set.RequestedStartDate, clear[FieldRequestedStartDate]))
	track(FieldReferenceTicket, mergeString(&f.ReferenceTicket, set.ReferenceTicket, clear[FieldReferenceTicket]))
	return changed
}

func mergeType(dst **TicketType, src *TicketType, clear bool) bool {
	if src == nil {
		return mergeValue(dst, nil, clear)
	}
	v := TicketType(strings.ToLower(strings.TrimSpace(string(*src))))
	if v == "" {
		return mergeValue(dst, nil, true)
	}
	return mergeValue(dst, &v, clear)
}

func mergeString(dst **string, src *string, clear bool) bool {
	if !clear && src == nil {
		return false
	}
	if !clear {
		v := strings.TrimSpace(*src)
		if v != "" {
			if *dst != nil && **dst == v {
				return false
			}
			*dst = &v
			return true
		}
	}
	if *dst == nil {
		return false
	}
	*dst = nil
	return true
}

func mergeValue[T comparable](dst **T, src *T, clear bool) bool {
	if clear {
		if *dst == nil {
			return false
		}
		*dst = nil
		return true
	}
	if src == nil {
		return false
	}
	if *dst != nil && **dst == *src {
		return false
	}
	v := *src
	*dst = &v
	return true
}

func mergeGeometry(dst **Geometry, src *Geometry, clear bool) bool {
	if clear {
		if *dst == nil {
			return false
		}
		*dst = nil
		return true
	}
	if src == nil {
		return false
	}
	g := *src
	g.Kind = strings.ToLower(strings.TrimSpace(g.Kind))
	g.Description = strings.TrimSpace(g.Description)
	g.Coordinates = append([][2]float64(nil), src.Coordinates...)
	if (*dst).Equal(&g) {
		return false
	}
	*dst = &g
	return true
}
