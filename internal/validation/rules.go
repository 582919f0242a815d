package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/spec-kit/dig-ticket-service/internal/compliance"
	"github.com/spec-kit/dig-ticket-service/internal/domain"
)

// RulesVersion changes whenever a rule table changes, invalidating
// cached gap lists.
const RulesVersion = "2026.10.2"

// Texas bounding box used for GPS sanity checks.
const (
	minLatitude  = 25.8
	maxLatitude  = 36.6
	minLongitude = -106.7
	maxLongitude = -93.5
)

var (
	emailPattern        = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	ticketNumberPattern = regexp.MustCompile(`^\d{10}$`)
)

// check returns whether the field has a value and, if it does, why that
// value is unacceptable ("" when acceptable).
type check func(in Input, cal *compliance.Calendar) (present bool, problem string)

// Rule evaluates one field.
type Rule struct {
	Field         domain.FieldName
	Severity      domain.GapSeverity
	Missing       string
	Prompt        string
	InvalidPrompt string
	check         check
}

var ticketTypeRule = Rule{
	Field:         domain.FieldTicketType,
	Severity:      domain.GapRecommended,
	InvalidPrompt: "Is this a new locate request (normal) or an update of an existing Texas811 ticket (update)?",
	check: func(in Input, _ *compliance.Calendar) (bool, string) {
		if in.Fields.TicketType == nil {
			return true, ""
		}
		switch *in.Fields.TicketType {
		case domain.TicketTypeNormal, domain.TicketTypeUpdate:
			return true, ""
		}
		return true, fmt.Sprintf("ticket_type %q is not one of normal, update", *in.Fields.TicketType)
	},
}

var normalRules = []Rule{
	{
		Field:    domain.FieldExcavatorCompany,
		Severity: domain.GapRequired,
		Missing:  "excavator company is required",
		Prompt:   "What is the name of the company doing the excavation?",
		check:    stringPresent(func(f *domain.Fields) *string { return f.ExcavatorCompany }),
	},
	{
		Field:    domain.FieldCallerName,
		Severity: domain.GapRequired,
		Missing:  "caller name is required",
		Prompt:   "Who is the contact person for this locate request?",
		check:    stringPresent(func(f *domain.Fields) *string { return f.CallerName }),
	},
	{
		Field:         domain.FieldCallerPhone,
		Severity:      domain.GapRequired,
		Missing:       "caller phone number is required",
		Prompt:        "What phone number can utilities call to reach the contact?",
		InvalidPrompt: "That phone number does not look right. Please give a 10-digit number including area code.",
		check: func(in Input, _ *compliance.Calendar) (bool, string) {
			if in.Fields.CallerPhone == nil || *in.Fields.CallerPhone == "" {
				return false, ""
			}
			if _, ok := NormalizePhone(*in.Fields.CallerPhone); !ok {
				return true, "caller phone must be a 10-digit US number"
			}
			return true, ""
		},
	},
	{
		Field:         domain.FieldCallerEmail,
		Severity:      domain.GapRecommended,
		Missing:       "caller email helps utilities send positive responses",
		Prompt:        "Is there an email address where positive responses can be sent?",
		InvalidPrompt: "That email address looks malformed. Could you repeat it?",
		check: func(in Input, _ *compliance.Calendar) (bool, string) {
			if in.Fields.CallerEmail == nil || *in.Fields.CallerEmail == "" {
				return false, ""
			}
			if !emailPattern.MatchString(*in.Fields.CallerEmail) {
				return true, "caller email is not a valid address"
			}
			return true, ""
		},
	},
	{
		Field:         domain.FieldWorkDescription,
		Severity:      domain.GapRequired,
		Missing:       "type of work is required",
		Prompt:        "What type of work is being done (for example installing fence posts or replacing a water line)?",
		InvalidPrompt: "Please describe the work in a bit more detail so utilities know what to expect.",
		check: func(in Input, _ *compliance.Calendar) (bool, string) {
			if in.Fields.WorkDescription == nil || *in.Fields.WorkDescription == "" {
				return false, ""
			}
			if utf8.RuneCountInString(*in.Fields.WorkDescription) < 10 {
				return true, "work description is too short to identify the type of work"
			}
			return true, ""
		},
	},
	{
		Field:    domain.FieldWorkDoneFor,
		Severity: domain.GapRequired,
		Missing:  "work done for is required",
		Prompt:   "Who is the work being done for (property owner or contracting party)?",
		check:    stringPresent(func(f *domain.Fields) *string { return f.WorkDoneFor }),
	},
	{
		Field:    domain.FieldStreetAddress,
		Severity: domain.GapRequired,
		Missing:  "street address of the dig site is required",
		Prompt:   "What is the street address where the digging will happen?",
		check:    stringPresent(func(f *domain.Fields) *string { return f.StreetAddress }),
	},
	{
		Field:    domain.FieldCrossStreet,
		Severity: domain.GapRecommended,
		Missing:  "nearest cross street helps locators find the site",
		Prompt:   "What is the nearest intersecting street?",
		check:    stringPresent(func(f *domain.Fields) *string { return f.CrossStreet }),
	},
	{
		Field:    domain.FieldCity,
		Severity: domain.GapRequired,
		Missing:  "city is required",
		Prompt:   "Which city or town is the dig site in?",
		check:    stringPresent(func(f *domain.Fields) *string { return f.City }),
	},
	{
		Field:    domain.FieldCounty,
		Severity: domain.GapRequired,
		Missing:  "county is required",
		Prompt:   "Which county is the dig site in?",
		check:    stringPresent(func(f *domain.Fields) *string { return f.County }),
	},
	{
		Field:         domain.FieldGPS,
		Severity:      domain.GapRecommended,
		Missing:       "GPS coordinates improve locate accuracy",
		Prompt:        "Do you have GPS coordinates (latitude and longitude) for the dig site?",
		InvalidPrompt: "Please give both latitude and longitude for a point inside Texas.",
		check: func(in Input, _ *compliance.Calendar) (bool, string) {
			lat, lng := in.Fields.Latitude, in.Fields.Longitude
			if lat == nil && lng == nil {
				return false, ""
			}
			if lat == nil || lng == nil {
				return true, "latitude and longitude must be provided together"
			}
			if !(*lat >= minLatitude && *lat <= maxLatitude && *lng >= minLongitude && *lng <= maxLongitude) {
				return true, "GPS coordinates fall outside Texas"
			}
			return true, ""
		},
	},
	{
		Field:         domain.FieldWorkDurationDays,
		Severity:      domain.GapRequired,
		Missing:       "expected duration of the work is required",
		Prompt:        "About how many days will the work take?",
		InvalidPrompt: "The work duration must be at least one day.",
		check: func(in Input, _ *compliance.Calendar) (bool, string) {
			if in.Fields.WorkDurationDays == nil {
				return false, ""
			}
			if *in.Fields.WorkDurationDays <= 0 {
				return true, "work duration must be a positive number of days"
			}
			return true, ""
		},
	},
	{
		Field:    domain.FieldTrenchless,
		Severity: domain.GapRequired,
		Missing:  "trenchless (boring) answer is required",
		Prompt:   "Will any boring or other trenchless method be used?",
		check: func(in Input, _ *compliance.Calendar) (bool, string) {
			return in.Fields.Trenchless != nil, ""
		},
	},
	{
		Field:    domain.FieldExplosives,
		Severity: domain.GapRequired,
		Missing:  "explosives answer is required",
		Prompt:   "Will explosives be used?",
		check: func(in Input, _ *compliance.Calendar) (bool, string) {
			return in.Fields.Explosives != nil, ""
		},
	},
	{
		Field:         domain.FieldGeometry,
		Severity:      domain.GapRecommended,
		Missing:       "a dig area outline helps locators mark only what is needed",
		Prompt:        "Can you describe or outline the exact area to be marked?",
		InvalidPrompt: "The dig area outline is incomplete. Please give enough points for the shape.",
		check: func(in Input, _ *compliance.Calendar) (bool, string) {
			g := in.Fields.Geometry
			if g == nil {
				return false, ""
			}
			need, ok := map[string]int{"point": 1, "line": 2, "polygon": 3}[g.Kind]
			if !ok {
				return true, fmt.Sprintf("geometry kind %q is not one of point, line, polygon", g.Kind)
			}
			if len(g.Coordinates) < need {
				return true, fmt.Sprintf("%s geometry needs at least %d coordinates", g.Kind, need)
			}
			return true, ""
		},
	},
	{
		Field:    domain.FieldMarkingInstructions,
		Severity: domain.GapRecommended,
		Missing:  "marking instructions help locators",
		Prompt:   "Any special instructions for where to mark (for example the entire back yard)?",
		check:    stringPresent(func(f *domain.Fields) *string { return f.MarkingInstructions }),
	},
	{
		Field:         domain.FieldRequestedStartDate,
		Severity:      domain.GapRecommended,
		Missing:       "no planned start date given; the lawful start date will be used",
		Prompt:        "When do you plan to start digging?",
		InvalidPrompt: "The planned start date must be on or after the lawful start date.",
		check: func(in Input, cal *compliance.Calendar) (bool, string) {
			if in.Fields.RequestedStartDate == nil || *in.Fields.RequestedStartDate == "" {
				return false, ""
			}
			requested, err := cal.ParseDate(*in.Fields.RequestedStartDate)
			if err != nil {
				return true, "requested start date must be formatted YYYY-MM-DD"
			}
			if in.LawfulStart != nil && requested.Before(cal.Date(*in.LawfulStart)) {
				return true, "requested start date is before the lawful start date " + compliance.FormatDate(*in.LawfulStart)
			}
			return true, ""
		},
	},
}

var referenceTicketRule = Rule{
	Field:         domain.FieldReferenceTicket,
	Severity:      domain.GapRequired,
	Missing:       "update tickets must reference the original ticket number",
	Prompt:        "What is the ticket number of the original locate request?",
	InvalidPrompt: "Texas811 ticket numbers are 10 digits. Please check the number.",
	check: func(in Input, _ *compliance.Calendar) (bool, string) {
		if in.Fields.ReferenceTicket == nil || *in.Fields.ReferenceTicket == "" {
			return false, ""
		}
		if !ticketNumberPattern.MatchString(*in.Fields.ReferenceTicket) {
			return true, "reference ticket number must be 10 digits"
		}
		return true, ""
	},
}

// RulesFor returns the ordered rule table for a ticket type.
func RulesFor(t domain.TicketType) []Rule {
	rules := make([]Rule, 0, len(normalRules)+2)
	rules = append(rules, ticketTypeRule)
	if t == domain.TicketTypeUpdate {
		rules = append(rules, referenceTicketRule)
	}
	return append(rules, normalRules...)
}

func stringPresent(get func(*domain.Fields) *string) check {
	return func(in Input, _ *compliance.Calendar) (bool, string) {
		v := get(&in.Fields)
		return v != nil && strings.TrimSpace(*v) != "", ""
	}
}

// NormalizePhone strips punctuation and an optional leading country
// code, returning the 10-digit NANP number.
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 || digits[0] < '2' || digits[3] < '2' {
		return "", false
	}
	return digits, true
}
