package domain

// GapSeverity says whether a gap blocks confirmation.
type GapSeverity string

const (
	GapRequired    GapSeverity = "required"
	GapRecommended GapSeverity = "recommended"
)

// GapKind distinguishes an absent value from a malformed one.
type GapKind string

const (
	GapMissing GapKind = "missing"
	GapInvalid GapKind = "invalid"
)

// Gap is a detected deficiency in the field set.
type Gap struct {
	Field    FieldName   `json:"field"`
	Severity GapSeverity `json:"severity"`
	Kind     GapKind     `json:"kind"`
	Message  string      `json:"message"`
	Prompt   string      `json:"prompt"`
}

// RequiredGaps filters gaps down to those blocking confirmation.
func RequiredGaps(gaps []Gap) []Gap {
	var out []Gap
	for _, g := range gaps {
		if g.Severity == GapRequired {
			out = append(out, g)
		}
	}
	return out
}
