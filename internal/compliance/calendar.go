// Package compliance computes the legally mandated dates of an
// excavation ticket: the earliest lawful work start after the business
// day notice period, and the expiry of the response validity window.
package compliance

import (
	_ "embed"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	// NoticeBusinessDays is the minimum notice, in business days, before
	// work may start. The day of notice never counts.
	NoticeBusinessDays = 2
	// ResponseValidityDays is the calendar-day window after responses
	// are complete.
	ResponseValidityDays = 14

	dateLayout = "2006-01-02"
)

//go:embed holidays.yaml
var defaultHolidays []byte

// Holiday is a non-business calendar date.
type Holiday struct {
	Date string `yaml:"date"`
	Name string `yaml:"name"`
}

type calendarFile struct {
	Timezone string    `yaml:"timezone"`
	Holidays []Holiday `yaml:"holidays"`
}

// Calendar evaluates business days in a fixed time zone.
type Calendar struct {
	loc      *time.Location
	holidays map[string]string
}

// NewCalendar builds a calendar from explicit holidays.
func NewCalendar(loc *time.Location, holidays []Holiday) (*Calendar, error) {
	if loc == nil {
		loc = time.UTC
	}
	c := &Calendar{loc: loc, holidays: make(map[string]string, len(holidays))}
	for _, h := range holidays {
		if _, err := time.ParseInLocation(dateLayout, h.Date, loc); err != nil {
			return nil, fmt.Errorf("holiday %q: %w", h.Date, err)
		}
		c.holidays[h.Date] = h.Name
	}
	return c, nil
}

// ParseCalendar decodes a YAML holiday file. tzOverride, when set, wins
// over the timezone declared in the file.
func ParseCalendar(data []byte, tzOverride string) (*Calendar, error) {
	var file calendarFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse holiday calendar: %w", err)
	}
	tz := file.Timezone
	if tzOverride != "" {
		tz = tzOverride
	}
	loc := time.UTC
	if tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", tz, err)
		}
	}
	return NewCalendar(loc, file.Holidays)
}

// LoadCalendar reads the holiday file at path, or the built-in Texas811
// calendar when path is empty.
func LoadCalendar(path, tzOverride string) (*Calendar, error) {
	if path == "" {
		return ParseCalendar(defaultHolidays, tzOverride)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holiday calendar: %w", err)
	}
	return ParseCalendar(data, tzOverride)
}

// DefaultCalendar returns the built-in calendar.
func DefaultCalendar() *Calendar {
	c, err := ParseCalendar(defaultHolidays, "")
	if err != nil {
		panic(err)
	}
	return c
}

// Location returns the calendar's time zone.
func (c *Calendar) Location() *time.Location { return c.loc }

// Date truncates t to midnight of its calendar day in the calendar zone.
func (c *Calendar) Date(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

// Holiday returns the holiday name for the day containing t.
func (c *Calendar) Holiday(t time.Time) (string, bool) {
	name, ok := c.holidays[t.In(c.loc).Format(dateLayout)]
	return name, ok
}

// IsBusinessDay reports whether the day containing t is neither a
// weekend nor a listed holiday.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	switch t.In(c.loc).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.Holiday(t)
	return !holiday
}

// AddBusinessDays advances the day containing ref by n business days.
// The starting day is never counted, so the result is always a business day.
func (c *Calendar) AddBusinessDays(ref time.Time, n int) time.Time {
	d := c.Date(ref)
	for counted := 0; counted < n; {
		d = d.AddDate(0, 0, 1)
		if c.IsBusinessDay(d) {
			counted++
		}
	}
	return d
}

// LawfulStartDate is the earliest date work may begin for a notice given at ref.
func (c *Calendar) LawfulStartDate(ref time.Time) time.Time {
	return c.AddBusinessDays(ref, NoticeBusinessDays)
}

// ExpiresDate is the end of the response validity window for responses
// completed at completeAt.
func (c *Calendar) ExpiresDate(completeAt time.Time) time.Time {
	return c.Date(completeAt).AddDate(0, 0, ResponseValidityDays)
}

// GivesFullNotice reports whether start is no earlier than the lawful start
// date for a notice given at now.
func (c *Calendar) GivesFullNotice(start, now time.Time) bool {
	return !c.Date(start).Before(c.LawfulStartDate(now))
}

// IsPast reports whether date lies strictly before the day containing now.
func (c *Calendar) IsPast(date, now time.Time) bool {
	return c.Date(date).Before(c.Date(now))
}

// ParseDate parses a YYYY-MM-DD string in the calendar zone.
func (c *Calendar) ParseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, raw, c.loc)
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
