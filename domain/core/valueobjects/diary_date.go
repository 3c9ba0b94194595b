package valueobjects

import (
	"regexp"
	"time"

	"github.com/maxsergeev/YD-Project-2/pkg/errors"
)

// DiaryDateLayout is the only accepted textual form of a diary date.
const DiaryDateLayout = "2006-01-02"

// dateShape matches the YYYY-MM-DD shape without checking the calendar.
// time.Parse alone is not enough: it accepts a leading sign in the year field.
var dateShape = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// DiaryDate is a calendar day used as the key of a diary page.
// The zero value is not a valid date; build one with ParseDiaryDate or DiaryDateOf.
type DiaryDate struct {
	value string
}

// LooksLikeDate reports whether s has the YYYY-MM-DD shape.
// A shape match does not mean the date exists.
func LooksLikeDate(s string) bool {
	return dateShape.MatchString(s)
}

// ParseDiaryDate validates s as an existing calendar day in YYYY-MM-DD form.
func ParseDiaryDate(s string) (DiaryDate, error) {
	if !dateShape.MatchString(s) {
		return DiaryDate{}, errors.NewInvalidDateFormatError(s)
	}
	t, err := time.Parse(DiaryDateLayout, s)
	if err != nil || t.Year() < 1 {
		return DiaryDate{}, errors.NewInvalidDateFormatError(s)
	}
	return DiaryDate{value: s}, nil
}

// IsValidDate reports whether s is an existing calendar day in YYYY-MM-DD form.
func IsValidDate(s string) bool {
	_, err := ParseDiaryDate(s)
	return err == nil
}

// DiaryDateOf returns the calendar day of t as observed in loc.
func DiaryDateOf(t time.Time, loc *time.Location) DiaryDate {
	if loc != nil {
		t = t.In(loc)
	}
	return DiaryDate{value: t.Format(DiaryDateLayout)}
}

// String returns the YYYY-MM-DD form
func (d DiaryDate) String() string {
	return d.value
}

// IsZero checks if the DiaryDate is the zero value
func (d DiaryDate) IsZero() bool {
	return d.value == ""
}

// Equals checks if two dates denote the same day
func (d DiaryDate) Equals(other DiaryDate) bool {
	return d.value == other.value
}

// Clock returns the current time. Swapped in tests.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time {
	return time.Now()
}
