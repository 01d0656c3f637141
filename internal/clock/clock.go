// Package clock is the single place where civil dates and clock times are
// interpreted as absolute instants. All bookings carry naive calendar dates
// and times of day; every comparison (overlap, expiry, "is this in the past")
// funnels through this adapter so no other component constructs or compares
// civil values directly.
package clock

import (
	"fmt"
	"time"

	"github.com/venuelane/service-reservation/internal/domain"
)

const (
	// DateLayout is the wire format for civil dates.
	DateLayout = "2006-01-02"
	// TimeLayout is the wire format for civil times of day.
	TimeLayout = "15:04"
)

// Clock converts between civil date/time strings and absolute instants in one
// fixed venue timezone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New creates a Clock for the given IANA timezone name.
func New(timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewFixed creates a Clock whose Now always returns the given instant. Used
// in tests.
func NewFixed(timezone string, at time.Time) (*Clock, error) {
	c, err := New(timezone)
	if err != nil {
		return nil, err
	}
	c.now = func() time.Time { return at }
	return c, nil
}

// Now returns the current absolute instant in UTC.
func (c *Clock) Now() time.Time {
	return c.now().UTC()
}

// Location returns the fixed civil timezone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// ToInstant interprets a civil date and optional time of day in the fixed
// timezone and returns the absolute instant in UTC. An empty timeOfDay means
// midnight at the start of the date.
func (c *Clock) ToInstant(date, timeOfDay string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, date, c.loc)
	if err != nil {
		return time.Time{}, domain.NewValidationError(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", date))
	}
	if timeOfDay == "" {
		return d.UTC(), nil
	}
	t, err := time.ParseInLocation(TimeLayout, timeOfDay, c.loc)
	if err != nil {
		return time.Time{}, domain.NewValidationError(fmt.Sprintf("invalid time %q, expected HH:MM", timeOfDay))
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, c.loc).UTC(), nil
}

// StartOfNextDay returns the instant at which the day after the given civil
// date begins. Used as the exclusive end of full-day ranges.
func (c *Clock) StartOfNextDay(date string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, date, c.loc)
	if err != nil {
		return time.Time{}, domain.NewValidationError(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", date))
	}
	return d.AddDate(0, 0, 1).UTC(), nil
}

// IsPast reports whether the given instant is strictly before now.
func (c *Clock) IsPast(at time.Time) bool {
	return at.Before(c.Now())
}
