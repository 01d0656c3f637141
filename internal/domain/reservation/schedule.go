package reservation

import (
	"fmt"
	"time"

	"github.com/venuelane/service-reservation/internal/clock"
	"github.com/venuelane/service-reservation/internal/domain"
)

// Schedule is a value object holding the civil date/time range of a booking.
// Dates and times are naive strings interpreted by the clock adapter; the
// rest of the engine only ever compares the absolute instants derived here.
type Schedule struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// IsMultiDay reports whether the schedule spans more than one calendar day.
func (s Schedule) IsMultiDay() bool {
	return s.EndDate != "" && s.EndDate != s.StartDate
}

// Validate checks the schedule's internal consistency against the fixed
// timezone: parseable fields, end date not before start date, and on a
// single-day range an end time strictly after the start time.
func (s Schedule) Validate(c *clock.Clock) error {
	if s.StartDate == "" {
		return domain.NewValidationError("start date is required")
	}
	start, err := c.ToInstant(s.StartDate, s.StartTime)
	if err != nil {
		return err
	}
	if s.EndDate != "" {
		endDay, err := c.ToInstant(s.EndDate, "")
		if err != nil {
			return err
		}
		startDay, err := c.ToInstant(s.StartDate, "")
		if err != nil {
			return err
		}
		if endDay.Before(startDay) {
			return domain.NewValidationError(fmt.Sprintf("end date %s is before start date %s", s.EndDate, s.StartDate))
		}
	}
	if !s.IsMultiDay() {
		if s.StartTime == "" || s.EndTime == "" {
			return domain.NewValidationError("start and end times are required for a single-day booking")
		}
		end, err := c.ToInstant(s.StartDate, s.EndTime)
		if err != nil {
			return err
		}
		if !end.After(start) {
			return domain.NewValidationError("end time must be after start time on a single-day booking")
		}
	} else if s.EndTime != "" {
		end, err := c.ToInstant(s.EndDate, s.EndTime)
		if err != nil {
			return err
		}
		if !end.After(start) {
			return domain.NewValidationError("end of booking must be after its start")
		}
	}
	return nil
}

// Interval returns the half-open [start, end) absolute-instant range the
// schedule occupies. Single-day ranges use that day's start/end times;
// multi-day ranges without explicit times span full days.
func (s Schedule) Interval(c *clock.Clock) (start, end time.Time, err error) {
	start, err = c.ToInstant(s.StartDate, s.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !s.IsMultiDay() {
		end, err = c.ToInstant(s.StartDate, s.EndTime)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return start, end, nil
	}
	if s.EndTime != "" {
		end, err = c.ToInstant(s.EndDate, s.EndTime)
	} else {
		end, err = c.StartOfNextDay(s.EndDate)
	}
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// Overlaps reports whether two half-open instant ranges intersect. Ranges
// that only touch at an endpoint do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
