package policy

import (
	"time"

	"github.com/guidemeet/backend/internal/apperror"
	"github.com/guidemeet/backend/internal/models"
)

const maxHourlyHours = 12

// MeetingLength resolves a duration class. hours is only read for hourly
// bookings.
func MeetingLength(class string, hours int) (time.Duration, error) {
	switch class {
	case models.DurationHalfDay:
		return 4 * time.Hour, nil
	case models.DurationFullDay:
		return 8 * time.Hour, nil
	case models.DurationHourly:
		if hours < 1 || hours > maxHourlyHours {
			return 0, apperror.Validation("hourly bookings must be 1 to %d hours", maxHourlyHours)
		}
		return time.Duration(hours) * time.Hour, nil
	}
	return 0, apperror.Validation("unknown duration class %q", class)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Back-to-back meetings do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
