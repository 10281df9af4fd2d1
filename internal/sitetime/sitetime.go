// Package sitetime holds the CMS date utilities: converting site-local wall
// clock dates to GMT, validating calendar dates, and formatting dates with
// the strftime patterns configured for the site.
package sitetime

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"proposepress/internal/models"
)

// FormatUnix is the special format that yields Unix seconds instead of a
// formatted date.
const FormatUnix = "U"

// Zone converts and formats dates in the site's time zone.
type Zone struct {
	loc *time.Location
	now func() time.Time
}

// NewZone creates a Zone for loc. A nil loc means UTC.
func NewZone(loc *time.Location) *Zone {
	if loc == nil {
		loc = time.UTC
	}
	return &Zone{loc: loc, now: time.Now}
}

// WithClock returns a copy of z that reads the current time from now.
func (z *Zone) WithClock(now func() time.Time) *Zone {
	return &Zone{loc: z.loc, now: now}
}

// Location returns the site's time zone.
func (z *Zone) Location() *time.Location {
	return z.loc
}

// Now returns the current time in the site's zone.
func (z *Zone) Now() time.Time {
	return z.now().In(z.loc)
}

// ParseLocal interprets a DateLayout string as site-local wall clock time.
func (z *Zone) ParseLocal(local string) (time.Time, error) {
	t, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(local), z.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse local date: %w", err)
	}
	return t, nil
}

// GMTFromLocal converts a site-local DateLayout string to a UTC instant.
func (z *Zone) GMTFromLocal(local string) (time.Time, error) {
	t, err := z.ParseLocal(local)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// GMT reads the wall clock of t as site-local time and returns the UTC
// instant. Stored dates come back from Postgres without a zone.
func (z *Zone) GMT(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, z.loc).UTC()
}

// Format renders t in the site's zone using a strftime pattern. The
// pattern "U" yields Unix seconds.
func (z *Zone) Format(format string, t time.Time) string {
	if format == FormatUnix {
		return strconv.FormatInt(t.Unix(), 10)
	}
	return strftime.Format(format, t.In(z.loc))
}

// FormatLocal parses a site-local DateLayout string and formats it. It
// returns the empty string when the input does not parse.
func (z *Zone) FormatLocal(format, local string) string {
	t, err := z.ParseLocal(local)
	if err != nil {
		return ""
	}
	return z.Format(format, t)
}

// FormatWall formats the wall clock of t as site-local time. Use it for
// stored local dates, whose zone is not the site's.
func (z *Zone) FormatWall(format string, t time.Time) string {
	return z.FormatLocal(format, t.Format(models.DateLayout))
}

// CheckDate reports whether the year, month and day at the fixed offsets
// of a DateLayout string form a real calendar date. "2020-02-30" fails.
func CheckDate(value string) bool {
	if len(value) < 10 {
		return false
	}
	year, errY := strconv.Atoi(value[0:4])
	month, errM := strconv.Atoi(value[5:7])
	day, errD := strconv.Atoi(value[8:10])
	if errY != nil || errM != nil || errD != nil {
		return false
	}
	if month < 1 || month > 12 || day < 1 || year < 1 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Year() == year && int(t.Month()) == month && t.Day() == day
}

// Is12HourTime reports whether a strftime time pattern renders a 12-hour
// clock. Escaped percent signs ("%%") are ignored.
func Is12HourTime(format string) bool {
	format = strings.ReplaceAll(format, "%%", "")
	for _, verb := range []string{"%p", "%P", "%I", "%l", "%r"} {
		if strings.Contains(format, verb) {
			return true
		}
	}
	return false
}
