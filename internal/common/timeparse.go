package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// epochMillisThreshold disambiguates epoch seconds from milliseconds: values
// above it cannot be plausible second counts.
const epochMillisThreshold = 10_000_000_000

var startTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseFlexibleTime parses the start-time representations the platforms
// emit: epoch seconds, epoch milliseconds, or one of a small set of string
// layouts. Naive timestamps are interpreted in local time, matching how the
// platforms report them.
func ParseFlexibleTime(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}

	if ts, err := strconv.ParseFloat(s, 64); err == nil {
		if ts > epochMillisThreshold {
			ts = ts / 1000.0
		}
		sec := int64(ts)
		nsec := int64((ts - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec), nil
	}

	for _, layout := range startTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time value: %q", value)
}
