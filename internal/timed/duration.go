package timed

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidDuration is returned for duration strings that do not parse.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrDurationTooLong is returned when a duration exceeds its limit.
	ErrDurationTooLong = errors.New("duration exceeds limit")
)

const (
	// Day is 24 hours.
	Day = 24 * time.Hour
	// Week is 7 days.
	Week = 7 * Day
)

var (
	durationShape = regexp.MustCompile(`^([0-9]+[smhdw])+$`)
	durationPart  = regexp.MustCompile(`([0-9]+)([smhdw])`)
)

var unitOf = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": Day,
	"w": Week,
}

// ParseDuration parses chat-style durations such as "30s", "10m", "1h30m",
// "2d" or "1w 2d". A bare integer is a number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	raw := strings.ToLower(strings.Join(strings.Fields(s), ""))
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidDuration)
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return scale(n, time.Second, s)
	}

	if !durationShape.MatchString(raw) {
		return 0, fmt.Errorf("%w: %q (use e.g. 30s, 10m, 2h, 1d)", ErrInvalidDuration, s)
	}

	var total time.Duration
	for _, m := range durationPart.FindAllStringSubmatch(raw, -1) {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		d, err := scale(n, unitOf[m[2]], s)
		if err != nil {
			return 0, err
		}
		if total > time.Duration(1<<62)-d {
			return 0, fmt.Errorf("%w: %q is too large", ErrInvalidDuration, s)
		}
		total += d
	}
	return total, nil
}

func scale(n int64, unit time.Duration, src string) (time.Duration, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidDuration, src)
	}
	if n > int64(time.Duration(1<<62)/unit) {
		return 0, fmt.Errorf("%w: %q is too large", ErrInvalidDuration, src)
	}
	return time.Duration(n) * unit, nil
}

// checkDuration validates d against (0, max].
func checkDuration(d, max time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: must be positive", ErrInvalidDuration)
	}
	if d > max {
		return fmt.Errorf("%w: %s is longer than %s", ErrDurationTooLong, Humanize(d), Humanize(max))
	}
	return nil
}

// Humanize renders a duration as "1d 2h 3m 4s", dropping zero parts.
func Humanize(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	d = d.Round(time.Second)

	var parts []string
	for _, u := range []struct {
		unit time.Duration
		name string
	}{
		{Day, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
	} {
		if d >= u.unit {
			n := d / u.unit
			d -= n * u.unit
			parts = append(parts, fmt.Sprintf("%d%s", n, u.name))
		}
	}
	return strings.Join(parts, " ")
}
