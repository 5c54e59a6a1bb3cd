package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Level is one tier of the time hierarchy; hour keys identify snapshots
type Level string

const (
	Hour  Level = "hour"
	Day   Level = "day"
	Week  Level = "week"
	Month Level = "month"
	Year  Level = "year"
)

const (
	hourLayout  = "2006-01-02T15"
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
	yearLayout  = "2006"
)

var (
	ErrUnknownLevel      = errors.New("unknown period level")
	ErrInvalidKey        = errors.New("invalid period key")
	ErrUnsupportedRollup = errors.New("unsupported rollup")
)

// ParseLevel maps the lowercase level name (as used in URLs and store keys)
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case Hour, Day, Week, Month, Year:
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// Period is the half-open UTC range [Start, End) a key stands for
type Period struct {
	Level Level
	Key   string
	Start time.Time
	End   time.Time
}

// Contains reports whether other lies entirely inside p
func (p Period) Contains(other Period) bool {
	return !other.Start.Before(p.Start) && !other.End.After(p.End)
}

// Parse validates a key of the given level and returns its calendar range.
// Keys must be canonical: Parse(l, k).Key == k.
func Parse(level Level, key string) (Period, error) {
	var (
		start time.Time
		end   time.Time
		err   error
	)

	switch level {
	case Hour:
		start, err = time.ParseInLocation(hourLayout, key, time.UTC)
		end = start.Add(time.Hour)
	case Day:
		start, err = time.ParseInLocation(dayLayout, key, time.UTC)
		end = start.AddDate(0, 0, 1)
	case Week:
		start, err = parseISOWeek(key)
		end = start.AddDate(0, 0, 7)
	case Month:
		start, err = time.ParseInLocation(monthLayout, key, time.UTC)
		end = start.AddDate(0, 1, 0)
	case Year:
		start, err = time.ParseInLocation(yearLayout, key, time.UTC)
		end = start.AddDate(1, 0, 0)
	default:
		return Period{}, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
	if err != nil {
		return Period{}, fmt.Errorf("%w: %s %q: %v", ErrInvalidKey, level, key, err)
	}

	if canon := KeyOf(level, start); canon != key {
		return Period{}, fmt.Errorf("%w: %s %q is not canonical (want %q)", ErrInvalidKey, level, key, canon)
	}

	return Period{Level: level, Key: key, Start: start, End: end}, nil
}

// KeyOf returns the key of the period of the given level containing t
func KeyOf(level Level, t time.Time) string {
	t = t.UTC()
	switch level {
	case Hour:
		return t.Format(hourLayout)
	case Day:
		return t.Format(dayLayout)
	case Week:
		y, w := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case Month:
		return t.Format(monthLayout)
	case Year:
		return t.Format(yearLayout)
	}
	return ""
}

// parseISOWeek accepts "YYYY-Www" and returns the Monday 00:00 UTC of that week
func parseISOWeek(key string) (time.Time, error) {
	y, w, ok := strings.Cut(key, "-W")
	if !ok || len(y) != 4 || len(w) != 2 {
		return time.Time{}, fmt.Errorf("want YYYY-Www")
	}

	year, err := strconv.Atoi(y)
	if err != nil {
		return time.Time{}, err
	}
	week, err := strconv.Atoi(w)
	if err != nil {
		return time.Time{}, err
	}

	// Jan 4th is always in ISO week 1
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	monday := jan4.AddDate(0, 0, -((int(jan4.Weekday()) + 6) % 7))

	if _, last := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek(); week < 1 || week > last {
		return time.Time{}, fmt.Errorf("week %d out of range 1..%d", week, last)
	}

	return monday.AddDate(0, 0, (week-1)*7), nil
}

// SourceLevel is the child level a target level is built from
func SourceLevel(target Level) (Level, error) {
	switch target {
	case Day:
		return Hour, nil
	case Week, Month:
		return Day, nil
	case Year:
		return Month, nil
	}
	return "", fmt.Errorf("%w: nothing rolls up into %q", ErrUnsupportedRollup, target)
}

// Previous returns the key of the period immediately before p at the same level
func Previous(p Period) string {
	return KeyOf(p.Level, p.Start.Add(-time.Nanosecond))
}
