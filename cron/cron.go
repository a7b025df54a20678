package cron

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/hhzhhzhhz/mirror-master/entity"
	roboCron "github.com/robfig/cron/v3"
)

// ErrInvalidSchedule a field or the start date cannot be parsed.
var ErrInvalidSchedule = errors.New("invalid schedule")

// horizonYears bounds the search for a due instant.
const horizonYears = 5

var (
	parser     = roboCron.NewParser(roboCron.Minute | roboCron.Hour | roboCron.Dom | roboCron.Month | roboCron.Dow)
	fieldNames = []string{"minute", "hour", "day", "month", "day_of_week"}
	// weekday names in Monday=0 order
	weekdays = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}
)

const lastDay = "last"

// Schedule a parsed CronSchedule evaluated at minute resolution in loc.
type Schedule struct {
	spec  entity.CronSchedule
	bits  *roboCron.SpecSchedule
	dow   uint64 // indexed by time.Weekday
	last  bool
	start time.Time
	loc   *time.Location
}

// Parse validates every field of cs. Empty fields are wildcards.
func Parse(cs entity.CronSchedule, loc *time.Location) (*Schedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	values := []entity.Field{cs.Minute, cs.Hour, cs.Day, cs.Month, cs.DayOfWeek}
	parts := make([]string, len(values))
	for i, f := range values {
		v := strings.TrimSpace(f.String())
		if v == "" {
			v = "*"
		}
		if strings.ContainsAny(v, " \t\r\n") || strings.HasPrefix(v, "@") || strings.Contains(v, "TZ=") {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidSchedule, fieldNames[i], v)
		}
		parts[i] = strings.ToLower(v)
	}
	dow, err := parseWeekdays(parts[4])
	if err != nil {
		return nil, fmt.Errorf("%w: day_of_week=%q cause=%s", ErrInvalidSchedule, parts[4], err.Error())
	}
	dom, last := splitLastDay(parts[2])
	parts[2], parts[4] = dom, "*"
	if dom == "" {
		parts[2] = "*"
	}
	sched, err := parser.Parse(strings.Join(parts, " "))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSchedule, err.Error())
	}
	bits, ok := sched.(*roboCron.SpecSchedule)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected schedule type %T", ErrInvalidSchedule, sched)
	}
	if dom == "" {
		bits.Dom = 0
	}
	start, err := ParseStartDate(cs.StartDate.String(), loc)
	if err != nil {
		return nil, err
	}
	return &Schedule{spec: cs, bits: bits, dow: dow, last: last, start: start, loc: loc}, nil
}

// splitLastDay removes "last" entries from a day list. An empty rest
// means only the last day of the month is due.
func splitLastDay(v string) (string, bool) {
	if v == "*" {
		return v, false
	}
	var rest []string
	last := false
	for _, p := range strings.Split(v, ",") {
		if p == lastDay {
			last = true
			continue
		}
		rest = append(rest, p)
	}
	if !last {
		return v, false
	}
	if len(rest) == 0 {
		return "", true
	}
	return strings.Join(rest, ","), true
}

// parseWeekdays reads a day_of_week list numbered from Monday=0, or by
// name mon..sun. Entries are a value, "*" or a range, each with an
// optional "/step".
func parseWeekdays(v string) (uint64, error) {
	var bits uint64
	for _, p := range strings.Split(v, ",") {
		rng, step := p, 1
		if i := strings.Index(p, "/"); i >= 0 {
			n, err := strconv.Atoi(p[i+1:])
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("bad step in %q", p)
			}
			rng, step = p[:i], n
		}
		lo, hi := 0, 6
		if rng != "*" {
			var err error
			bounds := strings.SplitN(rng, "-", 2)
			if lo, err = weekday(bounds[0]); err != nil {
				return 0, err
			}
			switch {
			case len(bounds) == 2:
				if hi, err = weekday(bounds[1]); err != nil {
					return 0, err
				}
			case step == 1:
				hi = lo
			}
			if lo > hi {
				return 0, fmt.Errorf("range %q runs backwards", rng)
			}
		}
		for d := lo; d <= hi; d += step {
			bits |= 1 << uint((d+1)%7)
		}
	}
	return bits, nil
}

func weekday(v string) (int, error) {
	for i, name := range weekdays {
		if v == name {
			return i, nil
		}
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 6 {
		return 0, fmt.Errorf("unknown weekday %q", v)
	}
	return n, nil
}

// ParseStartDate parses loosely formatted date text. Empty text means no start date.
func ParseStartDate(text string, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := dateparse.ParseIn(text, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: start_date=%q cause=%s", ErrInvalidSchedule, text, err.Error())
	}
	return t.In(loc), nil
}

// StartDate zero when unset.
func (s *Schedule) StartDate() time.Time {
	return s.start
}

// Next returns the first due instant strictly after t. The bool is false when
// no instant exists within the search horizon.
func (s *Schedule) Next(t time.Time) (time.Time, bool) {
	t = t.In(s.loc)
	if !s.start.IsZero() {
		if floor := s.start.Add(-time.Nanosecond); t.Before(floor) {
			t = floor
		}
	}
	t = t.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(horizonYears, 0, 0)

WRAP:
	if t.After(limit) {
		return time.Time{}, false
	}

	for 1<<uint(t.Month())&s.bits.Month == 0 {
		t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, s.loc)
		if t.Month() == time.January {
			goto WRAP
		}
	}

	for !s.dayMatches(t) {
		t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, s.loc)
		if t.Day() == 1 {
			goto WRAP
		}
	}

	for 1<<uint(t.Hour())&s.bits.Hour == 0 {
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, s.loc)
		if t.Hour() == 0 {
			goto WRAP
		}
	}

	for 1<<uint(t.Minute())&s.bits.Minute == 0 {
		t = t.Truncate(time.Minute).Add(time.Minute)
		if t.Minute() == 0 {
			goto WRAP
		}
	}

	return t, true
}

// Matches reports whether the minute containing t is a due instant.
func (s *Schedule) Matches(t time.Time) bool {
	t = t.In(s.loc).Truncate(time.Minute)
	if !s.start.IsZero() && t.Before(s.start) {
		return false
	}
	return 1<<uint(t.Month())&s.bits.Month != 0 &&
		s.dayMatches(t) &&
		1<<uint(t.Hour())&s.bits.Hour != 0 &&
		1<<uint(t.Minute())&s.bits.Minute != 0
}

// dayMatches day of month and day of week must both hold.
func (s *Schedule) dayMatches(t time.Time) bool {
	if 1<<uint(t.Weekday())&s.dow == 0 {
		return false
	}
	return 1<<uint(t.Day())&s.bits.Dom != 0 || s.last && t.AddDate(0, 0, 1).Day() == 1
}

// Fields describes each field for listing, "*" standing for a wildcard.
func (s *Schedule) Fields() map[string]string {
	values := []entity.Field{s.spec.Minute, s.spec.Hour, s.spec.Day, s.spec.Month, s.spec.DayOfWeek}
	m := make(map[string]string, len(values)+1)
	for i, f := range values {
		v := strings.TrimSpace(f.String())
		if v == "" {
			v = "*"
		}
		m[fieldNames[i]] = v
	}
	if !s.start.IsZero() {
		m["start_date"] = s.start.Format(time.RFC3339)
	}
	return m
}

func (s *Schedule) String() string {
	f := s.Fields()
	return fmt.Sprintf("%s %s %s %s %s", f["minute"], f["hour"], f["day"], f["month"], f["day_of_week"])
}
