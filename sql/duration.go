package sql

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
	year = 365 * day
)

var durationUnits = []struct {
	name string
	size time.Duration
}{
	{"y", year},
	{"w", week},
	{"d", day},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
	{"ms", time.Millisecond},
	{"µs", time.Microsecond},
	{"ns", time.Nanosecond},
}

// ParseDuration lit une durée composée d'unités y, w, d, h, m, s, ms, µs
// (ou us) et ns, par exemple "1d12h" ou "90s".
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("sql: invalid duration %q", s)
	}
	var total time.Duration
	for s != "" {
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 {
			return 0, fmt.Errorf("sql: invalid duration %q", s)
		}
		n, err := strconv.ParseInt(s[:i], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("sql: invalid duration %q: %w", s, err)
		}
		s = s[i:]
		j := 0
		for j < len(s) && (s[j] < '0' || s[j] > '9') {
			j++
		}
		unit := s[:j]
		s = s[j:]
		if unit == "us" {
			unit = "µs"
		}
		found := false
		for _, u := range durationUnits {
			if u.name == unit {
				total += time.Duration(n) * u.size
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("sql: unknown duration unit %q", unit)
		}
	}
	return Duration(total), nil
}

func (d Duration) String() string {
	v := time.Duration(d)
	if v == 0 {
		return "0ns"
	}
	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
		v = -v
	}
	for _, u := range durationUnits {
		if n := v / u.size; n > 0 {
			b.WriteString(strconv.FormatInt(int64(n), 10))
			b.WriteString(u.name)
			v -= n * u.size
		}
	}
	return b.String()
}

// ParseDatetime lit un instant RFC 3339 (ou une date seule AAAA-MM-JJ).
func ParseDatetime(s string) (Datetime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDatetime(t), nil
		}
	}
	return Datetime{}, fmt.Errorf("sql: invalid datetime %q", s)
}

func (d Datetime) String() string {
	return d.Time.UTC().Format(time.RFC3339Nano)
}
