package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseCadence turns a schedule string into a Variation named name.
//
// Accepted forms:
//   - Cron: "0 9 * * 1", "@weekly", "@every 55m"
//   - Duration: "10s", "2h30m"
//   - HH:MM interval: "00:50" (50 minutes), "168:00" (one week)
//
// The prefixes "cron:" and "every:" force a form.
func ParseCadence(name, raw string) (Variation, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Variation{}, fmt.Errorf("%s: cadence required", name)
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return cronVariation(name, strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "every:"):
		d, err := parseInterval(strings.TrimSpace(s[len("every:"):]))
		if err != nil {
			return Variation{}, fmt.Errorf("%s: %w", name, err)
		}
		return Every(name, d), nil
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return cronVariation(name, s)
	}

	d, err := parseInterval(s)
	if err != nil {
		return Variation{}, fmt.Errorf("%s: invalid cadence %q (use cron like '0 9 * * 1', HH:MM like '02:30', or a duration like '10s')", name, raw)
	}
	return Every(name, d), nil
}

// MustCadence is ParseCadence for literals known to be valid.
func MustCadence(name, raw string) Variation {
	v, err := ParseCadence(name, raw)
	if err != nil {
		panic(err)
	}
	return v
}

func cronVariation(name, expr string) (Variation, error) {
	if expr == "" {
		return Variation{}, fmt.Errorf("%s: cron expression required", name)
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return Variation{}, fmt.Errorf("%s: invalid cron %q: %w", name, expr, err)
	}
	return Variation{Name: name, Schedule: sched}, nil
}

var reHHMM = regexp.MustCompile(`^(\d{1,3}):(\d{2})$`)

func parseInterval(v string) (time.Duration, error) {
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return 0, fmt.Errorf("invalid minutes in %q", v)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return 0, fmt.Errorf("interval must be > 0")
		}
		return d, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q", v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}
