package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// ParsedSpec is a schedule string resolved to a cron expression or a fixed
// interval.
type ParsedSpec struct {
	Kind  SpecKind
	Cron  string
	Every time.Duration
}

// ParseSchedule accepts a cron expression ("*/30 * * * *", "@hourly",
// "@every 45m") or a bare Go duration ("45m", "1h30m") meaning a fixed
// interval. Intervals run in whole seconds.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, errors.New("schedule required")
	}
	if strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t") {
		return ParsedSpec{Kind: SpecCron, Cron: s}, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("schedule %q is neither a cron expression nor a duration like 45m", raw)
	}
	if d < time.Second {
		return ParsedSpec{}, fmt.Errorf("schedule %q: interval must be at least 1s", raw)
	}
	return ParsedSpec{Kind: SpecInterval, Every: d}, nil
}

// MinutesSpec turns clock-minute offsets into an hourly cron spec:
// ["01", "31"] becomes "1,31 * * * *". Values must be 0..59 and unique;
// order is preserved.
func MinutesSpec(minutes []string) (string, error) {
	if len(minutes) == 0 {
		return "", fmt.Errorf("at least one minute required")
	}
	seen := make(map[int]bool, len(minutes))
	parts := make([]string, 0, len(minutes))
	for _, raw := range minutes {
		v := strings.TrimSpace(raw)
		m, err := strconv.Atoi(v)
		if err != nil || m < 0 || m > 59 {
			return "", fmt.Errorf("invalid minute %q (want 00..59)", raw)
		}
		if seen[m] {
			return "", fmt.Errorf("duplicate minute %q", raw)
		}
		seen[m] = true
		parts = append(parts, strconv.Itoa(m))
	}
	return strings.Join(parts, ",") + " * * * *", nil
}
