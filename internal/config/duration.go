package config

import (
	"fmt"
	"strings"
	"time"
)

// Durations are Go duration strings such as "45s" or "10m". An empty string
// means unset.

// ParseDurationField parses the value at path. Unset yields 0.
func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: %q is not a duration like 45s or 10m: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: %s is negative", path, d)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def standing in for an
// unset or zero value.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
