// Package flighttime compares guest-entered clock times with provider schedule times.
package flighttime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultThreshold = 30 // minutes

// ParseClock returns minutes since midnight for "HH:MM", "H:MM", "HH:MM:SS" or an
// ISO-8601 timestamp (its local clock part is used). ok is false for empty or malformed input.
func ParseClock(s string) (minutes int, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02T15:04:05.000"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Hour()*60 + t.Minute(), true
			}
		}
		s = s[i+1:]
		if j := strings.IndexAny(s, "Z+-."); j >= 0 {
			s = s[:j]
		}
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	h, ok := clockField(parts[0], 23)
	if !ok {
		return 0, false
	}
	m, ok := clockField(parts[1], 59)
	if !ok {
		return 0, false
	}
	if len(parts) == 3 {
		if _, ok := clockField(parts[2], 59); !ok {
			return 0, false
		}
	}
	return h*60 + m, true
}

// clockField parses one or two ASCII digits no greater than limit.
func clockField(f string, limit int) (int, bool) {
	if len(f) == 0 || len(f) > 2 {
		return 0, false
	}
	for i := 0; i < len(f); i++ {
		if f[i] < '0' || f[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(f)
	if err != nil || v > limit {
		return 0, false
	}
	return v, true
}

// DifferenceMinutes returns scheduled - entered in minutes. ok is false when either side is unusable.
func DifferenceMinutes(entered, scheduled string) (int, bool) {
	e, ok := ParseClock(entered)
	if !ok {
		return 0, false
	}
	s, ok := ParseClock(scheduled)
	if !ok {
		return 0, false
	}
	return s - e, true
}

// HasTimeMismatch reports whether the two clock times differ by more than thresholdMinutes.
// A missing side cannot be assessed and is never a mismatch.
func HasTimeMismatch(entered, scheduled string, thresholdMinutes int) bool {
	diff, ok := DifferenceMinutes(entered, scheduled)
	if !ok {
		return false
	}
	if diff < 0 {
		diff = -diff
	}
	return diff > thresholdMinutes
}

// FormatTimeDifference renders a signed difference: "+2h 15m", "-45m", "0m".
func FormatTimeDifference(minutes int) string {
	if minutes == 0 {
		return "0m"
	}
	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%s%dm", sign, m)
	case m == 0:
		return fmt.Sprintf("%s%dh", sign, h)
	default:
		return fmt.Sprintf("%s%dh %dm", sign, h, m)
	}
}

// Normalize renders any clock form ParseClock accepts as "HH:MM"; unusable input gives "".
func Normalize(s string) string {
	m, ok := ParseClock(s)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
