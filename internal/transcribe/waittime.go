package transcribe

import (
	"regexp"
	"strconv"
	"time"
)

// Rate-limit responses embed a human-readable hint like
// "Please try again in 1m30s" or "try again in 2h 3m 4.5s".
var (
	waitHintPattern = regexp.MustCompile(`(?i)try again in\s+((?:\d+h)?\s*(?:\d+m)?\s*(?:[\d.]+s)?)`)
	hoursPattern    = regexp.MustCompile(`(\d+)h`)
	minutesPattern  = regexp.MustCompile(`(\d+)m`)
	secondsPattern  = regexp.MustCompile(`([\d.]+)s`)
)

// ParseWaitHint extracts the suggested wait duration from a provider rate
// limit message. Returns 0 when no usable hint is present.
func ParseWaitHint(message string) time.Duration {
	if message == "" {
		return 0
	}

	match := waitHintPattern.FindStringSubmatch(message)
	if match == nil {
		return 0
	}
	raw := match[1]

	var wait time.Duration
	if m := hoursPattern.FindStringSubmatch(raw); m != nil {
		if hours, err := strconv.Atoi(m[1]); err == nil {
			wait += time.Duration(hours) * time.Hour
		}
	}
	if m := minutesPattern.FindStringSubmatch(raw); m != nil {
		if minutes, err := strconv.Atoi(m[1]); err == nil {
			wait += time.Duration(minutes) * time.Minute
		}
	}
	if m := secondsPattern.FindStringSubmatch(raw); m != nil {
		if seconds, err := strconv.ParseFloat(m[1], 64); err == nil {
			wait += time.Duration(seconds * float64(time.Second))
		}
	}

	return wait
}
