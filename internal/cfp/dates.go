package cfp

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// deadlinePattern matches free-text dates like "15 March 2026".
// Publisher feeds rarely agree on a deadline format, so we scan the raw
// string instead of trusting a layout.
var deadlinePattern = regexp.MustCompile(`\b(\d{1,2})\s*([A-Z][a-z]+)\s*(\d{4})\b`)

var monthsByName = map[string]time.Month{
	"January": time.January, "February": time.February, "March": time.March,
	"April": time.April, "May": time.May, "June": time.June,
	"July": time.July, "August": time.August, "September": time.September,
	"October": time.October, "November": time.November, "December": time.December,
}

// ParseDeadline extracts the first "D Month YYYY" date from text.
// Returns nil when no parseable date is present.
func ParseDeadline(text string) *Date {
	m := deadlinePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return nil
	}
	month, ok := monthsByName[m[2]]
	if !ok {
		// Feeds sometimes abbreviate ("Mar 2026"); accept unique prefixes.
		month, ok = monthByPrefix(m[2])
		if !ok {
			return nil
		}
	}
	year, err := strconv.Atoi(m[3])
	if err != nil {
		return nil
	}
	d := Date{Year: year, Month: month, Day: day}
	return &d
}

func monthByPrefix(s string) (time.Month, bool) {
	if len(s) < 3 {
		return 0, false
	}
	var found time.Month
	n := 0
	for name, m := range monthsByName {
		if strings.HasPrefix(name, s) {
			found = m
			n++
		}
	}
	if n != 1 {
		return 0, false
	}
	return found, true
}
