package cfp

import (
	"fmt"
	"strings"
	"time"
)

// descriptionMax bounds entry descriptions so the export stays compact.
const descriptionMax = 200

// Date is a calendar day (no time-of-day) that serializes as "YYYY-MM-DD".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) Before(o Date) bool { return d.Time().Before(o.Time()) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	*d = NewDate(t)
	return nil
}

// Entry is one call-for-papers listing.
//
// Optional fields (posted/deadline/sjr) are pointers and serialize as null
// when absent, so every exported object carries the same key set.
type Entry struct {
	Provider    string   `json:"provider"`
	Journal     string   `json:"journal"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Posted      *Date    `json:"posted"`
	Deadline    *Date    `json:"deadline"`
	Link        string   `json:"link"`
	SJR         *float64 `json:"sjr"`
}

// Key identifies an entry for dedup and seen-tracking. The link is the
// natural identity; entries without one fall back to provider+title.
func (e Entry) Key() string {
	if link := strings.TrimSpace(e.Link); link != "" {
		return link
	}
	return e.Provider + "|" + e.Journal + "|" + e.Title
}

// Clean trims whitespace and bounds the description length.
func (e Entry) Clean() Entry {
	e.Provider = strings.TrimSpace(e.Provider)
	e.Journal = strings.TrimSpace(e.Journal)
	e.Title = strings.TrimSpace(e.Title)
	e.Link = strings.TrimSpace(e.Link)
	e.Description = truncate(strings.TrimSpace(e.Description), descriptionMax)
	return e
}

// truncate cuts s to at most n runes, not bytes.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	seen := 0
	for i := range s {
		if seen == n {
			return s[:i]
		}
		seen++
	}
	return s
}
