package cfp

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestMergeOrderingAndDedup(t *testing.T) {
	t.Parallel()
	late := &Date{2026, time.October, 1}
	early := &Date{2026, time.January, 15}

	a := []Entry{
		{Provider: "Wiley", Journal: "B", Title: "Later", Deadline: late, Link: "https://x/1"},
		{Provider: "Wiley", Journal: "A", Title: "NoDeadline", Link: "https://x/2"},
	}
	b := []Entry{
		{Provider: "Elsevier", Journal: "C", Title: "Earlier", Deadline: early, Link: "https://x/3"},
		// duplicate link, should be dropped
		{Provider: "Elsevier", Journal: "C", Title: "Dup", Deadline: early, Link: "https://x/1"},
		// no title, no link: skipped entirely
		{Provider: "MDPI", Journal: "D"},
	}

	got := Merge(a, b)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(got), got)
	}
	if got[0].Title != "Earlier" || got[1].Title != "Later" {
		t.Fatalf("deadline ordering wrong: %q then %q", got[0].Title, got[1].Title)
	}
	if got[2].Deadline != nil {
		t.Fatalf("entry without deadline should sort last, got %+v", got[2])
	}
}

func TestMergeCleansEntries(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 400)
	got := Merge([]Entry{{Provider: " Elsevier ", Title: "  T  ", Description: long, Link: "https://x"}})
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].Provider != "Elsevier" || got[0].Title != "T" {
		t.Fatalf("whitespace not trimmed: %+v", got[0])
	}
	if len(got[0].Description) != 200 {
		t.Fatalf("description not truncated: %d chars", len(got[0].Description))
	}

	// Truncation counts runes, not bytes.
	wide := strings.Repeat("食", 300)
	got = Merge([]Entry{{Provider: "MDPI", Title: "W", Description: wide, Link: "https://x/w"}})
	if n := utf8.RuneCountInString(got[0].Description); n != 200 {
		t.Fatalf("multibyte description truncated to %d runes, want 200", n)
	}
}

func TestEntryKeyFallback(t *testing.T) {
	t.Parallel()
	withLink := Entry{Provider: "Wiley", Title: "T", Link: "https://x"}
	if withLink.Key() != "https://x" {
		t.Fatalf("Key = %q", withLink.Key())
	}
	noLink := Entry{Provider: "Wiley", Journal: "J", Title: "T"}
	if noLink.Key() != "Wiley|J|T" {
		t.Fatalf("Key = %q", noLink.Key())
	}
}
