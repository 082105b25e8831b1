package cfp

import "sort"

// Merge cleans, dedups and orders entries from all providers into the
// canonical export order.
//
// Ordering is deterministic so re-crawls with identical data produce
// byte-identical exports: deadline ascending (entries without a deadline
// sort last), then provider, journal, title.
func Merge(lists ...[]Entry) []Entry {
	out := make([]Entry, 0, 64)
	seen := map[string]bool{}
	for _, list := range lists {
		for _, e := range list {
			e = e.Clean()
			if e.Title == "" && e.Link == "" {
				continue
			}
			k := e.Key()
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])
	})
	return out
}

func less(a, b Entry) bool {
	switch {
	case a.Deadline != nil && b.Deadline == nil:
		return true
	case a.Deadline == nil && b.Deadline != nil:
		return false
	case a.Deadline != nil && b.Deadline != nil:
		at, bt := a.Deadline.Time(), b.Deadline.Time()
		if !at.Equal(bt) {
			return at.Before(bt)
		}
	}
	if a.Provider != b.Provider {
		return a.Provider < b.Provider
	}
	if a.Journal != b.Journal {
		return a.Journal < b.Journal
	}
	return a.Title < b.Title
}
