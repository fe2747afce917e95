package search

import (
	"fmt"

	"github.com/Aman-CERP/reelvibe/internal/catalog"
	"github.com/Aman-CERP/reelvibe/internal/query"
)

// Key identifies a film across candidates: normalized title plus year,
// with Year nil when unknown.
type Key struct {
	Title string
	Year  *int
}

func (k Key) String() string {
	if k.Year == nil {
		return k.Title
	}
	return fmt.Sprintf("%s|%04d", k.Title, *k.Year)
}

// Less orders keys by title, then year with unknown years first.
func (k Key) Less(o Key) bool {
	if k.Title != o.Title {
		return k.Title < o.Title
	}
	switch {
	case k.Year == nil:
		return o.Year != nil
	case o.Year == nil:
		return false
	default:
		return *k.Year < *o.Year
	}
}

// CanonicalKey uses the catalog title and year for verified results and
// the candidate's own otherwise.
func CanonicalKey(r catalog.Resolved) Key {
	return Key{Title: query.Normalize(r.DisplayTitle()), Year: r.DisplayYear()}
}

// Dedup keeps the first result for each canonical key, preserving order.
func Dedup(in []catalog.Resolved) []catalog.Resolved {
	seen := make(map[string]bool, len(in))
	out := make([]catalog.Resolved, 0, len(in))
	for _, r := range in {
		k := CanonicalKey(r).String()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}
