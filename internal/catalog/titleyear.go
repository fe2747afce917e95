package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

var trailingYear = regexp.MustCompile(`^(.*?)\s*\((\d{4})\)$`)

// ParseTitleYear splits "Title (1999)" into its parts. Only a trailing
// parenthesized four-digit group counts, so "1917" and "2001: A Space
// Odyssey" come back whole with a nil year.
func ParseTitleYear(s string) (string, *int) {
	s = strings.TrimSpace(s)
	m := trailingYear.FindStringSubmatch(s)
	if m == nil {
		return s, nil
	}
	title := strings.TrimSpace(m[1])
	if title == "" {
		return s, nil
	}
	y, err := strconv.Atoi(m[2])
	if err != nil {
		return s, nil
	}
	return title, &y
}
