package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/reelvibe/internal/catalog"
	"github.com/Aman-CERP/reelvibe/internal/search"
)

// unverifiedNote marks suggestions with no catalog entry.
const unverifiedNote = "_unverified AI suggestion_"

// FormatSearchResults formats a search response as markdown.
func FormatSearchResults(resp *search.Response) string {
	if resp.Rejected {
		return fmt.Sprintf("Query rejected: %s", resp.Reason)
	}
	if len(resp.Results) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", resp.Query.Original)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Movies for \"%s\"\n\n", resp.Query.Original))
	sb.WriteString(fmt.Sprintf("Showing %d-%d of %d", resp.Offset+1, resp.Offset+len(resp.Results), resp.Total))
	if resp.Fallback {
		sb.WriteString(" (fallback suggestions)")
	}
	sb.WriteString("\n\n")

	for _, r := range resp.Results {
		formatResult(&sb, r)
	}
	return sb.String()
}

func formatResult(sb *strings.Builder, r search.ScoredResult) {
	sb.WriteString(fmt.Sprintf("%d. **%s**", r.Rank, r.Title))
	if r.Year != nil {
		sb.WriteString(fmt.Sprintf(" (%d)", *r.Year))
	}
	sb.WriteString(fmt.Sprintf(" %s %s", r.Display, r.Label))
	if !r.Verified {
		sb.WriteString(" " + unverifiedNote)
	}
	sb.WriteString("\n")

	if r.Entry == nil {
		return
	}
	sb.WriteString(fmt.Sprintf("   id: `%s`", r.ID))
	if len(r.Entry.Genres) > 0 {
		sb.WriteString(" | " + strings.Join(r.Entry.Genres, ", "))
	}
	sb.WriteString("\n")
}

// FormatDetails formats one catalog entry as markdown.
func FormatDetails(e *catalog.Entry) string {
	var sb strings.Builder
	sb.WriteString("## " + e.Title)
	if e.Year > 0 {
		sb.WriteString(fmt.Sprintf(" (%d)", e.Year))
	}
	sb.WriteString("\n\n")
	if e.Tagline != "" {
		sb.WriteString("_" + e.Tagline + "_\n\n")
	}

	field := func(name, value string) {
		if value != "" {
			sb.WriteString(fmt.Sprintf("**%s:** %s\n", name, value))
		}
	}
	field("Director", e.Director)
	field("Cast", strings.Join(e.Cast, ", "))
	field("Genres", strings.Join(e.Genres, ", "))
	if e.Runtime > 0 {
		field("Runtime", fmt.Sprintf("%d min", e.Runtime))
	}
	if e.Rating > 0 {
		field("Rating", fmt.Sprintf("%.1f", e.Rating))
	}
	if e.Overview != "" {
		sb.WriteString("\n" + e.Overview + "\n")
	}
	return sb.String()
}

// FormatExplanation formats an explanation as markdown.
func FormatExplanation(x *search.Explanation) string {
	var sb strings.Builder
	sb.WriteString("## " + x.Title)
	if x.Year > 0 {
		sb.WriteString(fmt.Sprintf(" (%d)", x.Year))
	}
	sb.WriteString(fmt.Sprintf(" for \"%s\"\n\n", x.Query))
	sb.WriteString(x.Text + "\n\n")
	sb.WriteString(fmt.Sprintf("**Semantic match:** %s (%s confidence)\n", x.Grounding.SemanticMatch, x.Confidence))
	if len(x.Grounding.TopTropes) > 0 {
		sb.WriteString("**Tropes:** " + strings.Join(x.Grounding.TopTropes, ", ") + "\n")
	}
	return sb.String()
}
