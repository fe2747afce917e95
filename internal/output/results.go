package output

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/reelvibe/internal/catalog"
	"github.com/Aman-CERP/reelvibe/internal/search"
)

// UnverifiedMarker flags results with no catalog entry.
const UnverifiedMarker = "UNVERIFIED AI SUGGESTION"

const overviewWidth = 100

// Results prints one page of a search response.
func (w *Writer) Results(resp *search.Response) {
	s := w.styles
	if resp.Rejected {
		w.Error("Query rejected: " + resp.Reason)
		return
	}

	if len(resp.Results) == 0 {
		w.Status("", fmt.Sprintf("No results (%d total)", resp.Total))
		return
	}

	first := resp.Offset + 1
	last := resp.Offset + len(resp.Results)
	header := fmt.Sprintf("Results %d-%d of %d for %q", first, last, resp.Total, resp.Query.Original)
	if resp.Regime != "" {
		header += fmt.Sprintf(" [%s]", resp.Regime)
	}
	_, _ = fmt.Fprintln(w.out, s.Header.Render(header))
	if resp.Fallback {
		w.Warning("Showing fallback suggestions")
	}
	w.Newline()

	for _, r := range resp.Results {
		w.result(r)
	}
}

func (w *Writer) result(r search.ScoredResult) {
	s := w.styles
	line := fmt.Sprintf("%3d. %s  %s  %s",
		r.Rank,
		s.Title.Render(titleWithYear(r.Title, r.Year)),
		s.Score.Render(r.Display),
		s.Label.Render(r.Label))
	if !r.Verified {
		line += "  " + s.Unverified.Render(UnverifiedMarker)
	}
	_, _ = fmt.Fprintln(w.out, line)

	if r.Entry == nil {
		return
	}
	meta := []string{string(r.Method)}
	if len(r.Entry.Genres) > 0 {
		meta = append(meta, strings.Join(r.Entry.Genres, ", "))
	}
	if r.Entry.Rating > 0 {
		meta = append(meta, fmt.Sprintf("rated %.1f", r.Entry.Rating))
	}
	_, _ = fmt.Fprintf(w.out, "     %s\n", s.Dim.Render(strings.Join(meta, " · ")))
	if r.Entry.Overview != "" {
		_, _ = fmt.Fprintf(w.out, "     %s\n", truncate(r.Entry.Overview, overviewWidth))
	}
}

// Details prints one catalog entry.
func (w *Writer) Details(e *catalog.Entry) {
	s := w.styles
	var year *int
	if e.Year > 0 {
		year = &e.Year
	}
	_, _ = fmt.Fprintln(w.out, s.Title.Render(titleWithYear(e.Title, year)))
	if e.Tagline != "" {
		_, _ = fmt.Fprintln(w.out, s.Dim.Render(e.Tagline))
	}
	w.Newline()

	field := func(name, value string) {
		if value == "" {
			return
		}
		_, _ = fmt.Fprintf(w.out, "%s %s\n", s.Label.Render(fmt.Sprintf("%-10s", name+":")), value)
	}
	field("ID", e.ID)
	field("Director", e.Director)
	field("Cast", strings.Join(e.Cast, ", "))
	field("Genres", strings.Join(e.Genres, ", "))
	field("Tags", strings.Join(e.Tags, ", "))
	if e.Runtime > 0 {
		field("Runtime", fmt.Sprintf("%d min", e.Runtime))
	}
	if e.Rating > 0 {
		field("Rating", fmt.Sprintf("%.1f", e.Rating))
	}
	if e.Overview != "" {
		w.Newline()
		_, _ = fmt.Fprintln(w.out, e.Overview)
	}
}

// Explanation prints why a film fits a query.
func (w *Writer) Explanation(x *search.Explanation) {
	s := w.styles
	var year *int
	if x.Year > 0 {
		year = &x.Year
	}
	_, _ = fmt.Fprintf(w.out, "%s  %s\n", s.Title.Render(titleWithYear(x.Title, year)), s.Dim.Render(fmt.Sprintf("for %q", x.Query)))
	w.Newline()
	_, _ = fmt.Fprintln(w.out, x.Text)
	w.Newline()

	match := x.Grounding.SemanticMatch + " " + s.Label.Render(x.Confidence)
	_, _ = fmt.Fprintf(w.out, "%s %s\n", s.Label.Render(fmt.Sprintf("%-10s", "Match:")), match)
	if len(x.Grounding.TopTropes) > 0 {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", s.Label.Render(fmt.Sprintf("%-10s", "Tropes:")), strings.Join(x.Grounding.TopTropes, ", "))
	}
	if !x.Generated {
		_, _ = fmt.Fprintln(w.out, s.Dim.Render("(generated from catalog metadata)"))
	}
}

// Stats prints catalog statistics.
func (w *Writer) Stats(st catalog.Stats) {
	s := w.styles
	_, _ = fmt.Fprintln(w.out, s.Header.Render("Catalog"))
	rows := [][2]string{
		{"Path", st.Path},
		{"Entries", fmt.Sprintf("%d", st.Entries)},
		{"Vectors", fmt.Sprintf("%d", st.Vectors)},
		{"Dimensions", fmt.Sprintf("%d", st.Dimensions)},
		{"Keyword", st.KeywordBackend},
	}
	for _, r := range rows {
		_, _ = fmt.Fprintf(w.out, "  %s %s\n", s.Label.Render(fmt.Sprintf("%-11s", r[0]+":")), r[1])
	}
}

func titleWithYear(title string, year *int) string {
	if year == nil {
		return title
	}
	return fmt.Sprintf("%s (%d)", title, *year)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
