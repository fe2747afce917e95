// Package catalog is the authoritative local store of known films and the
// resolver that reconciles suggested titles against it.
//
// Metadata and the FTS5 keyword index live in SQLite; vectors live in an
// HNSW graph persisted next to the database. An alternate keyword index
// backed by bleve can replace FTS5.
package catalog

// Entry is one catalog film. Year 0 means unknown.
type Entry struct {
	ID         string    `json:"id"`
	TMDBID     int       `json:"tmdb_id,omitempty"`
	Title      string    `json:"title"`
	Year       int       `json:"year,omitempty"`
	Overview   string    `json:"overview,omitempty"`
	Runtime    int       `json:"runtime,omitempty"`
	Director   string    `json:"director,omitempty"`
	Cast       []string  `json:"cast,omitempty"`
	Popularity float64   `json:"popularity,omitempty"`
	Rating     float64   `json:"rating,omitempty"`
	Genres     []string  `json:"genres,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Archetype  string    `json:"archetype,omitempty"`
	Boosters   []string  `json:"boosters,omitempty"`
	PosterURL  string    `json:"poster_url,omitempty"`
	Tagline    string    `json:"tagline,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// Source identifies which retriever produced a candidate.
type Source string

const (
	SourceGenerator Source = "generator"
	SourceFallback  Source = "fallback"
	SourceVector    Source = "vector"
	SourceKeyword   Source = "keyword"
	SourceHybrid    Source = "hybrid"
)

// Candidate is a film suggestion that has not been checked against the
// catalog yet. Optional signals are nil when the producing source does
// not supply them.
type Candidate struct {
	RawTitle string `json:"raw_title"`
	YearHint *int   `json:"year_hint,omitempty"`

	// Confidence is the generator's self-reported score, 0..100.
	Confidence *float64 `json:"confidence,omitempty"`
	// Similarity is the semantic signal, 0..1.
	Similarity *float64 `json:"similarity,omitempty"`
	// KeywordRank is the lexical signal, 0..1.
	KeywordRank *float64 `json:"keyword_rank,omitempty"`

	// CatalogID is set when the candidate came from the catalog itself.
	CatalogID string `json:"catalog_id,omitempty"`
	Source    Source `json:"source"`
}

// MatchMethod records how a candidate was resolved.
type MatchMethod string

const (
	MethodExact        MatchMethod = "exact"
	MethodYearTolerant MatchMethod = "year_tolerant"
	MethodTitleOnly    MatchMethod = "title_only"
	MethodFuzzy        MatchMethod = "fuzzy"
	MethodDirect       MatchMethod = "direct"
	MethodNone         MatchMethod = "none"
)

// Resolved pairs a candidate with its catalog entry. Entry is nil and
// Verified false when nothing matched.
type Resolved struct {
	Candidate Candidate   `json:"candidate"`
	Entry     *Entry      `json:"entry,omitempty"`
	Verified  bool        `json:"verified"`
	Method    MatchMethod `json:"method"`
}

// DisplayTitle returns the catalog title when verified, else the parsed
// candidate title.
func (r Resolved) DisplayTitle() string {
	if r.Verified && r.Entry != nil {
		return r.Entry.Title
	}
	title, _ := ParseTitleYear(r.Candidate.RawTitle)
	return title
}

// DisplayYear returns the catalog year when verified, else the candidate's
// hint or parsed year. Nil means unknown.
func (r Resolved) DisplayYear() *int {
	if r.Verified && r.Entry != nil {
		if r.Entry.Year == 0 {
			return nil
		}
		y := r.Entry.Year
		return &y
	}
	if r.Candidate.YearHint != nil {
		return r.Candidate.YearHint
	}
	_, y := ParseTitleYear(r.Candidate.RawTitle)
	return y
}

// TitleRef is one row of the fuzzy-match title snapshot.
type TitleRef struct {
	ID         string
	Title      string
	Normalized string
	Year       int
	Popularity float64
}

// VectorHit is an approximate nearest neighbour. Distance is cosine
// distance in [0, 2].
type VectorHit struct {
	ID       string
	Distance float32
}

// KeywordHit is a lexical match. Score is the backend's raw relevance;
// Rank maps it into [0, 1).
type KeywordHit struct {
	ID    string
	Score float64
	Rank  float64
}

// Stats summarizes the catalog.
type Stats struct {
	Entries        int    `json:"entries"`
	Vectors        int    `json:"vectors"`
	Dimensions     int    `json:"dimensions"`
	KeywordBackend string `json:"keyword_backend"`
	Path           string `json:"path"`
}
