package mcp

// SearchMoviesInput defines the input schema for the search_movies tool.
type SearchMoviesInput struct {
	Query  string `json:"query" jsonschema:"a description of the kind of film you want, e.g. slow burn heist with a twist"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 20, max 100"`
	Offset int    `json:"offset,omitempty" jsonschema:"number of ranked results to skip"`
}

// SearchMoviesOutput defines the output schema for the search_movies tool.
type SearchMoviesOutput struct {
	RequestID string        `json:"request_id"`
	Intent    string        `json:"intent"`
	Regime    string        `json:"regime,omitempty"`
	Total     int           `json:"total" jsonschema:"number of ranked results before pagination"`
	Offset    int           `json:"offset"`
	Limit     int           `json:"limit"`
	Fallback  bool          `json:"fallback,omitempty" jsonschema:"true when fixed fallback suggestions were served"`
	Rejected  bool          `json:"rejected,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Results   []MovieResult `json:"results"`
}

// MovieResult is one ranked film.
type MovieResult struct {
	Rank            int     `json:"rank"`
	ID              string  `json:"id,omitempty" jsonschema:"catalog id, usable with movie_details; empty for unverified suggestions"`
	Title           string  `json:"title"`
	Year            int     `json:"year,omitempty"`
	Verified        bool    `json:"verified" jsonschema:"false for AI suggestions with no catalog entry"`
	Score           float64 `json:"score" jsonschema:"fused relevance score between 0 and 0.99"`
	DisplayScore    string  `json:"display_score"`
	ConfidenceLabel string  `json:"confidence_label"`
	MatchMethod     string  `json:"match_method"`
}

// MovieDetailsInput defines the input schema for the movie_details tool.
type MovieDetailsInput struct {
	ID string `json:"id" jsonschema:"catalog id from a search_movies result"`
}

// MovieDetailsOutput defines the output schema for the movie_details tool.
type MovieDetailsOutput struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Year      int      `json:"year,omitempty"`
	Overview  string   `json:"overview,omitempty"`
	Tagline   string   `json:"tagline,omitempty"`
	Director  string   `json:"director,omitempty"`
	Cast      []string `json:"cast,omitempty"`
	Genres    []string `json:"genres,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Runtime   int      `json:"runtime,omitempty"`
	Rating    float64  `json:"rating,omitempty"`
	PosterURL string   `json:"poster_url,omitempty"`
}

// ExplainMatchInput defines the input schema for the explain_match tool.
type ExplainMatchInput struct {
	Query string `json:"query" jsonschema:"the search the film was found for"`
	ID    string `json:"id" jsonschema:"catalog id from a search_movies result"`
}

// ExplainMatchOutput defines the output schema for the explain_match tool.
type ExplainMatchOutput struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Year        int      `json:"year,omitempty"`
	Query       string   `json:"query"`
	Explanation string   `json:"explanation"`
	Confidence  string   `json:"confidence" jsonschema:"high, medium, low, very low or unknown"`
	Generated   bool     `json:"generated" jsonschema:"false when the fixed explanation was served"`
	TopTropes   []string `json:"top_tropes"`
	Semantic    string   `json:"semantic_match" jsonschema:"query to film similarity as a percentage, or n/a"`
	QueryTerms  []string `json:"query_terms"`
}
