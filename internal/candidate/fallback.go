package candidate

import "github.com/Aman-CERP/reelvibe/internal/catalog"

type fallbackFilm struct {
	title      string
	year       int
	confidence float64
}

var hardFallback = []fallbackFilm{
	{"Inception", 2010, 90},
	{"The Matrix", 1999, 85},
	{"Blade Runner 2049", 2017, 80},
}

// HardFallback returns the fixed list served when generation fails or the
// query carries too little signal. Each call returns fresh values.
func HardFallback() []catalog.Candidate {
	out := make([]catalog.Candidate, len(hardFallback))
	for i, f := range hardFallback {
		year, conf := f.year, f.confidence
		out[i] = catalog.Candidate{
			RawTitle:   f.title,
			YearHint:   &year,
			Confidence: &conf,
			Source:     catalog.SourceFallback,
		}
	}
	return out
}
